package repository

import (
	"github.com/DenialAppealPro/appealpro/app/models"
	"gorm.io/gorm"
)

// AccountRepository defines read access to credit accounts. Balances are
// mutated only through the ledger.
type AccountRepository interface {
	GetByID(id uint) (*models.Account, error)
	GetByEmail(email string) (*models.Account, error)
	List(offset, limit int) ([]models.Account, error)
	Count() (int64, error)
}

// WorkUnitRepository defines read access to work units. Status transitions
// belong to the generation gate.
type WorkUnitRepository interface {
	GetByUUID(uuid string) (*models.WorkUnit, error)
	ListByAccountID(accountID uint, offset, limit int) ([]models.WorkUnit, error)
	CountByAccountID(accountID uint) (int64, error)
	CountByAccountIDAndStatus(accountID uint, status string) (int64, error)
	CountByStatus() (map[string]int64, error)
}

// PayerRuleRepository manages payer filing rules.
type PayerRuleRepository interface {
	List() ([]models.PayerRule, error)
	GetByID(id uint) (*models.PayerRule, error)
	Create(rule *models.PayerRule) error
}

// ProcessedEventRepository defines read access to the payment event log.
type ProcessedEventRepository interface {
	GetByEventID(eventID string) (*models.ProcessedEvent, error)
	ListRecent(limit int) ([]models.ProcessedEvent, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Account        AccountRepository
	WorkUnit       WorkUnitRepository
	ProcessedEvent ProcessedEventRepository
	PayerRule      PayerRuleRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Account:        NewAccountRepository(db),
		WorkUnit:       NewWorkUnitRepository(db),
		ProcessedEvent: NewProcessedEventRepository(db),
		PayerRule:      NewPayerRuleRepository(db),
	}
}

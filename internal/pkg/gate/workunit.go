package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DenialAppealPro/appealpro/app/models"
	"github.com/DenialAppealPro/appealpro/internal/pkg/ledger"
)

// CreateWorkUnit validates intake data and stores a pending work unit.
// Credit-funded units are attached to the account of AccountEmail.
func (g *Gate) CreateWorkUnit(ctx context.Context, wu *models.WorkUnit, accountEmail string) (*models.WorkUnit, error) {
	wu.ID = 0
	wu.UUID = uuid.NewString()
	wu.Status = models.WorkUnitStatusPending
	wu.FundingMode = strings.ToLower(strings.TrimSpace(wu.FundingMode))
	if wu.FundingMode == "" {
		wu.FundingMode = models.FundingModeCredit
	}
	wu.GenerationCount = 0
	wu.TokenUsed = false
	wu.RetailPaidAt = nil
	wu.AttemptID = ""
	wu.AttemptStartedAt = nil

	if err := wu.Validate(); err != nil {
		return nil, err
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if accountEmail = strings.TrimSpace(accountEmail); accountEmail != "" {
			acct, err := ledger.GetOrCreateAccount(tx, accountEmail)
			if err != nil {
				return err
			}
			wu.AccountID = &acct.ID
		}
		if wu.FundingMode == models.FundingModeCredit && wu.AccountID == nil {
			return ErrNoAccount
		}
		return tx.Create(wu).Error
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Gate] Created work unit %s (%s)", wu.UUID, wu.FundingMode)
	return wu, nil
}

// Get loads a work unit by uuid.
func (g *Gate) Get(ctx context.Context, id string) (*models.WorkUnit, error) {
	var wu models.WorkUnit
	if err := g.db.WithContext(ctx).Where("uuid = ?", id).First(&wu).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wu, nil
}

// MarkRetailPaid records a retail payment for the unit inside tx. It returns
// false without changes when the unit is funded by credit, generated, or
// still holds an unspent token, so a repeated payment can never fund a unit
// twice. A unit whose token was spent by a failed attempt is re-armed: the new
// payment buys a new token.
func MarkRetailPaid(tx *gorm.DB, id string, at time.Time) (bool, error) {
	u, err := ledger.LockWorkUnit(tx, id)
	if err != nil {
		return false, err
	}

	updates := map[string]interface{}{
		"retail_paid_at": at.UTC(),
		"status":         models.WorkUnitStatusFunded,
	}
	switch {
	case u.FundingMode != models.FundingModeRetailToken:
		log.Warnf("[Gate] Retail payment for credit-funded work unit %s ignored", u.UUID)
		return false, nil
	case u.IsTerminal():
		return false, nil
	case u.Status == models.WorkUnitStatusFailed && u.TokenUsed:
		updates["token_used"] = false
		updates["failure_reason"] = ""
		log.Infof("[Gate] Re-armed failed retail work unit %s with a new payment", u.UUID)
	case u.TokenUsed, u.RetailPaidAt != nil:
		return false, nil
	}

	if err := tx.Model(&models.WorkUnit{}).Where("id = ?", u.ID).Updates(updates).Error; err != nil {
		return false, fmt.Errorf("mark retail paid %s: %w", u.UUID, err)
	}
	return true, nil
}

package repository

import (
	"github.com/DenialAppealPro/appealpro/app/models"
	"gorm.io/gorm"
)

// payerRuleRepository implements the PayerRuleRepository interface
type payerRuleRepository struct {
	db *gorm.DB
}

// NewPayerRuleRepository creates a new payer rule repository instance
func NewPayerRuleRepository(db *gorm.DB) PayerRuleRepository {
	return &payerRuleRepository{db: db}
}

// List retrieves all payer rules ordered by payer and plan
func (r *payerRuleRepository) List() ([]models.PayerRule, error) {
	var rules []models.PayerRule
	err := r.db.Order("payer_name ASC, plan_type ASC").Find(&rules).Error
	return rules, err
}

// GetByID retrieves a payer rule by its ID
func (r *payerRuleRepository) GetByID(id uint) (*models.PayerRule, error) {
	var rule models.PayerRule
	if err := r.db.First(&rule, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// Create stores a new payer rule
func (r *payerRuleRepository) Create(rule *models.PayerRule) error {
	return r.db.Create(rule).Error
}

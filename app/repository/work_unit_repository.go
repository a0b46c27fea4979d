package repository

import (
	"github.com/DenialAppealPro/appealpro/app/models"
	"gorm.io/gorm"
)

// workUnitRepository implements the WorkUnitRepository interface
type workUnitRepository struct {
	db *gorm.DB
}

// NewWorkUnitRepository creates a new work unit repository instance
func NewWorkUnitRepository(db *gorm.DB) WorkUnitRepository {
	return &workUnitRepository{db: db}
}

// GetByUUID retrieves a work unit by its public UUID
func (r *workUnitRepository) GetByUUID(uuid string) (*models.WorkUnit, error) {
	var wu models.WorkUnit
	err := r.db.Where("uuid = ?", uuid).First(&wu).Error
	if err != nil {
		return nil, err
	}
	return &wu, nil
}

// ListByAccountID retrieves an account's work units, newest first
func (r *workUnitRepository) ListByAccountID(accountID uint, offset, limit int) ([]models.WorkUnit, error) {
	var units []models.WorkUnit
	err := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&units).Error
	return units, err
}

// CountByAccountID returns the number of work units owned by an account
func (r *workUnitRepository) CountByAccountID(accountID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.WorkUnit{}).Where("account_id = ?", accountID).Count(&count).Error
	return count, err
}

// CountByAccountIDAndStatus returns the number of an account's work units in status
func (r *workUnitRepository) CountByAccountIDAndStatus(accountID uint, status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.WorkUnit{}).
		Where("account_id = ? AND status = ?", accountID, status).
		Count(&count).Error
	return count, err
}

// CountByStatus returns the number of work units per status
func (r *workUnitRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&models.WorkUnit{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}

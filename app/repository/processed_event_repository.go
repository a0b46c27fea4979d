package repository

import (
	"github.com/DenialAppealPro/appealpro/app/models"
	"gorm.io/gorm"
)

type processedEventRepository struct {
	db *gorm.DB
}

func NewProcessedEventRepository(db *gorm.DB) ProcessedEventRepository {
	return &processedEventRepository{db: db}
}

func (r *processedEventRepository) GetByEventID(eventID string) (*models.ProcessedEvent, error) {
	var ev models.ProcessedEvent
	err := r.db.Where("event_id = ?", eventID).First(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListRecent returns the most recently processed events
func (r *processedEventRepository) ListRecent(limit int) ([]models.ProcessedEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var events []models.ProcessedEvent
	err := r.db.Order("processed_at DESC, id DESC").Limit(limit).Find(&events).Error
	return events, err
}

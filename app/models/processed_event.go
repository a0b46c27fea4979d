package models

import "time"

// ProcessedEvent is the deduplication log of payment processor notifications.
// The unique index on EventID is what makes duplicate delivery race-free.
type ProcessedEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventID     string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_processed_events_event_id" json:"event_id"`
	EventKind   string    `gorm:"type:varchar(64);not null;index" json:"event_kind"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

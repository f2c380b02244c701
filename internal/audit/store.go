package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StoreSink persists events to the audit_events table.
type StoreSink struct {
	db *gorm.DB
}

// NewStoreSink migrates the audit table and returns the sink.
func NewStoreSink(db *gorm.DB) (*StoreSink, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit table: %w", err)
	}
	return &StoreSink{db: db}, nil
}

// Write inserts the event.
func (s *StoreSink) Write(ctx context.Context, event *Event) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to store audit event: %w", err)
	}
	return nil
}

// UserEvents returns the most recent events for a user, newest first.
func (s *StoreSink) UserEvents(ctx context.Context, userID uuid.UUID, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []Event
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	return events, nil
}

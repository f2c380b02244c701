package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openclear/guardrail/pkg/models"
)

// SQLStore persists transactions through GORM.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore wraps a database handle.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	return &SQLStore{db: db}, nil
}

// Migrate creates or updates the transactions table.
func (s *SQLStore) Migrate() error {
	return s.db.AutoMigrate(&models.Transaction{})
}

// Record inserts a transaction. A zero ID or creation time is filled in.
func (s *SQLStore) Record(ctx context.Context, txn *models.Transaction) error {
	if txn.UserID == uuid.Nil {
		return fmt.Errorf("transaction user id is required")
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// UserTransactions returns the user's transactions with from <= CreatedAt < to,
// ordered by creation time ascending.
func (s *SQLStore) UserTransactions(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from, to).
		Order("created_at ASC").
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return txns, nil
}

package history

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/openclear/guardrail/pkg/models"
)

// MemoryStore keeps transactions in an ordered in-memory index keyed by
// user and creation time, so window queries walk only the matching range.
type MemoryStore struct {
	mu   sync.RWMutex
	txns *btree.Map[string, models.Transaction]
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txns: btree.NewMap[string, models.Transaction](32),
	}
}

// Add records a transaction. A zero ID or creation time is filled in.
func (m *MemoryStore) Add(txn models.Transaction) error {
	if txn.UserID == uuid.Nil {
		return fmt.Errorf("transaction user id is required")
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns.Set(indexKey(txn.UserID, txn.CreatedAt, txn.ID), txn)
	return nil
}

// UserTransactions returns the user's transactions with from <= CreatedAt < to,
// ordered by creation time ascending.
func (m *MemoryStore) UserTransactions(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, nil
	}

	prefix := userID.String() + "|"
	pivot := fmt.Sprintf("%s%019d|", prefix, from.UTC().UnixNano())

	var out []models.Transaction
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.txns.Ascend(pivot, func(key string, txn models.Transaction) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		if !txn.CreatedAt.Before(to) {
			return false
		}
		out = append(out, txn)
		return true
	})
	return out, nil
}

// Len reports the number of stored transactions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.txns.Len()
}

// indexKey orders entries by user, then creation time, then ID. Nanosecond
// timestamps are zero-padded so lexicographic order matches time order.
func indexKey(userID uuid.UUID, at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s|%019d|%s", userID, at.UTC().UnixNano(), id)
}

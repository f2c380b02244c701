// Package history provides windowed access to a user's past transactions.
// Risk scoring and compliance checks both consume the Provider interface,
// so callers can back it with the in-memory store, the SQL store, or
// anything else that can answer a time-range query.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openclear/guardrail/pkg/models"
)

// Provider answers windowed transaction-history queries. The window is
// inclusive of from and exclusive of to. Results are ordered by creation
// time ascending.
type Provider interface {
	UserTransactions(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Transaction, error)
}

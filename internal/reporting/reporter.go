// Package reporting aggregates transaction history into summaries.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openclear/guardrail/internal/history"
	"github.com/openclear/guardrail/pkg/models"
)

// Aggregate is a count and volume pair for one grouping bucket.
type Aggregate struct {
	Count  int             `json:"count"`
	Volume decimal.Decimal `json:"volume"`
}

// Summary describes a user's transactions over a window.
type Summary struct {
	UserID        uuid.UUID                               `json:"user_id"`
	WindowStart   time.Time                               `json:"window_start"`
	WindowEnd     time.Time                               `json:"window_end"`
	Count         int                                     `json:"count"`
	TotalVolume   decimal.Decimal                         `json:"total_volume"`
	AverageAmount decimal.Decimal                         `json:"average_amount"`
	MinAmount     decimal.Decimal                         `json:"min_amount"`
	MaxAmount     decimal.Decimal                         `json:"max_amount"`
	ByType        map[models.TransactionType]Aggregate   `json:"by_type"`
	ByStatus      map[models.TransactionStatus]Aggregate `json:"by_status"`
}

// Reporter builds summaries from transaction history.
type Reporter struct {
	logger  *zap.Logger
	history history.Provider
}

// NewReporter wraps a history provider.
func NewReporter(logger *zap.Logger, provider history.Provider) (*Reporter, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("history provider is required")
	}
	return &Reporter{logger: logger, history: provider}, nil
}

// Summarize aggregates the user's transactions with start <= CreatedAt < end.
// An empty window yields a zero summary, never a division error.
func (r *Reporter) Summarize(ctx context.Context, userID uuid.UUID, start, end time.Time) (Summary, error) {
	if end.Before(start) {
		return Summary{}, fmt.Errorf("window end %s is before start %s", end, start)
	}

	summary := Summary{
		UserID:      userID,
		WindowStart: start,
		WindowEnd:   end,
		ByType:      make(map[models.TransactionType]Aggregate),
		ByStatus:    make(map[models.TransactionStatus]Aggregate),
	}

	txns, err := r.history.UserTransactions(ctx, userID, start, end)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(txns) == 0 {
		return summary, nil
	}

	summary.Count = len(txns)
	summary.MinAmount = txns[0].Amount
	summary.MaxAmount = txns[0].Amount
	for _, txn := range txns {
		summary.TotalVolume = summary.TotalVolume.Add(txn.Amount)
		if txn.Amount.LessThan(summary.MinAmount) {
			summary.MinAmount = txn.Amount
		}
		if txn.Amount.GreaterThan(summary.MaxAmount) {
			summary.MaxAmount = txn.Amount
		}

		byType := summary.ByType[txn.Type]
		byType.Count++
		byType.Volume = byType.Volume.Add(txn.Amount)
		summary.ByType[txn.Type] = byType

		byStatus := summary.ByStatus[txn.Status]
		byStatus.Count++
		byStatus.Volume = byStatus.Volume.Add(txn.Amount)
		summary.ByStatus[txn.Status] = byStatus
	}

	summary.AverageAmount = summary.TotalVolume.
		DivRound(decimal.NewFromInt(int64(summary.Count)), 28).
		Round(2)

	return summary, nil
}

package reporting_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclear/guardrail/internal/history"
	"github.com/openclear/guardrail/internal/reporting"
	"github.com/openclear/guardrail/pkg/models"
)

func seedTxn(t *testing.T, store *history.MemoryStore, userID uuid.UUID, amount float64,
	txnType models.TransactionType, status models.TransactionStatus, at time.Time) {
	t.Helper()
	require.NoError(t, store.Add(models.Transaction{
		UserID:    userID,
		Type:      txnType,
		Amount:    decimal.NewFromFloat(amount),
		Currency:  "USD",
		Status:    status,
		CreatedAt: at,
	}))
}

func TestNewReporterValidation(t *testing.T) {
	_, err := reporting.NewReporter(nil, history.NewMemoryStore())
	assert.Error(t, err)

	_, err = reporting.NewReporter(zap.NewNop(), nil)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	store := history.NewMemoryStore()
	userID := uuid.New()
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	seedTxn(t, store, userID, 100, models.TransactionTypeDeposit, models.StatusCompleted, base)
	seedTxn(t, store, userID, 250.50, models.TransactionTypePayment, models.StatusCompleted, base.Add(time.Hour))
	seedTxn(t, store, userID, 49.50, models.TransactionTypePayment, models.StatusFailed, base.Add(2*time.Hour))
	seedTxn(t, store, userID, 600, models.TransactionTypeWithdrawal, models.StatusCompleted, base.Add(3*time.Hour))
	// Outside the window and for another user, both excluded.
	seedTxn(t, store, userID, 9999, models.TransactionTypeDeposit, models.StatusCompleted, base.AddDate(0, 0, 2))
	seedTxn(t, store, uuid.New(), 777, models.TransactionTypeDeposit, models.StatusCompleted, base)

	r, err := reporting.NewReporter(zap.NewNop(), store)
	require.NoError(t, err)

	got, err := r.Summarize(context.Background(), userID, base, base.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, 4, got.Count)
	assert.Equal(t, "1000", got.TotalVolume.String())
	assert.Equal(t, "250", got.AverageAmount.String())
	assert.Equal(t, "49.5", got.MinAmount.String())
	assert.Equal(t, "600", got.MaxAmount.String())

	require.Len(t, got.ByType, 3)
	assert.Equal(t, 2, got.ByType[models.TransactionTypePayment].Count)
	assert.Equal(t, "300", got.ByType[models.TransactionTypePayment].Volume.String())
	assert.Equal(t, 1, got.ByType[models.TransactionTypeDeposit].Count)
	assert.Equal(t, 1, got.ByType[models.TransactionTypeWithdrawal].Count)

	require.Len(t, got.ByStatus, 2)
	assert.Equal(t, 3, got.ByStatus[models.StatusCompleted].Count)
	assert.Equal(t, "950.5", got.ByStatus[models.StatusCompleted].Volume.String())
	assert.Equal(t, 1, got.ByStatus[models.StatusFailed].Count)
}

func TestSummarizeEmptyWindow(t *testing.T) {
	store := history.NewMemoryStore()
	userID := uuid.New()
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	r, err := reporting.NewReporter(zap.NewNop(), store)
	require.NoError(t, err)

	got, err := r.Summarize(context.Background(), userID, base, base.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, 0, got.Count)
	assert.True(t, got.TotalVolume.IsZero())
	assert.True(t, got.AverageAmount.IsZero())
	assert.True(t, got.MinAmount.IsZero())
	assert.True(t, got.MaxAmount.IsZero())
	assert.Empty(t, got.ByType)
	assert.Empty(t, got.ByStatus)
}

func TestSummarizeAverageRounding(t *testing.T) {
	store := history.NewMemoryStore()
	userID := uuid.New()
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	// 100 split three ways averages to 33.333..., reported as 33.33.
	seedTxn(t, store, userID, 40, models.TransactionTypePayment, models.StatusCompleted, base)
	seedTxn(t, store, userID, 35, models.TransactionTypePayment, models.StatusCompleted, base.Add(time.Minute))
	seedTxn(t, store, userID, 25, models.TransactionTypePayment, models.StatusCompleted, base.Add(2*time.Minute))

	r, err := reporting.NewReporter(zap.NewNop(), store)
	require.NoError(t, err)

	got, err := r.Summarize(context.Background(), userID, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "33.33", got.AverageAmount.String())
}

func TestSummarizeInvertedWindow(t *testing.T) {
	r, err := reporting.NewReporter(zap.NewNop(), history.NewMemoryStore())
	require.NoError(t, err)

	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	_, err = r.Summarize(context.Background(), uuid.New(), base, base.Add(-time.Hour))
	assert.Error(t, err)
}

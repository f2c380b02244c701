package stream_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclear/guardrail/internal/compliance"
	"github.com/openclear/guardrail/internal/config"
	"github.com/openclear/guardrail/internal/evaluation"
	"github.com/openclear/guardrail/internal/risk"
	"github.com/openclear/guardrail/internal/screening"
	"github.com/openclear/guardrail/internal/stream"
	"github.com/openclear/guardrail/pkg/models"
)

type emptyHistory struct{}

func (emptyHistory) UserTransactions(context.Context, uuid.UUID, time.Time, time.Time) ([]models.Transaction, error) {
	return nil, nil
}

func newOrchestrator(t *testing.T) *evaluation.Orchestrator {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.DefaultConfig()

	screener, err := screening.NewScreener(logger.Sugar(), cfg.Screening)
	require.NoError(t, err)
	assessor, err := risk.NewAssessor(logger, emptyHistory{}, screener, cfg.Risk, nil)
	require.NoError(t, err)
	monitor, err := compliance.NewMonitor(logger, emptyHistory{}, cfg.Limits, cfg.AML, nil)
	require.NoError(t, err)

	orch, err := evaluation.NewOrchestrator(logger, assessor, monitor, screener, nil, nil, nil)
	require.NoError(t, err)
	return orch
}

func streamConfig() *stream.Config {
	return &stream.Config{
		Brokers:       []string{"localhost:9092"},
		RequestTopic:  "guardrail.requests",
		DecisionTopic: "guardrail.decisions",
		GroupID:       "guardrail-evaluator",
		Workers:       1,
	}
}

func TestNewProcessorValidation(t *testing.T) {
	orch := newOrchestrator(t)

	_, err := stream.NewProcessor(nil, orch, streamConfig())
	assert.Error(t, err)

	_, err = stream.NewProcessor(zap.NewNop(), nil, streamConfig())
	assert.Error(t, err)

	_, err = stream.NewProcessor(zap.NewNop(), orch, nil)
	assert.Error(t, err)

	cfg := streamConfig()
	cfg.Brokers = nil
	_, err = stream.NewProcessor(zap.NewNop(), orch, cfg)
	assert.Error(t, err)

	cfg = streamConfig()
	cfg.DecisionTopic = ""
	_, err = stream.NewProcessor(zap.NewNop(), orch, cfg)
	assert.Error(t, err)

	cfg = streamConfig()
	cfg.GroupID = ""
	_, err = stream.NewProcessor(zap.NewNop(), orch, cfg)
	assert.Error(t, err)
}

func TestProcessEvaluatesPayload(t *testing.T) {
	processor, err := stream.NewProcessor(zap.NewNop(), newOrchestrator(t), streamConfig())
	require.NoError(t, err)

	proposed := models.ProposedTransaction{
		UserID:   uuid.New(),
		Type:     models.TransactionTypePayment,
		Amount:   decimal.NewFromInt(250),
		Currency: "USD",
	}
	payload, err := json.Marshal(proposed)
	require.NoError(t, err)

	decision, err := processor.Process(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, proposed.UserID, decision.UserID)
	assert.Equal(t, evaluation.StatusCompleted, decision.Status)
}

func TestProcessRejectsMalformedPayload(t *testing.T) {
	processor, err := stream.NewProcessor(zap.NewNop(), newOrchestrator(t), streamConfig())
	require.NoError(t, err)

	_, err = processor.Process(context.Background(), []byte("{not json"))
	assert.Error(t, err)
}

func TestProcessRejectsInvalidTransaction(t *testing.T) {
	processor, err := stream.NewProcessor(zap.NewNop(), newOrchestrator(t), streamConfig())
	require.NoError(t, err)

	payload, err := json.Marshal(models.ProposedTransaction{
		Type:   models.TransactionTypePayment,
		Amount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	_, err = processor.Process(context.Background(), payload)
	assert.Error(t, err)
}

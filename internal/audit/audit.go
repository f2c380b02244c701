// Package audit records evaluation outcomes to pluggable sinks. Every
// decision leaves a trail: what was proposed, how it scored, which
// limits or patterns it tripped, and what the pipeline decided.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Actions recorded by the evaluation pipeline.
const (
	ActionEvaluated = "transaction_evaluated"
)

// Event is one audit record. Slice fields are stored as JSON columns
// when persisted through the store sink.
type Event struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	UserID      uuid.UUID       `json:"user_id" gorm:"type:uuid;index"`
	Action      string          `json:"action" gorm:"type:varchar(64);index"`
	Status      string          `json:"status" gorm:"type:varchar(20)"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(20,8)"`
	Currency    string          `json:"currency" gorm:"type:varchar(10)"`
	RiskScore   int             `json:"risk_score"`
	RiskLevel   string          `json:"risk_level" gorm:"type:varchar(20)"`
	RiskFactors []string        `json:"risk_factors" gorm:"type:text;serializer:json"`
	Violations  []string        `json:"violations" gorm:"type:text;serializer:json"`
	AMLReasons  []string        `json:"aml_reasons" gorm:"type:text;serializer:json"`
	CreatedAt   time.Time       `json:"created_at" gorm:"index"`
}

// TableName sets the audit table name.
func (Event) TableName() string {
	return "audit_events"
}

// Validate checks the fields every event must carry.
func (e *Event) Validate() error {
	if e.UserID == uuid.Nil {
		return fmt.Errorf("event user id is required")
	}
	if e.Action == "" {
		return fmt.Errorf("event action is required")
	}
	return nil
}

// Sink receives audit events.
type Sink interface {
	Write(ctx context.Context, event *Event) error
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wraps a logger.
func NewLogSink(logger *zap.Logger) (*LogSink, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &LogSink{logger: logger}, nil
}

// Write logs the event at info level.
func (s *LogSink) Write(_ context.Context, event *Event) error {
	s.logger.Info("audit event",
		zap.String("event_id", event.ID.String()),
		zap.String("user_id", event.UserID.String()),
		zap.String("action", event.Action),
		zap.String("status", event.Status),
		zap.String("amount", event.Amount.String()),
		zap.String("currency", event.Currency),
		zap.Int("risk_score", event.RiskScore),
		zap.String("risk_level", event.RiskLevel),
		zap.Strings("risk_factors", event.RiskFactors),
		zap.Strings("violations", event.Violations),
		zap.Strings("aml_reasons", event.AMLReasons))
	return nil
}

// MultiSink fans one event out to several sinks. Every sink sees the
// event even when an earlier one fails.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Write delivers the event to all sinks and joins any errors.
func (m *MultiSink) Write(ctx context.Context, event *Event) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package evaluation runs the full decision pipeline for a proposed
// transaction: sanctions screening, risk assessment, limit and AML
// checks, folded into a single decision the caller can act on.
package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openclear/guardrail/internal/audit"
	"github.com/openclear/guardrail/internal/compliance"
	"github.com/openclear/guardrail/internal/observability"
	"github.com/openclear/guardrail/internal/risk"
	"github.com/openclear/guardrail/internal/screening"
	"github.com/openclear/guardrail/pkg/models"
)

// Status is the pipeline's recommendation for a proposed transaction.
type Status string

const (
	// StatusBlocked rejects the transaction outright; limits were violated.
	StatusBlocked Status = "blocked"
	// StatusPending holds the transaction for manual approval.
	StatusPending Status = "pending"
	// StatusProcessing lets the transaction proceed under review.
	StatusProcessing Status = "processing"
	// StatusCompleted clears the transaction.
	StatusCompleted Status = "completed"
)

// Decision bundles the outcome of one evaluation. The caller persists
// it and acts on Status; pending and processing decisions expect a
// later approve or reject step outside this library.
type Decision struct {
	ID          uuid.UUID                   `json:"id"`
	UserID      uuid.UUID                   `json:"user_id"`
	Status      Status                      `json:"status"`
	Risk        *risk.Assessment            `json:"risk_assessment"`
	Compliance  *compliance.Result          `json:"compliance_result"`
	AML         *compliance.AMLRequirements `json:"aml_requirements"`
	EvaluatedAt time.Time                   `json:"evaluated_at"`
}

// Orchestrator coordinates screening, risk scoring and compliance
// checks for proposed transactions.
type Orchestrator struct {
	logger   *zap.Logger
	assessor *risk.Assessor
	monitor  *compliance.Monitor
	screener *screening.Screener
	trail    *audit.Trail
	obs      *observability.Manager
	validate *validator.Validate
	clock    func() time.Time
}

// NewOrchestrator wires the pipeline. Logger, assessor and monitor are
// required. The rest are optional: a nil screener skips counterparty
// enrichment, a nil trail skips audit events, a nil obs skips metrics,
// a nil clock uses time.Now.
func NewOrchestrator(
	logger *zap.Logger,
	assessor *risk.Assessor,
	monitor *compliance.Monitor,
	screener *screening.Screener,
	trail *audit.Trail,
	obs *observability.Manager,
	clock func() time.Time,
) (*Orchestrator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if assessor == nil {
		return nil, fmt.Errorf("risk assessor is required")
	}
	if monitor == nil {
		return nil, fmt.Errorf("compliance monitor is required")
	}
	if clock == nil {
		clock = time.Now
	}

	return &Orchestrator{
		logger:   logger,
		assessor: assessor,
		monitor:  monitor,
		screener: screener,
		trail:    trail,
		obs:      obs,
		validate: validator.New(),
		clock:    clock,
	}, nil
}

// Evaluate runs the pipeline for one proposed transaction. The only
// error return is invalid input; risk and compliance failures surface
// as fail-closed results inside the decision, never as errors.
func (o *Orchestrator) Evaluate(ctx context.Context, proposed models.ProposedTransaction) (*Decision, error) {
	started := o.clock()
	if err := o.validateProposed(proposed); err != nil {
		return nil, err
	}

	if o.screener != nil && proposed.Counterparty != nil {
		enriched := o.screener.Screen(*proposed.Counterparty)
		proposed.Counterparty = &enriched
		if enriched.SanctionsHit && o.obs != nil {
			o.obs.TrackSanctionsHit(ctx)
		}
	}

	assessment := o.assessor.Assess(ctx, proposed)
	limits := o.monitor.CheckLimits(ctx, proposed.UserID, proposed.Amount)
	aml := o.monitor.CheckAML(ctx, proposed.UserID, proposed.Amount)

	decision := &Decision{
		ID:          uuid.New(),
		UserID:      proposed.UserID,
		Status:      deriveStatus(&assessment, &limits),
		Risk:        &assessment,
		Compliance:  &limits,
		AML:         &aml,
		EvaluatedAt: o.clock().UTC(),
	}

	o.logger.Info("transaction evaluated",
		zap.String("decision_id", decision.ID.String()),
		zap.String("user_id", proposed.UserID.String()),
		zap.String("status", string(decision.Status)),
		zap.String("risk_level", string(assessment.Level)),
		zap.Int("risk_score", assessment.Score))

	o.record(ctx, proposed, decision)
	o.track(ctx, decision, o.clock().Sub(started))

	return decision, nil
}

func (o *Orchestrator) validateProposed(proposed models.ProposedTransaction) error {
	if err := o.validate.Struct(proposed); err != nil {
		return fmt.Errorf("invalid proposed transaction: %w", err)
	}
	if !proposed.Type.Valid() {
		return fmt.Errorf("unknown transaction type %q", proposed.Type)
	}
	if proposed.Amount.IsNegative() {
		return fmt.Errorf("amount must not be negative")
	}
	return nil
}

// deriveStatus applies the decision policy: limit violations block the
// transaction regardless of risk, then the risk level picks the
// initial lifecycle status.
func deriveStatus(assessment *risk.Assessment, limits *compliance.Result) Status {
	if !limits.Compliant {
		return StatusBlocked
	}
	switch assessment.Level {
	case risk.LevelCritical:
		return StatusPending
	case risk.LevelHigh:
		return StatusProcessing
	default:
		return StatusCompleted
	}
}

func (o *Orchestrator) record(ctx context.Context, proposed models.ProposedTransaction, decision *Decision) {
	if o.trail == nil {
		return
	}
	event := &audit.Event{
		UserID:      decision.UserID,
		Action:      audit.ActionEvaluated,
		Status:      string(decision.Status),
		Amount:      proposed.Amount,
		Currency:    proposed.Currency,
		RiskScore:   decision.Risk.Score,
		RiskLevel:   string(decision.Risk.Level),
		RiskFactors: decision.Risk.Factors,
		Violations:  violationTypes(decision.Compliance.Violations),
		AMLReasons:  decision.AML.Reasons,
		CreatedAt:   decision.EvaluatedAt,
	}
	if err := o.trail.Record(ctx, event); err != nil {
		o.logger.Warn("failed to record audit event",
			zap.String("decision_id", decision.ID.String()),
			zap.Error(err))
	}
}

func (o *Orchestrator) track(ctx context.Context, decision *Decision, duration time.Duration) {
	if o.obs == nil {
		return
	}
	o.obs.TrackEvaluation(ctx, string(decision.Status), string(decision.Risk.Level), decision.Risk.Score, duration)
	for _, violation := range decision.Compliance.Violations {
		o.obs.TrackViolation(ctx, violation.Type)
	}
	o.obs.TrackAMLFlags(ctx, decision.AML.KYCRequired, decision.AML.EnhancedDueDiligence, decision.AML.SuspiciousActivityReport)
}

func violationTypes(violations []compliance.Violation) []string {
	if len(violations) == 0 {
		return nil
	}
	types := make([]string, 0, len(violations))
	for _, violation := range violations {
		types = append(types, violation.Type)
	}
	return types
}

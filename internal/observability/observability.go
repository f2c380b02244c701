// Package observability provides metrics and tracing for the
// evaluation pipeline.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/openclear/guardrail"

// AML flag labels.
const (
	FlagKYCRequired          = "kyc_required"
	FlagEnhancedDueDiligence = "enhanced_due_diligence"
	FlagSuspiciousActivity   = "suspicious_activity_report"
)

// Metrics defines Prometheus metrics for the evaluation pipeline.
type Metrics struct {
	EvaluationsTotal   prometheus.CounterVec
	EvaluationDuration prometheus.HistogramVec
	RiskScores         prometheus.HistogramVec
	LimitViolations    prometheus.CounterVec
	AMLFlags           prometheus.CounterVec
	SanctionsHits      prometheus.Counter
}

// NewMetrics creates and registers the pipeline metrics. A nil
// registerer falls back to the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EvaluationsTotal: *factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transaction_evaluations_total",
				Help: "Total number of transaction evaluations performed",
			},
			[]string{"status", "risk_level"},
		),
		EvaluationDuration: *factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transaction_evaluation_duration_seconds",
				Help:    "Duration of transaction evaluations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		RiskScores: *factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "risk_score_distribution",
				Help:    "Distribution of risk scores",
				Buckets: []float64{0, 10, 25, 50, 75, 90, 100},
			},
			[]string{"risk_level"},
		),
		LimitViolations: *factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limit_violations_total",
				Help: "Total number of limit violations detected",
			},
			[]string{"violation_type"},
		),
		AMLFlags: *factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aml_flags_total",
				Help: "Total number of AML flags raised",
			},
			[]string{"flag"},
		),
		SanctionsHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sanctions_hits_total",
				Help: "Total number of sanctions screening hits",
			},
		),
	}
}

// Manager bundles metrics, tracing and logging for pipeline events.
type Manager struct {
	metrics *Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewManager creates an observability manager. A nil registerer uses
// the default Prometheus registry.
func NewManager(logger *zap.Logger, reg prometheus.Registerer) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Manager{
		metrics: NewMetrics(reg),
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// TrackEvaluation records one completed evaluation.
func (m *Manager) TrackEvaluation(ctx context.Context, status, riskLevel string, riskScore int, duration time.Duration) {
	_, span := m.tracer.Start(ctx, "transaction_evaluation")
	defer span.End()

	span.SetAttributes(
		attribute.String("status", status),
		attribute.String("risk_level", riskLevel),
		attribute.Int("risk_score", riskScore),
		attribute.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	)

	m.metrics.EvaluationsTotal.WithLabelValues(status, riskLevel).Inc()
	m.metrics.EvaluationDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.metrics.RiskScores.WithLabelValues(riskLevel).Observe(float64(riskScore))

	m.logger.Info("transaction evaluated",
		zap.String("status", status),
		zap.String("risk_level", riskLevel),
		zap.Int("risk_score", riskScore),
		zap.Duration("duration", duration),
	)
}

// TrackViolation records a limit violation.
func (m *Manager) TrackViolation(ctx context.Context, violationType string) {
	_, span := m.tracer.Start(ctx, "limit_violation")
	defer span.End()

	span.SetAttributes(attribute.String("violation_type", violationType))
	m.metrics.LimitViolations.WithLabelValues(violationType).Inc()

	m.logger.Warn("limit violation detected",
		zap.String("violation_type", violationType),
	)
}

// TrackAMLFlags records which AML requirements an evaluation raised.
func (m *Manager) TrackAMLFlags(ctx context.Context, kycRequired, enhancedDueDiligence, sarRequired bool) {
	_, span := m.tracer.Start(ctx, "aml_check")
	defer span.End()

	span.SetAttributes(
		attribute.Bool("kyc_required", kycRequired),
		attribute.Bool("enhanced_due_diligence", enhancedDueDiligence),
		attribute.Bool("suspicious_activity_report", sarRequired),
	)

	if kycRequired {
		m.metrics.AMLFlags.WithLabelValues(FlagKYCRequired).Inc()
	}
	if enhancedDueDiligence {
		m.metrics.AMLFlags.WithLabelValues(FlagEnhancedDueDiligence).Inc()
	}
	if sarRequired {
		m.metrics.AMLFlags.WithLabelValues(FlagSuspiciousActivity).Inc()
		m.logger.Warn("suspicious activity report required")
	}
}

// TrackSanctionsHit records a sanctions screening hit.
func (m *Manager) TrackSanctionsHit(ctx context.Context) {
	_, span := m.tracer.Start(ctx, "sanctions_hit")
	defer span.End()

	m.metrics.SanctionsHits.Inc()
}

// Metrics returns the metrics instance for external use.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

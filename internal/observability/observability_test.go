package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclear/guardrail/internal/observability"
)

func newManager(t *testing.T) *observability.Manager {
	t.Helper()
	manager, err := observability.NewManager(zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	return manager
}

func TestNewManagerRequiresLogger(t *testing.T) {
	_, err := observability.NewManager(nil, prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestTrackEvaluationCounts(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()

	manager.TrackEvaluation(ctx, "completed", "low", 15, 5*time.Millisecond)
	manager.TrackEvaluation(ctx, "completed", "low", 0, 3*time.Millisecond)
	manager.TrackEvaluation(ctx, "blocked", "critical", 100, 8*time.Millisecond)

	metrics := manager.Metrics()
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.EvaluationsTotal.WithLabelValues("completed", "low")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EvaluationsTotal.WithLabelValues("blocked", "critical")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.RiskScores))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.EvaluationDuration))
}

func TestTrackViolationCountsByType(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()

	manager.TrackViolation(ctx, "daily_limit_exceeded")
	manager.TrackViolation(ctx, "daily_limit_exceeded")
	manager.TrackViolation(ctx, "monthly_limit_exceeded")

	metrics := manager.Metrics()
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LimitViolations.WithLabelValues("daily_limit_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LimitViolations.WithLabelValues("monthly_limit_exceeded")))
}

func TestTrackAMLFlagsCountsOnlyRaised(t *testing.T) {
	manager := newManager(t)

	manager.TrackAMLFlags(context.Background(), true, false, true)

	metrics := manager.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AMLFlags.WithLabelValues(observability.FlagKYCRequired)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.AMLFlags.WithLabelValues(observability.FlagEnhancedDueDiligence)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AMLFlags.WithLabelValues(observability.FlagSuspiciousActivity)))
}

func TestTrackSanctionsHit(t *testing.T) {
	manager := newManager(t)

	manager.TrackSanctionsHit(context.Background())
	manager.TrackSanctionsHit(context.Background())

	assert.Equal(t, 2.0, testutil.ToFloat64(manager.Metrics().SanctionsHits))
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := observability.InitTracing(context.Background(), "guardrail-test", false, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

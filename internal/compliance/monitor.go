// Package compliance checks proposed transactions against aggregate
// limits and anti-money-laundering rules. Both checks fail closed: when
// usage cannot be established the transaction is reported non-compliant,
// and when patterns cannot be examined the strictest review requirements
// are returned.
package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openclear/guardrail/internal/config"
	"github.com/openclear/guardrail/internal/history"
	"github.com/openclear/guardrail/pkg/models"
)

// Violation types reported by CheckLimits.
const (
	ViolationDailyLimit   = "daily_limit_exceeded"
	ViolationMonthlyLimit = "monthly_limit_exceeded"
	ViolationMonitoring   = "monitoring_error"
)

// Violation records one exceeded limit.
type Violation struct {
	Type      string          `json:"type"`
	Current   decimal.Decimal `json:"current"`
	Limit     decimal.Decimal `json:"limit"`
	Attempted decimal.Decimal `json:"attempted"`
}

// Usage reports aggregate spending against one limit. Current excludes
// the proposed amount; Remaining is measured against Current.
type Usage struct {
	Current   decimal.Decimal `json:"current"`
	Limit     decimal.Decimal `json:"limit"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Result is the outcome of a limit check. Compliant is true exactly when
// Violations is empty.
type Result struct {
	Compliant    bool        `json:"compliant"`
	Violations   []Violation `json:"violations"`
	DailyUsage   Usage       `json:"daily_usage"`
	MonthlyUsage Usage       `json:"monthly_usage"`
	CheckedAt    time.Time   `json:"checked_at"`
}

// AMLRequirements lists the review obligations for a proposed transaction.
type AMLRequirements struct {
	KYCRequired              bool     `json:"kyc_required"`
	EnhancedDueDiligence     bool     `json:"enhanced_due_diligence"`
	SuspiciousActivityReport bool     `json:"suspicious_activity_report"`
	TransactionMonitoring    bool     `json:"transaction_monitoring"`
	Reasons                  []string `json:"reasons"`
}

// Monitor runs limit and AML checks against transaction history.
type Monitor struct {
	logger  *zap.Logger
	history history.Provider
	aml     config.AMLConfig
	clock   func() time.Time

	dailyLimit      decimal.Decimal
	monthlyLimit    decimal.Decimal
	kycThreshold    decimal.Decimal
	eddThreshold    decimal.Decimal
	roundDivisor    decimal.Decimal
	structuringLow  decimal.Decimal
	structuringHigh decimal.Decimal
}

// NewMonitor builds a monitor from the limits and AML policy. A nil
// clock defaults to time.Now.
func NewMonitor(logger *zap.Logger, provider history.Provider, limits config.LimitsConfig, aml config.AMLConfig, clock func() time.Time) (*Monitor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("history provider is required")
	}
	if aml.PatternWindowDays <= 0 {
		return nil, fmt.Errorf("pattern window must be positive, got %d days", aml.PatternWindowDays)
	}
	if clock == nil {
		clock = time.Now
	}

	reporting := decimal.NewFromFloat(aml.ReportingThreshold)
	margin := decimal.NewFromFloat(aml.StructuringMargin)

	return &Monitor{
		logger:          logger,
		history:         provider,
		aml:             aml,
		clock:           clock,
		dailyLimit:      decimal.NewFromFloat(limits.DailyLimit),
		monthlyLimit:    decimal.NewFromFloat(limits.MonthlyLimit),
		kycThreshold:    decimal.NewFromFloat(aml.KYCThreshold),
		eddThreshold:    decimal.NewFromFloat(aml.EDDThreshold),
		roundDivisor:    decimal.NewFromFloat(aml.RoundAmountDivisor),
		structuringLow:  reporting.Sub(margin),
		structuringHigh: reporting,
	}, nil
}

// CheckLimits verifies the proposed amount against the daily and monthly
// aggregate limits. Usage counts completed transactions only, bucketed
// by calendar day and calendar month in UTC. It never returns an error:
// a failed usage query yields a non-compliant result with a single
// monitoring_error violation.
func (m *Monitor) CheckLimits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (result Result) {
	now := m.clock().UTC()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("limit check panicked, failing closed",
				zap.String("user_id", userID.String()),
				zap.Any("panic", r))
			result = monitoringErrorResult(amount, now)
		}
	}()

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	txns, err := m.history.UserTransactions(ctx, userID, monthStart, monthEnd)
	if err != nil {
		m.logger.Error("usage query failed, failing closed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return monitoringErrorResult(amount, now)
	}

	daily := decimal.Zero
	monthly := decimal.Zero
	for _, txn := range txns {
		if txn.Status != models.StatusCompleted {
			continue
		}
		monthly = monthly.Add(txn.Amount)
		if !txn.CreatedAt.Before(dayStart) && txn.CreatedAt.Before(dayEnd) {
			daily = daily.Add(txn.Amount)
		}
	}

	violations := make([]Violation, 0, 2)
	if daily.Add(amount).GreaterThan(m.dailyLimit) {
		violations = append(violations, Violation{
			Type:      ViolationDailyLimit,
			Current:   daily,
			Limit:     m.dailyLimit,
			Attempted: amount,
		})
	}
	if monthly.Add(amount).GreaterThan(m.monthlyLimit) {
		violations = append(violations, Violation{
			Type:      ViolationMonthlyLimit,
			Current:   monthly,
			Limit:     m.monthlyLimit,
			Attempted: amount,
		})
	}

	return Result{
		Compliant:  len(violations) == 0,
		Violations: violations,
		DailyUsage: Usage{
			Current:   daily,
			Limit:     m.dailyLimit,
			Remaining: m.dailyLimit.Sub(daily),
		},
		MonthlyUsage: Usage{
			Current:   monthly,
			Limit:     m.monthlyLimit,
			Remaining: m.monthlyLimit.Sub(monthly),
		},
		CheckedAt: now,
	}
}

// CheckAML evaluates review thresholds on the proposed amount and scans
// the trailing pattern window for suspicious activity. It never returns
// an error: a failed window query yields the strictest requirements.
func (m *Monitor) CheckAML(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (requirements AMLRequirements) {
	now := m.clock().UTC()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("aml check panicked, failing closed",
				zap.String("user_id", userID.String()),
				zap.Any("panic", r))
			requirements = amlErrorRequirements()
		}
	}()

	req := AMLRequirements{
		TransactionMonitoring: true,
		Reasons:               make([]string, 0, 2),
	}

	if amount.GreaterThanOrEqual(m.kycThreshold) {
		req.KYCRequired = true
		req.Reasons = append(req.Reasons, "Large transaction amount")
	}
	if amount.GreaterThanOrEqual(m.eddThreshold) {
		req.EnhancedDueDiligence = true
		req.Reasons = append(req.Reasons, "Very large transaction amount")
	}

	from := now.AddDate(0, 0, -m.aml.PatternWindowDays)
	txns, err := m.history.UserTransactions(ctx, userID, from, now)
	if err != nil {
		m.logger.Error("pattern window query failed, failing closed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return amlErrorRequirements()
	}

	patterns := m.detectPatterns(txns)
	if len(patterns) > 0 {
		req.SuspiciousActivityReport = true
		req.Reasons = append(req.Reasons, patterns...)
	}

	return req
}

// detectPatterns scans the window for structuring signals. All statuses
// count: failed and cancelled attempts still reveal intent.
func (m *Monitor) detectPatterns(txns []models.Transaction) []string {
	var patterns []string

	if len(txns) > m.aml.HighFrequencyCount {
		patterns = append(patterns, "High frequency transactions")
	}

	round := 0
	nearThreshold := 0
	for _, txn := range txns {
		if txn.Amount.Mod(m.roundDivisor).IsZero() {
			round++
		}
		if txn.Amount.GreaterThanOrEqual(m.structuringLow) && txn.Amount.LessThanOrEqual(m.structuringHigh) {
			nearThreshold++
		}
	}
	if round > m.aml.RoundAmountMaxCount {
		patterns = append(patterns, "Multiple round number transactions")
	}
	if nearThreshold > m.aml.StructuringMaxCount {
		patterns = append(patterns, "Multiple transactions just under reporting threshold")
	}

	return patterns
}

func monitoringErrorResult(amount decimal.Decimal, at time.Time) Result {
	return Result{
		Compliant:  false,
		Violations: []Violation{{Type: ViolationMonitoring, Attempted: amount}},
		CheckedAt:  at,
	}
}

func amlErrorRequirements() AMLRequirements {
	return AMLRequirements{
		KYCRequired:           true,
		EnhancedDueDiligence:  true,
		TransactionMonitoring: true,
		Reasons:               []string{"AML check error"},
	}
}

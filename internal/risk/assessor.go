// Package risk computes composite risk scores for proposed transactions.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openclear/guardrail/internal/config"
	"github.com/openclear/guardrail/internal/history"
	"github.com/openclear/guardrail/pkg/models"
)

// Level bands a risk score into an actionable severity.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Band boundaries. Scores below mediumBand are low.
const (
	mediumBand   = 30
	highBand     = 50
	criticalBand = 70
)

// Factor score contributions. These are part of the scoring algorithm,
// not policy, so they are fixed rather than configured.
const (
	scoreHighAmount          = 30
	scoreMediumAmount        = 15
	scoreHighFrequency       = 25
	scoreMediumFrequency     = 10
	scoreHighFailureRate     = 20
	scoreElevatedFailureRate = 10
	scoreFrequentLarge       = 15
	scoreHistoryUnavailable  = 50
	scoreHighRiskType        = 20
	scoreHighRiskCountry     = 30
	scoreNewCounterparty     = 15
	scoreSanctionsHit        = 50

	failSafeScore = 100
)

// Assessment is the outcome of scoring one proposed transaction.
type Assessment struct {
	Score                int       `json:"risk_score"`
	Level                Level     `json:"risk_level"`
	Factors              []string  `json:"risk_factors"`
	RequiresApproval     bool      `json:"requires_approval"`
	RequiresVerification bool      `json:"requires_additional_verification"`
	AssessedAt           time.Time `json:"assessed_at"`
}

// CountryRisk answers whether a jurisdiction is on the high-risk list.
type CountryRisk interface {
	IsHighRiskCountry(code string) bool
}

// Assessor scores proposed transactions. Factors are evaluated in a fixed
// order (amount, user history, transaction type, counterparty) so the
// factor list is reproducible for identical inputs.
type Assessor struct {
	logger    *zap.Logger
	history   history.Provider
	countries CountryRisk
	cfg       config.RiskConfig
	clock     func() time.Time

	highAmount        decimal.Decimal
	mediumAmount      decimal.Decimal
	largeAmount       decimal.Decimal
	highFailureRate   decimal.Decimal
	mediumFailureRate decimal.Decimal
}

// NewAssessor builds an assessor from the risk policy. A nil clock
// defaults to time.Now.
func NewAssessor(logger *zap.Logger, provider history.Provider, countries CountryRisk, cfg config.RiskConfig, clock func() time.Time) (*Assessor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("history provider is required")
	}
	if countries == nil {
		return nil, fmt.Errorf("country risk list is required")
	}
	if cfg.HistoryWindowDays <= 0 {
		return nil, fmt.Errorf("history window must be positive, got %d days", cfg.HistoryWindowDays)
	}
	if clock == nil {
		clock = time.Now
	}

	return &Assessor{
		logger:            logger,
		history:           provider,
		countries:         countries,
		cfg:               cfg,
		clock:             clock,
		highAmount:        decimal.NewFromFloat(cfg.HighAmountThreshold),
		mediumAmount:      decimal.NewFromFloat(cfg.MediumAmountThreshold),
		largeAmount:       decimal.NewFromFloat(cfg.LargeAmountThreshold),
		highFailureRate:   decimal.NewFromFloat(cfg.HighFailureRate),
		mediumFailureRate: decimal.NewFromFloat(cfg.MediumFailureRate),
	}, nil
}

// Assess scores a proposed transaction. It never returns an error: a
// failed history lookup and any panic both yield the fail-safe critical
// assessment, and unusable history data scores its factor conservatively.
// Assessment failures must block, not approve.
func (a *Assessor) Assess(ctx context.Context, proposed models.ProposedTransaction) (assessment Assessment) {
	now := a.clock().UTC()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("risk assessment panicked, failing closed",
				zap.String("user_id", proposed.UserID.String()),
				zap.Any("panic", r))
			assessment = failSafeAssessment(now)
		}
	}()

	score := 0
	factors := make([]string, 0, 4)

	switch {
	case proposed.Amount.GreaterThan(a.highAmount):
		score += scoreHighAmount
		factors = append(factors, "High transaction amount")
	case proposed.Amount.GreaterThan(a.mediumAmount):
		score += scoreMediumAmount
		factors = append(factors, "Medium transaction amount")
	}

	from := now.AddDate(0, 0, -a.cfg.HistoryWindowDays)
	txns, err := a.history.UserTransactions(ctx, proposed.UserID, from, now)
	if err != nil {
		a.logger.Error("transaction history unavailable, failing closed",
			zap.String("user_id", proposed.UserID.String()),
			zap.Error(err))
		return failSafeAssessment(now)
	}

	historyScore, historyFactors := a.scoreHistory(txns)
	score += historyScore
	factors = append(factors, historyFactors...)

	if proposed.Type == models.TransactionTypeWithdrawal || proposed.Type == models.TransactionTypeTransfer {
		score += scoreHighRiskType
		factors = append(factors, fmt.Sprintf("High-risk transaction type: %s", proposed.Type))
	}

	if cp := proposed.Counterparty; cp != nil {
		if a.countries.IsHighRiskCountry(cp.Country) {
			score += scoreHighRiskCountry
			factors = append(factors, "High-risk counterparty country")
		}
		if cp.IsNew {
			score += scoreNewCounterparty
			factors = append(factors, "New counterparty")
		}
		if cp.SanctionsHit {
			score += scoreSanctionsHit
			factors = append(factors, "Counterparty sanctions hit")
		}
	}

	level := LevelForScore(score)
	return Assessment{
		Score:                score,
		Level:                level,
		Factors:              factors,
		RequiresApproval:     level == LevelHigh || level == LevelCritical,
		RequiresVerification: level == LevelCritical,
		AssessedAt:           now,
	}
}

// scoreHistory scores the user's behavior over the trailing window.
// Unusable history data is itself a risk factor, scored conservatively
// without aborting the remaining factors.
func (a *Assessor) scoreHistory(txns []models.Transaction) (int, []string) {
	stats, err := historyStats(txns, a.largeAmount)
	if err != nil {
		a.logger.Warn("history stats unusable, scoring conservatively", zap.Error(err))
		return scoreHistoryUnavailable, []string{"User risk assessment error"}
	}

	score := 0
	var factors []string

	switch {
	case stats.count > a.cfg.HighFrequencyCount:
		score += scoreHighFrequency
		factors = append(factors, "High transaction frequency")
	case stats.count > a.cfg.MediumFrequencyCount:
		score += scoreMediumFrequency
		factors = append(factors, "Medium transaction frequency")
	}

	if stats.count > 0 {
		// failed/count > rate compared as failed > rate*count to keep
		// the comparison exact.
		failedDec := decimal.NewFromInt(int64(stats.failed))
		countDec := decimal.NewFromInt(int64(stats.count))
		switch {
		case failedDec.GreaterThan(a.highFailureRate.Mul(countDec)):
			score += scoreHighFailureRate
			factors = append(factors, "High transaction failure rate")
		case failedDec.GreaterThan(a.mediumFailureRate.Mul(countDec)):
			score += scoreElevatedFailureRate
			factors = append(factors, "Elevated transaction failure rate")
		}

		if stats.large > a.cfg.LargeAmountMaxCount {
			score += scoreFrequentLarge
			factors = append(factors, "Frequent large transactions")
		}
	}

	return score, factors
}

type userHistoryStats struct {
	count  int
	failed int
	large  int
}

// historyStats tallies the window. A negative amount means the history
// feed handed back corrupt data, so the whole tally is rejected rather
// than trusted partially.
func historyStats(txns []models.Transaction, largeAmount decimal.Decimal) (userHistoryStats, error) {
	stats := userHistoryStats{count: len(txns)}
	for _, txn := range txns {
		if txn.Amount.IsNegative() {
			return userHistoryStats{}, fmt.Errorf("transaction %s has negative amount %s", txn.ID, txn.Amount)
		}
		if txn.Status == models.StatusFailed {
			stats.failed++
		}
		if txn.Amount.GreaterThan(largeAmount) {
			stats.large++
		}
	}
	return stats, nil
}

// LevelForScore bands a score: below 30 low, below 50 medium, below 70
// high, otherwise critical.
func LevelForScore(score int) Level {
	switch {
	case score >= criticalBand:
		return LevelCritical
	case score >= highBand:
		return LevelHigh
	case score >= mediumBand:
		return LevelMedium
	default:
		return LevelLow
	}
}

func failSafeAssessment(at time.Time) Assessment {
	return Assessment{
		Score:                failSafeScore,
		Level:                LevelCritical,
		Factors:              []string{"Risk assessment error"},
		RequiresApproval:     true,
		RequiresVerification: true,
		AssessedAt:           at,
	}
}

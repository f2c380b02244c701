// Package config holds the evaluation policy and service configuration.
// Policy values (thresholds, limits, country lists) are what compliance
// officers tune; service values (addresses, DSNs, topics) are what
// operators tune. The defaults carry the canonical policy constants.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the evaluation policy configuration.
type Config struct {
	Risk      RiskConfig      `yaml:"risk"`
	Limits    LimitsConfig    `yaml:"limits"`
	AML       AMLConfig       `yaml:"aml"`
	Screening ScreeningConfig `yaml:"screening"`
}

// RiskConfig tunes the risk assessor's thresholds. Factor score
// contributions are part of the scoring algorithm and are not configurable.
type RiskConfig struct {
	HighAmountThreshold   float64 `yaml:"high_amount_threshold" validate:"gt=0"`
	MediumAmountThreshold float64 `yaml:"medium_amount_threshold" validate:"gt=0"`
	HistoryWindowDays     int     `yaml:"history_window_days" validate:"min=1"`
	HighFrequencyCount    int     `yaml:"high_frequency_count" validate:"min=1"`
	MediumFrequencyCount  int     `yaml:"medium_frequency_count" validate:"min=1"`
	HighFailureRate       float64 `yaml:"high_failure_rate" validate:"gt=0,lte=1"`
	MediumFailureRate     float64 `yaml:"medium_failure_rate" validate:"gt=0,lte=1"`
	LargeAmountThreshold  float64 `yaml:"large_amount_threshold" validate:"gt=0"`
	LargeAmountMaxCount   int     `yaml:"large_amount_max_count" validate:"min=1"`
}

// LimitsConfig sets the aggregate transaction limits. Limits apply to all
// users uniformly; there are no per-user overrides.
type LimitsConfig struct {
	DailyLimit   float64 `yaml:"daily_limit" validate:"gt=0"`
	MonthlyLimit float64 `yaml:"monthly_limit" validate:"gt=0"`
}

// AMLConfig tunes the anti-money-laundering checks.
type AMLConfig struct {
	KYCThreshold        float64 `yaml:"kyc_threshold" validate:"gt=0"`
	EDDThreshold        float64 `yaml:"edd_threshold" validate:"gt=0"`
	PatternWindowDays   int     `yaml:"pattern_window_days" validate:"min=1"`
	HighFrequencyCount  int     `yaml:"high_frequency_count" validate:"min=1"`
	RoundAmountDivisor  float64 `yaml:"round_amount_divisor" validate:"gt=0"`
	RoundAmountMaxCount int     `yaml:"round_amount_max_count" validate:"min=1"`
	ReportingThreshold  float64 `yaml:"reporting_threshold" validate:"gt=0"`
	StructuringMargin   float64 `yaml:"structuring_margin" validate:"gt=0"`
	StructuringMaxCount int     `yaml:"structuring_max_count" validate:"min=1"`
}

// ScreeningConfig drives counterparty screening: the high-risk jurisdiction
// list consulted by the risk assessor and the sanctions name list matched
// by the screener.
type ScreeningConfig struct {
	HighRiskCountries []string `yaml:"high_risk_countries"`
	SanctionedNames   []string `yaml:"sanctioned_names"`
	MatchThreshold    float64  `yaml:"match_threshold" validate:"gt=0,lte=1"`
}

// Load reads and validates a policy configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Risk.MediumAmountThreshold >= c.Risk.HighAmountThreshold {
		return fmt.Errorf("risk: medium_amount_threshold must be below high_amount_threshold")
	}
	if c.Risk.MediumFrequencyCount >= c.Risk.HighFrequencyCount {
		return fmt.Errorf("risk: medium_frequency_count must be below high_frequency_count")
	}
	if c.Risk.MediumFailureRate >= c.Risk.HighFailureRate {
		return fmt.Errorf("risk: medium_failure_rate must be below high_failure_rate")
	}
	if c.Limits.DailyLimit > c.Limits.MonthlyLimit {
		return fmt.Errorf("limits: daily_limit must not exceed monthly_limit")
	}
	if c.AML.KYCThreshold > c.AML.EDDThreshold {
		return fmt.Errorf("aml: kyc_threshold must not exceed edd_threshold")
	}
	if c.AML.StructuringMargin >= c.AML.ReportingThreshold {
		return fmt.Errorf("aml: structuring_margin must be below reporting_threshold")
	}
	return nil
}

// DefaultConfig returns the canonical policy values.
func DefaultConfig() *Config {
	return &Config{
		Risk: RiskConfig{
			HighAmountThreshold:   10000,
			MediumAmountThreshold: 5000,
			HistoryWindowDays:     30,
			HighFrequencyCount:    50,
			MediumFrequencyCount:  20,
			HighFailureRate:       0.2,
			MediumFailureRate:     0.1,
			LargeAmountThreshold:  5000,
			LargeAmountMaxCount:   5,
		},
		Limits: LimitsConfig{
			DailyLimit:   50000,
			MonthlyLimit: 500000,
		},
		AML: AMLConfig{
			KYCThreshold:        10000,
			EDDThreshold:        50000,
			PatternWindowDays:   7,
			HighFrequencyCount:  20,
			RoundAmountDivisor:  1000,
			RoundAmountMaxCount: 5,
			ReportingThreshold:  9999,
			StructuringMargin:   500,
			StructuringMaxCount: 2,
		},
		Screening: ScreeningConfig{
			HighRiskCountries: []string{"IR", "KP", "SY", "CU", "MM"},
			SanctionedNames:   []string{},
			MatchThreshold:    0.85,
		},
	}
}

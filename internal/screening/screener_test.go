package screening_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclear/guardrail/internal/config"
	"github.com/openclear/guardrail/internal/screening"
	"github.com/openclear/guardrail/pkg/models"
)

func newScreener(t *testing.T, names []string) *screening.Screener {
	t.Helper()
	s, err := screening.NewScreener(zap.NewNop().Sugar(), config.ScreeningConfig{
		HighRiskCountries: []string{"IR", "KP", "SY"},
		SanctionedNames:   names,
		MatchThreshold:    0.85,
	})
	require.NoError(t, err)
	return s
}

func TestNewScreenerValidation(t *testing.T) {
	_, err := screening.NewScreener(nil, config.ScreeningConfig{MatchThreshold: 0.85})
	assert.Error(t, err)

	_, err = screening.NewScreener(zap.NewNop().Sugar(), config.ScreeningConfig{MatchThreshold: 0})
	assert.Error(t, err)

	_, err = screening.NewScreener(zap.NewNop().Sugar(), config.ScreeningConfig{MatchThreshold: 1.2})
	assert.Error(t, err)
}

func TestIsHighRiskCountry(t *testing.T) {
	s := newScreener(t, nil)

	assert.True(t, s.IsHighRiskCountry("IR"))
	assert.True(t, s.IsHighRiskCountry("kp"))
	assert.True(t, s.IsHighRiskCountry(" sy "))
	assert.False(t, s.IsHighRiskCountry("US"))
	assert.False(t, s.IsHighRiskCountry(""))
}

func TestMatchSanctionsExact(t *testing.T) {
	s := newScreener(t, []string{"Viktor Petrov"})

	match, hit := s.MatchSanctions("Viktor Petrov")
	assert.True(t, hit)
	assert.Equal(t, "Viktor Petrov", match.Name)
	assert.Equal(t, 1.0, match.Score)
}

func TestMatchSanctionsNormalizesAffixesAndCase(t *testing.T) {
	s := newScreener(t, []string{"Acme Holdings Ltd"})

	match, hit := s.MatchSanctions("ACME Holdings")
	assert.True(t, hit)
	assert.Equal(t, "Acme Holdings Ltd", match.Name)
	assert.Equal(t, 1.0, match.Score)
}

func TestMatchSanctionsFoldsDiacritics(t *testing.T) {
	s := newScreener(t, []string{"Müller Handel GmbH"})

	_, hit := s.MatchSanctions("mueller handel")
	assert.True(t, hit)
}

func TestMatchSanctionsFuzzy(t *testing.T) {
	s := newScreener(t, []string{"Viktor Petrov"})

	// One substitution across thirteen characters stays above 0.85.
	match, hit := s.MatchSanctions("Viktor Petrof")
	assert.True(t, hit)
	assert.Greater(t, match.Score, 0.85)
	assert.Less(t, match.Score, 1.0)
}

func TestMatchSanctionsMiss(t *testing.T) {
	s := newScreener(t, []string{"Viktor Petrov"})

	_, hit := s.MatchSanctions("Global Fresh Produce")
	assert.False(t, hit)
}

func TestMatchSanctionsEmptyList(t *testing.T) {
	s := newScreener(t, nil)

	_, hit := s.MatchSanctions("Viktor Petrov")
	assert.False(t, hit)
}

func TestScreenSetsSanctionsHit(t *testing.T) {
	s := newScreener(t, []string{"Viktor Petrov"})

	out := s.Screen(models.CounterpartyInfo{Name: "viktor petrov", Country: "DE"})
	assert.True(t, out.SanctionsHit)

	out = s.Screen(models.CounterpartyInfo{Name: "Global Fresh Produce", Country: "DE"})
	assert.False(t, out.SanctionsHit)
}

func TestScreenKeepsCallerHit(t *testing.T) {
	s := newScreener(t, nil)

	out := s.Screen(models.CounterpartyInfo{Name: "Anyone", SanctionsHit: true})
	assert.True(t, out.SanctionsHit)
}

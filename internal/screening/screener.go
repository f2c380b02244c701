// Package screening matches counterparties against sanctions name lists
// and high-risk jurisdiction lists.
package screening

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/openclear/guardrail/internal/config"
	"github.com/openclear/guardrail/pkg/models"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

	// Diacritics folded before the character strip so "Müller" and
	// "Mueller" normalize to the same form.
	diacritics = strings.NewReplacer(
		"ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss",
		"æ", "ae", "œ", "oe",
		"á", "a", "à", "a", "â", "a",
		"é", "e", "è", "e", "ê", "e",
		"í", "i", "î", "i",
		"ó", "o", "ô", "o",
		"ú", "u", "û", "u",
		"ñ", "n", "ç", "c",
	)

	// Corporate and honorific tokens carry no identity signal.
	commonAffixes = map[string]struct{}{
		"ltd": {}, "llc": {}, "inc": {}, "corp": {}, "co": {}, "company": {},
		"gmbh": {}, "sa": {}, "ag": {}, "plc": {}, "srl": {}, "bv": {}, "oy": {},
		"mr": {}, "mrs": {}, "ms": {}, "dr": {},
	}
)

// Match reports the closest sanctions list entry for a screened name.
type Match struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Screener screens counterparty names against a sanctions list and
// answers high-risk jurisdiction lookups.
type Screener struct {
	logger    *zap.SugaredLogger
	countries map[string]struct{}
	entries   []listEntry
	threshold float64
}

type listEntry struct {
	raw        string
	normalized string
	tokens     map[string]struct{}
}

// NewScreener builds a screener from the screening policy.
func NewScreener(logger *zap.SugaredLogger, cfg config.ScreeningConfig) (*Screener, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.MatchThreshold <= 0 || cfg.MatchThreshold > 1 {
		return nil, fmt.Errorf("match threshold must be in (0, 1], got %v", cfg.MatchThreshold)
	}

	countries := make(map[string]struct{}, len(cfg.HighRiskCountries))
	for _, code := range cfg.HighRiskCountries {
		countries[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}

	entries := make([]listEntry, 0, len(cfg.SanctionedNames))
	for _, name := range cfg.SanctionedNames {
		normalized := normalizeName(name)
		if normalized == "" {
			continue
		}
		entries = append(entries, listEntry{
			raw:        name,
			normalized: normalized,
			tokens:     tokenSet(normalized),
		})
	}

	return &Screener{
		logger:    logger,
		countries: countries,
		entries:   entries,
		threshold: cfg.MatchThreshold,
	}, nil
}

// IsHighRiskCountry reports whether the country code is on the high-risk
// jurisdiction list. Lookup is case-insensitive.
func (s *Screener) IsHighRiskCountry(code string) bool {
	_, ok := s.countries[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// MatchSanctions returns the best-scoring sanctions list entry for the
// name and whether it clears the match threshold.
func (s *Screener) MatchSanctions(name string) (Match, bool) {
	query := normalizeName(name)
	if query == "" || len(s.entries) == 0 {
		return Match{}, false
	}
	queryTokens := tokenSet(query)

	var best Match
	for _, entry := range s.entries {
		score := nameScore(query, queryTokens, entry)
		if score > best.Score {
			best = Match{Name: entry.raw, Score: score}
		}
	}
	return best, best.Score >= s.threshold
}

// Screen enriches a counterparty with the sanctions screening outcome.
// A hit already reported by the caller is never cleared.
func (s *Screener) Screen(counterparty models.CounterpartyInfo) models.CounterpartyInfo {
	if counterparty.SanctionsHit || counterparty.Name == "" {
		return counterparty
	}

	match, hit := s.MatchSanctions(counterparty.Name)
	if hit {
		counterparty.SanctionsHit = true
		s.logger.Infow("counterparty matched sanctions list",
			"counterparty", counterparty.Name,
			"matched", match.Name,
			"score", match.Score)
	}
	return counterparty
}

// nameScore takes the better of edit-distance similarity and token-set
// similarity. Edit distance catches spelling variants of one name;
// token overlap catches reordered or partially shared names.
func nameScore(query string, queryTokens map[string]struct{}, entry listEntry) float64 {
	if query == entry.normalized {
		return 1.0
	}
	return math.Max(
		levenshteinSimilarity(query, entry.normalized),
		tokenSimilarity(queryTokens, entry.tokens),
	)
}

func levenshteinSimilarity(s1, s2 string) float64 {
	distance := levenshtein.ComputeDistance(s1, s2)
	maxLen := math.Max(float64(len(s1)), float64(len(s2)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - (float64(distance) / maxLen)
}

func tokenSimilarity(set1, set2 map[string]struct{}) float64 {
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}
	intersection := 0
	for token := range set1 {
		if _, ok := set2[token]; ok {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection
	return float64(intersection) / float64(union)
}

// normalizeName lowercases, folds diacritics, strips punctuation, and
// drops corporate and honorific affixes.
func normalizeName(name string) string {
	name = strings.ToLower(name)
	name = diacritics.Replace(name)
	name = nonAlnum.ReplaceAllString(name, "")

	tokens := strings.Fields(name)
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, ok := commonAffixes[token]; ok {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

func tokenSet(normalized string) map[string]struct{} {
	tokens := strings.Fields(normalized)
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

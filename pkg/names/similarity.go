package names

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// MatchConfig holds the tunable constants of fuzzy name matching.
type MatchConfig struct {
	// Threshold is the score a candidate must exceed to be merged.
	Threshold              float64
	SubstringBoost         float64
	TokenOverlapBase       float64
	TokenOverlapStep       float64
	GenerationVariantScore float64
	PhoneticKeyLength      int
}

// DefaultMatchConfig returns the production matching constants.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Threshold:              0.92,
		SubstringBoost:         0.95,
		TokenOverlapBase:       0.85,
		TokenOverlapStep:       0.1,
		GenerationVariantScore: 0.9,
		PhoneticKeyLength:      8,
	}
}

// Matches reports whether score is high enough to treat two names as one person.
func (c MatchConfig) Matches(score float64) bool {
	return score > c.Threshold
}

// Name is a pre-computed view of a raw name used for comparisons.
type Name struct {
	Raw        string
	Key        string
	Generation string
	Tokens     []string
}

// Parse normalizes raw once so it can be compared repeatedly.
func Parse(raw string) Name {
	tokens := keyTokens(raw)
	return Name{
		Raw:        raw,
		Key:        strings.Join(tokens, " "),
		Generation: Generation(raw),
		Tokens:     tokens,
	}
}

// GenerationsConflict is true when both names carry different junior/senior suffixes.
func GenerationsConflict(a, b Name) bool {
	return a.Generation != "" && b.Generation != "" && a.Generation != b.Generation
}

// Score returns a similarity in [0,1] between two parsed names.
func (c MatchConfig) Score(a, b Name) float64 {
	if a.Key == "" || b.Key == "" {
		return 0
	}
	if a.Key == b.Key {
		if GenerationsConflict(a, b) {
			return c.GenerationVariantScore
		}
		return 1
	}

	ka := PhoneticKey(a.Key, c.PhoneticKeyLength)
	kb := PhoneticKey(b.Key, c.PhoneticKeyLength)
	longest := max(len([]rune(ka)), len([]rune(kb)), 1)
	score := 1 - float64(matchr.Levenshtein(ka, kb))/float64(longest)

	if strings.Contains(a.Key, b.Key) || strings.Contains(b.Key, a.Key) {
		score = max(score, c.SubstringBoost)
	}

	if shared := sharedTokens(a.Tokens, b.Tokens); shared > 0 && abs(len(a.Tokens)-len(b.Tokens)) <= 1 {
		score = max(score, c.TokenOverlapBase+c.TokenOverlapStep*float64(shared))
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// PhoneticKey reduces a normalized name to a coarse sound key: letters only,
// every vowel mapped to '*', repeated symbols collapsed, cut to length runes.
func PhoneticKey(name string, length int) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if !unicode.IsLetter(r) {
			continue
		}
		if isVowel(r) {
			r = '*'
		}
		if n := len(out); n > 0 && out[n-1] == r {
			continue
		}
		out = append(out, r)
	}
	if length > 0 && len(out) > length {
		out = out[:length]
	}
	return string(out)
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func sharedTokens(a, b []string) int {
	seen := make(map[string]struct{}, len(a))
	for _, token := range a {
		seen[token] = struct{}{}
	}
	shared := 0
	for _, token := range b {
		if _, ok := seen[token]; ok {
			shared++
			delete(seen, token)
		}
	}
	return shared
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

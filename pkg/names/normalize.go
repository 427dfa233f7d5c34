// Package names canonicalizes free-text teacher names and scores how likely
// two spellings refer to the same person.
package names

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Generation suffixes recognised on raw names.
const (
	GenerationJunior = "junior"
	GenerationSenior = "senior"
)

var honorifics = map[string]struct{}{
	"sir":    {},
	"miss":   {},
	"mr":     {},
	"ms":     {},
	"mrs":    {},
	"dr":     {},
	"junior": {},
	"senior": {},
	"jr":     {},
	"sr":     {},
}

var generationTokens = map[string]string{
	"junior": GenerationJunior,
	"jr":     GenerationJunior,
	"senior": GenerationSenior,
	"sr":     GenerationSenior,
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lower-cases raw, drops honorifics, punctuation and single-letter
// tokens, and returns the remaining tokens sorted and space-joined. It never
// fails; input without usable letters yields "".
func Normalize(raw string) string {
	return strings.Join(keyTokens(raw), " ")
}

// Generation reports the junior/senior suffix carried by raw, or "".
func Generation(raw string) string {
	for _, token := range rawTokens(raw) {
		if gen, ok := generationTokens[token]; ok {
			return gen
		}
	}
	return ""
}

// CollapseSpaces trims raw and squeezes inner whitespace runs to one space.
func CollapseSpaces(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

func keyTokens(raw string) []string {
	tokens := rawTokens(raw)
	kept := tokens[:0]
	for _, token := range tokens {
		if _, ok := honorifics[token]; ok {
			continue
		}
		if len([]rune(token)) < 2 {
			continue
		}
		kept = append(kept, token)
	}
	sort.Strings(kept)
	return kept
}

func rawTokens(raw string) []string {
	lowered := strings.ToLower(raw)
	folded, _, err := transform.String(foldAccents, lowered)
	if err != nil {
		folded = lowered
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || r == '-' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Fields(b.String())
}

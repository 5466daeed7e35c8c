package textutil

import (
	"strings"
	"unicode"
)

// Tokens splits free-form specification text into comparable tokens:
// lowercased, punctuation stripped, whitespace delimited.
func Tokens(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return strings.Fields(b.String())
}

func TokenSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, tok := range Tokens(s) {
		set[tok] = struct{}{}
	}
	return set
}

// Jaccard computes |A∩B| / |A∪B| over the token sets of both strings.
// Two empty token sets have zero similarity, not full similarity.
func Jaccard(a, b string) float64 {
	setA := TokenSet(a)
	setB := TokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// NormalizeName collapses a scraped display name down to a stable
// comparison key.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	return strings.Join(strings.Fields(name), " ")
}

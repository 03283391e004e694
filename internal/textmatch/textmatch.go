// Package textmatch provides the pure string-matching primitives used by
// item matching and pantry dedup: normalization, token overlap, and bounded
// edit-distance similarity. All functions are total; malformed or empty
// input yields zero similarity, never an error.
package textmatch

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	// Size/unit tokens like "400g", "2pt", "1.5l", "12ct" carry packaging
	// information, not identity, and are stripped before comparison.
	unitTokenRe = regexp.MustCompile(`^\d+(\.\d+)?(g|kg|mg|ml|l|oz|floz|lb|lbs|pt|qt|gal|ct|pk|pack|x)$`)
	unitWords   = map[string]bool{
		"g": true, "kg": true, "ml": true, "l": true, "oz": true,
		"lb": true, "lbs": true, "pt": true, "qt": true, "gal": true,
		"ct": true, "pk": true, "pack": true, "each": true, "ea": true,
	}
)

// Normalize lowercases, folds diacritics, strips punctuation and size/unit
// tokens, and collapses whitespace. It is idempotent and is applied before
// every comparison, so "Heinz Beans 400G" and "heinz beans 400g" normalize
// to the same key.
func Normalize(s string) string {
	s = foldDiacritics(s)
	s = strings.ToLower(s)
	s = punctRe.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if unitTokenRe.MatchString(f) || unitWords[f] {
			continue
		}
		kept = append(kept, f)
	}

	return strings.Join(kept, " ")
}

// Tokens returns the whitespace-split tokens of the normalized form.
func Tokens(s string) []string {
	normalized := Normalize(s)
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

// TokenOverlap returns the Jaccard-style overlap of the normalized token
// sets of a and b, in [0, 1]. Empty inputs yield 0.
func TokenOverlap(a, b string) float64 {
	aTokens := Tokens(a)
	bTokens := Tokens(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}

	aSet := make(map[string]bool, len(aTokens))
	for _, t := range aTokens {
		aSet[t] = true
	}

	bSet := make(map[string]bool, len(bTokens))
	shared := 0
	for _, t := range bTokens {
		if bSet[t] {
			continue
		}
		bSet[t] = true
		if aSet[t] {
			shared++
		}
	}

	union := len(aSet) + len(bSet) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// Similarity returns a fuzzy similarity between a and b in [0, 1], computed
// as the Levenshtein distance of the normalized forms scaled by the longer
// length. Identical normalized strings score 1; empty inputs score 0.
func Similarity(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	dist := levenshtein(na, nb)
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}

	similarity := 1.0 - float64(dist)/float64(maxLen)
	if similarity < 0 {
		return 0
	}
	return similarity
}

// levenshtein computes edit distance with a single-row DP table.
func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	curr := make([]int, lb+1)
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minOf(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// foldDiacritics strips combining marks so accented product names compare
// equal to their plain-ASCII spellings.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

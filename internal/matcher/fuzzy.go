// Package matcher implements the fuzzy character/word matcher that drives
// the teleprompter cursor from streamed speech-to-text hypotheses. It is
// the core of the engine: everything else exists to feed text into
// Advance and act on the resulting cursor.
package matcher

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/nupi-ai/teleprompter-engine/internal/scriptmodel"
)

// isFuzzyMatch decides whether two words should be considered the same
// spoken token. Case is folded before any comparison; STT hypotheses and
// script text are not expected to agree on capitalization.
func isFuzzyMatch(a, b string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	shortest, longest := a, b
	if len(longest) < len(shortest) {
		shortest, longest = longest, shortest
	}
	if sharedPrefixLen(a, b) >= sharedPrefixFloor(len(shortest)) {
		return true
	}

	dist := matchr.Levenshtein(a, b)
	maxLen := len(longest)
	switch {
	case maxLen <= 4:
		return dist <= 1
	case maxLen <= 8:
		return dist <= 2
	default:
		return dist <= maxLen/3
	}
}

// sharedPrefixFloor returns the minimum shared-prefix length (60% of the
// shorter word, floor 2) that counts as a match on its own.
func sharedPrefixFloor(shortestLen int) int {
	floor := (shortestLen*6 + 9) / 10 // ceil(60%)
	if floor < 2 {
		floor = 2
	}
	return floor
}

func sharedPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// similarity returns a 0..1 score for two equal-length compact-form rune
// slices, derived from their edit distance.
func similarity(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	dist := matchr.Levenshtein(string(a), string(b))
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	if denom == 0 {
		return 1
	}
	score := 1 - float64(dist)/float64(denom)
	if score < 0 {
		score = 0
	}
	return score
}

// isAnnotationToken reports whether a script token should be auto-consumed
// by the word matcher without requiring a spoken equivalent: bracketed
// stage directions like "[pause]", or tokens with no letters or digits at
// all (bare punctuation).
func isAnnotationToken(tok string) bool {
	if tok == "" {
		return false
	}
	if strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]") {
		return true
	}
	for _, r := range tok {
		if scriptmodel.IsNormalizable(r) {
			return false
		}
	}
	return true
}

// Package scriptmodel holds the immutable script/page data model and the
// compact-index projection the fuzzy matcher scans against.
package scriptmodel

import (
	"fmt"
	"unicode"
)

// Script is an ordered sequence of pages. Only the active page is tracked
// by the rest of the engine; pages advance on completion.
type Script struct {
	Pages []string
}

// NewScript builds a Script from page texts.
func NewScript(pages []string) Script {
	return Script{Pages: pages}
}

// Page returns the page text at index, or an error if out of range.
func (s Script) Page(index int) (string, error) {
	if index < 0 || index >= len(s.Pages) {
		return "", fmt.Errorf("scriptmodel: page index %d out of range [0,%d)", index, len(s.Pages))
	}
	return s.Pages[index], nil
}

// IsNormalizable reports whether r counts toward the compact projection:
// letters and digits only.
func IsNormalizable(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Normalize lowercases r. Callers should only call this on runes that
// already passed IsNormalizable.
func Normalize(r rune) rune {
	return unicode.ToLower(r)
}

// Compactify returns the letter/digit-only, lowercased projection of s, as
// runes, discarding punctuation and whitespace. It performs no offset
// bookkeeping; use CompactIndex when the mapping back to original offsets
// is also needed.
func Compactify(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if IsNormalizable(r) {
			out = append(out, Normalize(r))
		}
	}
	return out
}

package scriptmodel

// CompactIndex is the letter/digit-only, lowercased projection of a page's
// text, together with a mapping from each compact character back to the
// (exclusive) end offset — in original-text rune count — of the run of
// source characters it was produced from. The fuzzy matcher's global
// anchor search scans Chars directly and uses ToOriginalEnd to translate
// a compact-space match back into a script offset.
type CompactIndex struct {
	Chars         []rune
	ToOriginalEnd []int
	sourceLen     int
}

// BuildCompactIndex projects s into its compact form plus the offset map.
func BuildCompactIndex(s string) CompactIndex {
	runes := []rune(s)
	chars := make([]rune, 0, len(runes))
	toEnd := make([]int, 0, len(runes))
	for i, r := range runes {
		if !IsNormalizable(r) {
			continue
		}
		chars = append(chars, Normalize(r))
		toEnd = append(toEnd, i+1)
	}
	return CompactIndex{Chars: chars, ToOriginalEnd: toEnd, sourceLen: len(runes)}
}

// SourceLen returns the rune length of the original text the index was
// built from.
func (c CompactIndex) SourceLen() int {
	return c.sourceLen
}

// OriginalEndAt returns the original-text offset a compact-index position
// maps to. Panics on an out-of-range index; callers are expected to only
// pass indices obtained by scanning c.Chars.
func (c CompactIndex) OriginalEndAt(compactPos int) int {
	return c.ToOriginalEnd[compactPos]
}

// Len returns the number of compact characters in the index.
func (c CompactIndex) Len() int {
	return len(c.Chars)
}

package matcher

import "github.com/nupi-ai/teleprompter-engine/internal/scriptmodel"

// matchChar runs a character-level two-pointer walk: it scans the compact
// form of tail against the compact form of hypothesis, resyncing across
// small insertions/deletions on either side
// before falling back to a no-credit substitution. It returns how many
// original-text characters of tail were confirmed, i.e. an offset
// relative to the start of tail (not the page).
func matchChar(tail, hypothesis string) int {
	tailIdx := scriptmodel.BuildCompactIndex(tail)
	hyp := scriptmodel.Compactify(hypothesis)

	tc := tailIdx.Chars
	lastConfirmed := -1
	i, j := 0, 0
	for i < len(tc) && j < len(hyp) {
		if tc[i] == hyp[j] {
			lastConfirmed = i
			i++
			j++
			continue
		}

		if k := lookaheadMatch(tc[i], hyp, j+1, 3); k >= 0 {
			j = k
			continue
		}
		if k := lookaheadMatch(hyp[j], tc, i+1, 3); k >= 0 {
			i = k
			continue
		}

		// Substitution: treat as a single mismatched character and move
		// on without crediting progress.
		i++
		j++
	}

	if lastConfirmed < 0 {
		return 0
	}
	return tailIdx.OriginalEndAt(lastConfirmed)
}

// lookaheadMatch searches target[from:from+span] for needle, returning the
// absolute index of the first hit or -1.
func lookaheadMatch(needle rune, target []rune, from, span int) int {
	limit := from + span
	if limit > len(target) {
		limit = len(target)
	}
	for k := from; k < limit; k++ {
		if target[k] == needle {
			return k
		}
	}
	return -1
}

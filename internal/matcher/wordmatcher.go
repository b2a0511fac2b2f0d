package matcher

import "unicode"

// token is a whitespace-delimited word from either the script tail or a
// hypothesis, with endOffset recorded in original-text rune count relative
// to the start of the string it was tokenized from.
type token struct {
	text      string
	endOffset int
}

// tokenize splits s on runs of whitespace, recording each token's
// exclusive end offset in rune count.
func tokenize(s string) []token {
	runes := []rune(s)
	var toks []token
	start := -1
	for i, r := range runes {
		if unicode.IsSpace(r) {
			if start >= 0 {
				toks = append(toks, token{text: string(runes[start:i]), endOffset: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		toks = append(toks, token{text: string(runes[start:]), endOffset: len(runes)})
	}
	return toks
}

// matchWord runs the word-level matcher: script
// annotation tokens are auto-consumed, hypothesis insertions (stray or
// hallucinated words) are skipped over with no progress credit, and script
// tokens the hypothesis skipped ahead of are credited as progress the way
// an annotation token would be. It returns the confirmed offset relative
// to the start of tail.
func matchWord(tail, hypothesis string) int {
	tailToks := tokenize(tail)
	hypToks := tokenize(hypothesis)

	lastConfirmed := 0
	ti, hi := 0, 0
	for ti < len(tailToks) && hi < len(hypToks) {
		t := tailToks[ti]
		if isAnnotationToken(t.text) {
			lastConfirmed = t.endOffset
			ti++
			continue
		}

		h := hypToks[hi]
		if isFuzzyMatch(t.text, h.text) {
			lastConfirmed = t.endOffset
			ti++
			hi++
			continue
		}

		if k := findFuzzyAhead(t.text, hypToks, hi+1, 3); k >= 0 {
			hi = k
			continue
		}

		if k := findFuzzyAhead(h.text, tailToks, ti+1, 3); k >= 0 {
			lastConfirmed = tailToks[k-1].endOffset
			ti = k
			continue
		}

		// Neither script nor hypothesis resynced nearby: treat h as a
		// stray/hallucinated word and move past it without credit.
		hi++
	}

	// Only credit trailing annotation tokens when they're the only thing
	// left before the end of the script: if a real token still follows,
	// the hypothesis merely paused before the annotation and hasn't
	// earned credit for it yet.
	end := ti
	for end < len(tailToks) && isAnnotationToken(tailToks[end].text) {
		end++
	}
	if end == len(tailToks) {
		for ti < end {
			lastConfirmed = tailToks[ti].endOffset
			ti++
		}
	}

	return lastConfirmed
}

func findFuzzyAhead(needle string, toks []token, from, span int) int {
	limit := from + span
	if limit > len(toks) {
		limit = len(toks)
	}
	for k := from; k < limit; k++ {
		if isFuzzyMatch(needle, toks[k].text) {
			return k
		}
	}
	return -1
}

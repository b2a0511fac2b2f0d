package matcher

import (
	"sort"

	"github.com/nupi-ai/teleprompter-engine/internal/scriptmodel"
)

// anchorCandidate is a surviving global-search hit, described in
// compact-index terms plus its mapped original-text end offset.
type anchorCandidate struct {
	endOffset  int
	distance   int
	similarity float64
}

// findAnchor runs a global anchor search against a page's compact index
// and returns the original-text offset it wants to jump
// recognized_char_count to, or ok=false if no anchor clears the bar.
// allowFarJump reports whether the caller may treat the result as a far
// jump candidate: it is false when classifyAmbiguity finds the hypothesis
// (or its seed) before the cursor, or its seed at least twice ahead.
func findAnchor(idx scriptmodel.CompactIndex, hypothesis string, recognizedCharCount int) (offset int, allowFarJump bool, ok bool) {
	q := scriptmodel.Compactify(hypothesis)
	qLen := len(q)
	if qLen < 4 || qLen > idx.Len() {
		return 0, false, false
	}

	preferNearest := classifyAmbiguity(idx, q, recognizedCharCount)
	allowFarJump = !preferNearest

	localCap := capFor(qLen)

	if qLen >= 6 {
		if off, found := exactGlobalMatch(idx, q, recognizedCharCount, localCap, allowFarJump); found {
			return off, allowFarJump, true
		}
	}

	candidates := fuzzyAnchorSearch(idx, q, recognizedCharCount, preferNearest)
	off, found := pickWinner(candidates, qLen, preferNearest, allowFarJump)
	return off, allowFarJump, found
}

// classifyAmbiguity implements Step A: does the hypothesis text recur
// often enough in the script that a nearby match should be preferred over
// an opportunistic far jump.
func classifyAmbiguity(idx scriptmodel.CompactIndex, q []rune, recognizedCharCount int) bool {
	qLen := len(q)
	if qLen == 0 {
		return true
	}

	hasPriorExact := false
	for _, pos := range findAllSubstr(idx.Chars, q) {
		if idx.OriginalEndAt(pos+qLen-1) <= recognizedCharCount {
			hasPriorExact = true
			break
		}
	}

	seedLen := qLen
	if seedLen > 6 {
		seedLen = 6
	}
	seed := q[:seedLen]
	hasPriorSeed := false
	forwardSeedHits := 0
	for _, pos := range findAllSubstr(idx.Chars, seed) {
		end := idx.OriginalEndAt(pos + seedLen - 1)
		if end <= recognizedCharCount {
			hasPriorSeed = true
		} else {
			forwardSeedHits++
		}
	}

	return hasPriorExact || hasPriorSeed || forwardSeedHits >= 2
}

func capFor(qLen int) int {
	limit := qLen * 6
	if limit < 70 {
		limit = 70
	}
	if limit > 220 {
		limit = 220
	}
	return limit
}

func softCapFor(qLen int) (limit int, unlimited bool) {
	switch {
	case qLen <= 7:
		return 420, false
	case qLen <= 11:
		return 700, false
	case qLen <= 20:
		return 1000, false
	default:
		return 0, true
	}
}

func thresholdFor(qLen int, preferNearest bool) float64 {
	var t float64
	switch {
	case qLen <= 7:
		t = 0.45
	case qLen <= 11:
		t = 0.52
	default:
		t = 0.58
	}
	if preferNearest {
		t -= 0.12
		if t < 0.32 {
			t = 0.32
		}
	}
	return t
}

// exactGlobalMatch implements Step B: among every exact occurrence that
// maps forward of recognized_char_count, pick the nearest one. When the
// caller has classified this hypothesis as ambiguous (allowFarJump
// false), matches past localCap are excluded outright rather than merely
// deprioritized, since a far jump should never be proposed in that case.
func exactGlobalMatch(idx scriptmodel.CompactIndex, q []rune, recognizedCharCount, localCap int, allowFarJump bool) (int, bool) {
	qLen := len(q)
	best := -1
	bestDist := -1
	for _, pos := range findAllSubstr(idx.Chars, q) {
		end := idx.OriginalEndAt(pos + qLen - 1)
		if end < recognizedCharCount {
			continue
		}
		dist := end - recognizedCharCount
		if !allowFarJump && dist > localCap {
			continue
		}
		if best < 0 || dist < bestDist {
			best, bestDist = end, dist
		}
	}
	return best, best >= 0
}

// fuzzyAnchorSearch implements Step C.
func fuzzyAnchorSearch(idx scriptmodel.CompactIndex, q []rune, recognizedCharCount int, preferNearest bool) []anchorCandidate {
	qLen := len(q)
	n := idx.Len()
	if qLen > n {
		return nil
	}

	startPositions := candidateStartPositions(idx, q)

	threshold := thresholdFor(qLen, preferNearest)
	localCap := capFor(qLen)
	softLimit, unlimited := softCapFor(qLen)

	var out []anchorCandidate
	for _, i := range startPositions {
		if i+qLen > n {
			continue
		}
		window := idx.Chars[i : i+qLen]
		if !sharesEdgeChar(q, window) {
			continue
		}

		sim := similarity(q, window)
		if sim < threshold {
			continue
		}

		end := idx.OriginalEndAt(i + qLen - 1)
		if end < recognizedCharCount {
			continue
		}
		dist := end - recognizedCharCount

		if !preferNearest && dist > localCap {
			if !unlimited && dist > softLimit && sim < 0.82 {
				continue
			}
		}

		out = append(out, anchorCandidate{endOffset: end, distance: dist, similarity: sim})
	}
	return out
}

// sharesEdgeChar applies the cheap qLen>=8 pruning rule: either the
// query's leading 3 chars or trailing 3 chars must share at least one
// character with the corresponding edge of the candidate window.
func sharesEdgeChar(q, window []rune) bool {
	if len(q) < 8 {
		return true
	}
	edge := 3
	qHead, wHead := q[:edge], window[:edge]
	qTail, wTail := q[len(q)-edge:], window[len(window)-edge:]
	if runesShareAny(qHead, wHead) {
		return true
	}
	return runesShareAny(qTail, wTail)
}

func runesShareAny(a, b []rune) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// pickWinner implements Step D.
func pickWinner(candidates []anchorCandidate, qLen int, preferNearest, allowFarJump bool) (int, bool) {
	if len(candidates) == 0 {
		return 0, false
	}

	if preferNearest {
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].distance != candidates[j].distance {
				return candidates[i].distance < candidates[j].distance
			}
			if candidates[i].similarity != candidates[j].similarity {
				return candidates[i].similarity > candidates[j].similarity
			}
			return candidates[i].endOffset < candidates[j].endOffset
		})
		return candidates[0].endOffset, true
	}

	bestSim := 0.0
	for _, c := range candidates {
		if c.similarity > bestSim {
			bestSim = c.similarity
		}
	}

	localBiasLimit := localBiasLimitFor(qLen)
	threshold := thresholdFor(qLen, false)
	localFloor := threshold + 0.08
	if bestSim-0.10 > localFloor {
		localFloor = bestSim - 0.10
	}

	var local []anchorCandidate
	for _, c := range candidates {
		if c.distance <= localBiasLimit && c.similarity >= localFloor {
			local = append(local, c)
		}
	}
	if len(local) > 0 {
		sort.SliceStable(local, func(i, j int) bool {
			if local[i].distance != local[j].distance {
				return local[i].distance < local[j].distance
			}
			if local[i].similarity != local[j].similarity {
				return local[i].similarity > local[j].similarity
			}
			return local[i].endOffset < local[j].endOffset
		})
		return local[0].endOffset, true
	}

	if !allowFarJump {
		return 0, false
	}

	slack := slackFor(qLen)
	globalFloor := threshold
	if bestSim-slack > globalFloor {
		globalFloor = bestSim - slack
	}
	var global []anchorCandidate
	for _, c := range candidates {
		if c.similarity >= globalFloor {
			global = append(global, c)
		}
	}
	if len(global) == 0 {
		return 0, false
	}
	sort.SliceStable(global, func(i, j int) bool {
		if global[i].distance != global[j].distance {
			return global[i].distance < global[j].distance
		}
		if global[i].similarity != global[j].similarity {
			return global[i].similarity > global[j].similarity
		}
		return global[i].endOffset < global[j].endOffset
	})
	return global[0].endOffset, true
}

func localBiasLimitFor(qLen int) int {
	switch {
	case qLen <= 7:
		return 220
	case qLen <= 11:
		return 320
	case qLen <= 20:
		return 450
	default:
		return 600
	}
}

func slackFor(qLen int) float64 {
	switch {
	case qLen <= 7:
		return 0.02
	case qLen <= 11:
		return 0.05
	default:
		return 0.08
	}
}

// findAllSubstr returns every starting index of an exact occurrence of
// needle within haystack.
func findAllSubstr(haystack, needle []rune) []int {
	var out []int
	if len(needle) == 0 || len(needle) > len(haystack) {
		return out
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if runesEqual(haystack[i:i+len(needle)], needle) {
			out = append(out, i)
		}
	}
	return out
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// candidateStartPositions implements Step C's candidate-start selection:
// positions where the first char matches exactly, narrowed by a second-
// char filter when that set is too large to search exhaustively, falling
// back to coarse striding only when both leave nothing, and finally
// capped to a deterministic stride-sampled 320 entries.
func candidateStartPositions(idx scriptmodel.CompactIndex, q []rune) []int {
	n := idx.Len()
	qLen := len(q)

	var startPositions []int
	for i := 0; i+qLen <= n; i++ {
		if idx.Chars[i] == q[0] {
			startPositions = append(startPositions, i)
		}
	}

	if len(startPositions) > 240 && qLen >= 2 {
		var narrowed []int
		for _, i := range startPositions {
			if idx.Chars[i+1] == q[1] {
				narrowed = append(narrowed, i)
			}
		}
		if len(narrowed) > 0 {
			startPositions = narrowed
		}
	}

	if len(startPositions) == 0 {
		startPositions = striddedPositions(n, qLen, 320)
	} else if len(startPositions) > 320 {
		startPositions = capPositions(startPositions, 320)
	}

	return startPositions
}

// capPositions deterministically downsamples positions to at most limit
// entries by striding, rather than truncating to its head.
func capPositions(positions []int, limit int) []int {
	if len(positions) <= limit {
		return positions
	}
	stride := len(positions) / limit
	if stride < 1 {
		stride = 1
	}
	var out []int
	for i := 0; i < len(positions) && len(out) < limit; i += stride {
		out = append(out, positions[i])
	}
	return out
}

// striddedPositions returns up to limit starting positions evenly spaced
// across [0, n-qLen], used only when the first-letter candidate set is
// empty (no exact character match); oversized sets go through
// capPositions instead.
func striddedPositions(n, qLen, limit int) []int {
	last := n - qLen
	if last < 0 {
		return nil
	}
	stride := qLen / 3
	if stride < 1 {
		stride = 1
	}
	var out []int
	for i := 0; i <= last; i += stride {
		out = append(out, i)
		if len(out) >= limit {
			break
		}
	}
	return out
}

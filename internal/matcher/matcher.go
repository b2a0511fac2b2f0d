package matcher

import (
	"time"

	"github.com/nupi-ai/teleprompter-engine/internal/scriptmodel"
)

// matchStartLookback is how far behind recognized_char_count match_start
// is kept after committing progress under the segment backend, so the
// base matchers always have a short run of already-confirmed text to
// resync against.
const matchStartLookback = 24

// baseAdvanceCeiling caps how far a single update may move the cursor via
// the base matchers alone under the segment backend, independent of the
// local-distance cap (capFor, qLen*6 within [70, 220]) used by the anchor
// search.
func baseAdvanceCeiling(qLen int) int {
	limit := qLen * 7
	if limit < 28 {
		limit = 28
	}
	if limit > 180 {
		limit = 180
	}
	return limit
}

// Event reports something Advance did this call, for logging/telemetry;
// it carries no behavior of its own.
type Event struct {
	AnchorUsed       bool
	FarJumpPending   bool
	FarJumpCommitted bool
}

// Advance folds one new hypothesis into state and returns the updated
// cursor state. page is the full current page text;
// hypothesis is the backend's latest transcript chunk (segment backend)
// or transcript-so-far (cumulative backend).
func Advance(page string, state State, hypothesis string, backend BackendKind, now func() time.Time) (State, Event) {
	runes := []rune(page)
	pageLen := len(runes)

	start := state.MatchStart
	if start < 0 {
		start = 0
	}
	if start > pageLen {
		start = pageLen
	}
	tail := string(runes[start:])

	charRel := matchChar(tail, hypothesis)
	wordRel := matchWord(tail, hypothesis)
	baseRel := charRel
	if wordRel > baseRel {
		baseRel = wordRel
	}
	baseAbsolute := start + baseRel

	switch backend {
	case BackendCumulative:
		recognized := state.RecognizedCharCount
		if baseAbsolute > recognized {
			recognized = baseAbsolute
		}
		if recognized > pageLen {
			recognized = pageLen
		}
		return State{RecognizedCharCount: recognized, MatchStart: state.MatchStart}, Event{}
	default:
		return advanceSegment(runes, state, hypothesis, baseAbsolute, now())
	}
}

func advanceSegment(page []rune, state State, hypothesis string, baseAbsolute int, now time.Time) (State, Event) {
	pageLen := len(page)

	rawAdvance := baseAbsolute - state.RecognizedCharCount
	if rawAdvance < 0 {
		rawAdvance = 0
	}
	qLen := len(scriptmodel.Compactify(hypothesis))
	ceiling := baseAdvanceCeiling(qLen)
	if rawAdvance > ceiling {
		rawAdvance = ceiling
	}
	baseCandidate := state.RecognizedCharCount + rawAdvance

	pending := expirePending(state.PendingJump, now)

	idx := scriptmodel.BuildCompactIndex(string(page))
	anchorOffset, _, anchorOK := findAnchor(idx, hypothesis, state.RecognizedCharCount)

	candidate := baseCandidate
	event := Event{}

	if anchorOK && anchorOffset > candidate {
		threshold := farJumpThreshold(qLen)
		advance := anchorOffset - state.RecognizedCharCount
		// An anchor that overrides the base matcher by more than the base
		// matcher's own per-update ceiling needs the same far-jump
		// debounce as one past the far-jump distance threshold: Testable
		// Property #4 caps every non-far-jump advance at
		// baseAdvanceCeiling, so a "near" anchor that still exceeds it
		// must not be committed in a single update either.
		if advance > threshold || advance > ceiling {
			event.FarJumpPending = true
			commit, next := resolveFarJump(pending, anchorOffset, qLen, now)
			pending = next
			if commit {
				candidate = anchorOffset
				event.AnchorUsed = true
				event.FarJumpCommitted = true
				event.FarJumpPending = false
			}
		} else {
			candidate = anchorOffset
			event.AnchorUsed = true
			pending = nil
		}
	} else {
		pending = nil
	}

	recognized := state.RecognizedCharCount
	if candidate > recognized {
		recognized = candidate
	}
	if recognized > pageLen {
		recognized = pageLen
	}

	matchStart := state.MatchStart
	if recognized > state.RecognizedCharCount {
		matchStart = recognized - matchStartLookback
		if matchStart < 0 {
			matchStart = 0
		}
	}

	return State{RecognizedCharCount: recognized, MatchStart: matchStart, PendingJump: pending}, event
}

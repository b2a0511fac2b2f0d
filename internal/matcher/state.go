package matcher

import "time"

// BackendKind selects which transcript-accumulation discipline Advance
// applies: cumulative backends resend the whole transcript on every
// update, segment backends only send the newest chunk.
type BackendKind int

const (
	// BackendCumulative is used by engines that re-emit the full
	// transcript-so-far on every callback (e.g. the platform recognizer).
	BackendCumulative BackendKind = iota
	// BackendSegment is used by engines that emit independent chunks
	// (e.g. the external subprocess driver), requiring the global anchor
	// search to re-locate the cursor on each update.
	BackendSegment
)

// PendingAnchorJump tracks a not-yet-committed far jump while the engine
// waits for a second corroborating anchor hit.
type PendingAnchorJump struct {
	Target    int
	Hits      int
	Timestamp time.Time
}

// State is the cursor state the matcher threads through successive
// Advance calls for one session. RecognizedCharCount is the teleprompter
// cursor; MatchStart bounds how far back the base matchers rescan.
type State struct {
	RecognizedCharCount int
	MatchStart          int
	PendingJump         *PendingAnchorJump
}

// JumpTo resets the cursor to offset, clearing any pending far jump, for
// an explicit user-driven jump.
func JumpTo(offset int) State {
	return State{RecognizedCharCount: offset, MatchStart: offset}
}

const farJumpDebounceWindow = 1800 * time.Millisecond

func farJumpThreshold(qLen int) int {
	t := qLen * 7
	if t < 90 {
		t = 90
	}
	if t > 260 {
		t = 260
	}
	return t
}

func farJumpTolerance(qLen int) int {
	t := qLen * 6
	if t < 60 {
		t = 60
	}
	return t
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// resolveFarJump folds one far-jump anchor hit into the pending-jump
// state, returning whether this hit commits the jump (two corroborating
// hits within the debounce window) and the pending state to carry
// forward. A stale pending jump (older than the debounce window) is
// treated as absent.
func resolveFarJump(pending *PendingAnchorJump, target, qLen int, now time.Time) (commit bool, next *PendingAnchorJump) {
	if pending != nil && now.Sub(pending.Timestamp) <= farJumpDebounceWindow &&
		abs(pending.Target-target) <= farJumpTolerance(qLen) {
		hits := pending.Hits + 1
		if hits >= 2 {
			return true, nil
		}
		return false, &PendingAnchorJump{Target: target, Hits: hits, Timestamp: now}
	}
	return false, &PendingAnchorJump{Target: target, Hits: 1, Timestamp: now}
}

// expirePending drops a pending far jump once the debounce window has
// elapsed with no corroborating update.
func expirePending(pending *PendingAnchorJump, now time.Time) *PendingAnchorJump {
	if pending == nil {
		return nil
	}
	if now.Sub(pending.Timestamp) > farJumpDebounceWindow {
		return nil
	}
	return pending
}

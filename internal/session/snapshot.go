// Package session implements the session controller: the single owner
// of engine lifecycle, retry backoff, generation tagging, and
// cross-component coordination between Audio Capture, a transcription
// backend, and the fuzzy matcher. It runs as a long-lived, mutex-guarded
// state machine rather than a full actor loop.
package session

import "github.com/nupi-ai/teleprompter-engine/internal/matcher"

// RunState is the session state machine's current state.
type RunState int

const (
	StateIdle RunState = iota
	StateAuthorizing
	StateRunning
	StateRetrying
	StatePaused
	StateCompleted
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthorizing:
		return "authorizing"
	case StateRunning:
		return "running"
	case StateRetrying:
		return "retrying"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Snapshot is the observable state published to UI subscribers. It is an
// immutable value; publishing a new one never mutates a previously
// delivered Snapshot.
type Snapshot struct {
	State               RunState
	Generation          uint64
	RecognizedCharCount int
	IsListening         bool
	Error               string
	AudioLevels         [30]float64
	LastSpokenText      string
	IsSpeaking          bool
	ShouldDismiss       bool
	ShouldAdvancePage   bool
}

// Healthy reports whether the session is actively running and not
// currently in a retry backoff window.
func (s Snapshot) Healthy() bool {
	return s.State == StateRunning
}

func backendKindLabel(k matcher.BackendKind) string {
	if k == matcher.BackendSegment {
		return "segment"
	}
	return "cumulative"
}

// Package telemetry tracks cumulative engine-level counters: sessions
// started, transcripts processed, far jumps committed or debounced away,
// retries consumed, and restarts coalesced.
package telemetry

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Recorder tracks engine-level telemetry that can be surfaced to a
// diagnostics panel.
type Recorder struct {
	log *slog.Logger

	totalSessions          atomic.Uint64
	activeSessions         atomic.Int64
	totalTranscripts       atomic.Uint64
	totalFarJumpsCommitted atomic.Uint64
	totalFarJumpsDebounced atomic.Uint64
	totalRetries           atomic.Uint64
	totalRestartsCoalesced atomic.Uint64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalSessions          uint64
	ActiveSessions         int64
	TotalTranscripts       uint64
	TotalFarJumpsCommitted uint64
	TotalFarJumpsDebounced uint64
	TotalRetries           uint64
	TotalRestartsCoalesced uint64
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log: logger.With("component", "telemetry.Recorder"),
	}
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalSessions:          r.totalSessions.Load(),
		ActiveSessions:         r.activeSessions.Load(),
		TotalTranscripts:       r.totalTranscripts.Load(),
		TotalFarJumpsCommitted: r.totalFarJumpsCommitted.Load(),
		TotalFarJumpsDebounced: r.totalFarJumpsDebounced.Load(),
		TotalRetries:           r.totalRetries.Load(),
		TotalRestartsCoalesced: r.totalRestartsCoalesced.Load(),
	}
}

// SessionMetrics accumulates statistics for a single tracking session.
type SessionMetrics struct {
	recorder *Recorder
	log      *slog.Logger

	sessionID string
	metadata  map[string]string

	started           time.Time
	transcripts       int
	farJumpsCommitted int
	farJumpsDebounced int
	retries           int
	restartsCoalesced int
	closed            atomic.Bool
}

// StartSession initialises a SessionMetrics instance bound to the recorder.
func (r *Recorder) StartSession(sessionID string, metadata map[string]string) *SessionMetrics {
	if r == nil {
		return nil
	}

	clonedMetadata := cloneMetadata(metadata)

	sessionLogger := r.log.With("session_id", sessionID)
	if len(clonedMetadata) > 0 {
		sessionLogger = sessionLogger.With("metadata", clonedMetadata)
	}

	r.totalSessions.Add(1)
	r.activeSessions.Add(1)

	return &SessionMetrics{
		recorder:  r,
		log:       sessionLogger,
		sessionID: sessionID,
		metadata:  clonedMetadata,
		started:   time.Now(),
	}
}

// RecordTranscript updates counters for a processed hypothesis update.
func (s *SessionMetrics) RecordTranscript(charsAdvanced int) {
	if s == nil {
		return
	}
	s.transcripts++
	s.recorder.totalTranscripts.Add(1)

	s.log.Debug("transcript processed", "chars_advanced", charsAdvanced)
}

// RecordFarJump updates counters for a far-jump anchor hit.
func (s *SessionMetrics) RecordFarJump(committed bool) {
	if s == nil {
		return
	}
	if committed {
		s.farJumpsCommitted++
		s.recorder.totalFarJumpsCommitted.Add(1)
	} else {
		s.farJumpsDebounced++
		s.recorder.totalFarJumpsDebounced.Add(1)
	}
	s.log.Debug("far jump evaluated", "committed", committed)
}

// RecordRetry updates counters for a backend restart attempt.
func (s *SessionMetrics) RecordRetry() {
	if s == nil {
		return
	}
	s.retries++
	s.recorder.totalRetries.Add(1)
}

// RecordRestartCoalesced updates counters for a pending restart that was
// superseded before it ran.
func (s *SessionMetrics) RecordRestartCoalesced() {
	if s == nil {
		return
	}
	s.restartsCoalesced++
	s.recorder.totalRestartsCoalesced.Add(1)
}

// Finish logs a summary and updates active session counters. It is safe
// to call more than once; only the first call has an effect.
func (s *SessionMetrics) Finish(err error) {
	if s == nil {
		return
	}
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	defer s.recorder.activeSessions.Add(-1)

	duration := time.Since(s.started)
	args := []any{
		"duration_ms", duration.Milliseconds(),
		"transcripts", s.transcripts,
		"far_jumps_committed", s.farJumpsCommitted,
		"far_jumps_debounced", s.farJumpsDebounced,
		"retries", s.retries,
		"restarts_coalesced", s.restartsCoalesced,
	}

	if err != nil {
		s.log.Error("session completed with error", append(args, "error", err)...)
		return
	}

	s.log.Info("session completed", args...)
}

func cloneMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

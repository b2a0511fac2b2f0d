package telemetry

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestRecorderSnapshot(t *testing.T) {
	recorder := NewRecorder(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if snapshot := recorder.Snapshot(); snapshot.TotalSessions != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snapshot)
	}

	session := recorder.StartSession("session-1", map[string]string{"backend_kind": "segment"})
	if session == nil {
		t.Fatalf("expected session metrics")
	}

	session.RecordTranscript(12)
	session.RecordFarJump(true)
	session.RecordFarJump(false)
	session.RecordRetry()
	session.RecordRestartCoalesced()

	time.Sleep(5 * time.Millisecond)
	session.Finish(nil)

	snapshot := recorder.Snapshot()
	if snapshot.TotalSessions != 1 {
		t.Fatalf("unexpected TotalSessions: %d", snapshot.TotalSessions)
	}
	if snapshot.TotalTranscripts != 1 {
		t.Fatalf("unexpected TotalTranscripts: %d", snapshot.TotalTranscripts)
	}
	if snapshot.TotalFarJumpsCommitted != 1 {
		t.Fatalf("unexpected TotalFarJumpsCommitted: %d", snapshot.TotalFarJumpsCommitted)
	}
	if snapshot.TotalFarJumpsDebounced != 1 {
		t.Fatalf("unexpected TotalFarJumpsDebounced: %d", snapshot.TotalFarJumpsDebounced)
	}
	if snapshot.TotalRetries != 1 {
		t.Fatalf("unexpected TotalRetries: %d", snapshot.TotalRetries)
	}
	if snapshot.TotalRestartsCoalesced != 1 {
		t.Fatalf("unexpected TotalRestartsCoalesced: %d", snapshot.TotalRestartsCoalesced)
	}
	if snapshot.ActiveSessions != 0 {
		t.Fatalf("expected zero active sessions, got %d", snapshot.ActiveSessions)
	}

	session.Finish(nil)
	if snapshot2 := recorder.Snapshot(); snapshot2.TotalSessions != 1 {
		t.Fatalf("snapshot changed unexpectedly: %+v", snapshot2)
	}
}

func TestSessionFinishWithError(t *testing.T) {
	recorder := NewRecorder(slog.New(slog.NewTextHandler(io.Discard, nil)))
	session := recorder.StartSession("s", nil)
	session.RecordTranscript(4)
	session.Finish(io.EOF)

	snapshot := recorder.Snapshot()
	if snapshot.TotalSessions != 1 {
		t.Fatalf("unexpected sessions: %d", snapshot.TotalSessions)
	}
	if snapshot.ActiveSessions != 0 {
		t.Fatalf("expected zero active sessions, got %d", snapshot.ActiveSessions)
	}
}

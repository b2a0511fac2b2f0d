// Package platform implements the platform recognizer variant of the
// transcription backend: a thin adapter over an OS-provided streaming
// speech recognizer that emits cumulative transcripts. Only a
// deterministic stub ships here; a real embedder swaps it for a concrete
// OS recognizer binding without changing anything downstream.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Transcript is one cumulative update from the recognizer.
type Transcript struct {
	Text       string
	Generation uint64
}

// Backend is the shared trait a transcription-backend variant implements.
// The platform recognizer is cumulative; Advance's caller is expected to
// pass matcher.BackendCumulative when wiring it in.
type Backend interface {
	Configure(locale string) error
	Append(frame []float32) error
	Transcripts() <-chan Transcript
	Shutdown() error
}

// Recognizer reports which locales an OS speech recognizer supports, so
// ResolveLocale (locale.go) can apply the fallback policy without the
// platform package needing to know how that support list was obtained.
type Recognizer interface {
	SupportedLocales() []string
}

// StubBackend is a deterministic placeholder standing in for a real
// platform recognizer: it accepts frames, produces no transcripts of its
// own, and is driven in tests and the demo command by directly feeding
// it text via Emit.
type StubBackend struct {
	log    *slog.Logger
	locale string

	mu     sync.Mutex
	out    chan Transcript
	closed bool
}

// NewStubBackend constructs a StubBackend.
func NewStubBackend(logger *slog.Logger) *StubBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubBackend{
		log: logger.With("component", "platform.StubBackend"),
		out: make(chan Transcript, 16),
	}
}

// Configure stores the locale as given, to report via Locale(); it does
// no locale resolution of its own.
func (s *StubBackend) Configure(locale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locale = locale
	s.log.Info("configured", "locale", locale)
	return nil
}

// Locale returns the most recently configured locale.
func (s *StubBackend) Locale() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locale
}

// Append is a no-op placeholder for feeding audio frames; a real
// implementation would buffer and forward them to the OS recognizer.
func (s *StubBackend) Append(frame []float32) error {
	return nil
}

// Transcripts returns the channel transcripts are emitted on.
func (s *StubBackend) Transcripts() <-chan Transcript {
	return s.out
}

// Emit pushes a cumulative transcript, for tests and the demo command
// standing in for a real recognizer callback.
func (s *StubBackend) Emit(ctx context.Context, text string, generation uint64) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("platform: backend is shut down")
	}
	select {
	case s.out <- Transcript{Text: text, Generation: generation}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown releases the backend; idempotent.
func (s *StubBackend) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.out)
	return nil
}

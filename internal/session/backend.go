package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nupi-ai/teleprompter-engine/internal/matcher"
	"github.com/nupi-ai/teleprompter-engine/internal/platform"
	"github.com/nupi-ai/teleprompter-engine/internal/sessionerr"
	"github.com/nupi-ai/teleprompter-engine/internal/subprocess"
)

// backendRuntimeError wraps a classified stderr line as a
// sessionerr.KindBackendRuntimeError, the session controller's retry
// policy input for the external backend's error callback.
func backendRuntimeError(line string) error {
	return sessionerr.New(sessionerr.KindBackendRuntimeError, errors.New(line))
}

// backendAdapter is the shared trait both transcription-backend variants
// satisfy for the controller's purposes. The platform and
// external-subprocess backends differ enough in their native APIs
// (cumulative vs. segment, no exit code vs. an exit code) that unifying
// them at the backendAdapter.Events level — rather than forcing one
// Go interface onto both concrete types — is the natural seam.
type backendAdapter interface {
	Kind() matcher.BackendKind
	Configure(locale string) error
	Start(ctx context.Context) error
	Stop() error
	// Append forwards one captured audio frame to the backend. The
	// external subprocess variant's stdin audio framing is undefined
	// (only its stdout/stderr grammar is), so externalAdapter's Append is
	// a no-op; audio levels/is_speaking still derive from the Audio
	// Capture tap independently.
	Append(frame []float32) error
	// Events returns the three event channels the controller forwards
	// into its own generation-checked callbacks. exits is nil for
	// backends that have no subprocess exit code to report.
	Events() (transcripts <-chan string, errs <-chan error, exits <-chan int)
}

// platformAdapter adapts platform.StubBackend to backendAdapter.
type platformAdapter struct {
	backend *platform.StubBackend
	out     chan string
}

// NewPlatformAdapter wraps a platform backend for the controller.
func NewPlatformAdapter(logger *slog.Logger) *platformAdapter {
	return &platformAdapter{
		backend: platform.NewStubBackend(logger),
		out:     make(chan string, 32),
	}
}

func (p *platformAdapter) Kind() matcher.BackendKind { return matcher.BackendCumulative }

func (p *platformAdapter) Configure(locale string) error { return p.backend.Configure(locale) }

func (p *platformAdapter) Start(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-p.backend.Transcripts():
				if !ok {
					return
				}
				select {
				case p.out <- t.Text:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return nil
}

func (p *platformAdapter) Stop() error { return p.backend.Shutdown() }

func (p *platformAdapter) Append(frame []float32) error { return p.backend.Append(frame) }

func (p *platformAdapter) Events() (<-chan string, <-chan error, <-chan int) {
	return p.out, nil, nil
}

// Emit feeds a cumulative transcript through the wrapped stub backend,
// for the demo command and tests driving a platform-mode session without
// a real OS recognizer.
func (p *platformAdapter) Emit(ctx context.Context, text string) error {
	return p.backend.Emit(ctx, text, 0)
}

// externalAdapter adapts subprocess.Driver to backendAdapter.
type externalAdapter struct {
	driver *subprocess.Driver
	cfg    subprocess.Config

	transcripts chan string
	errOut      chan error
	exits       chan int
}

// NewExternalAdapter wraps an external subprocess driver for the
// controller.
func NewExternalAdapter(logger *slog.Logger, cfg subprocess.Config) *externalAdapter {
	return &externalAdapter{
		driver:      subprocess.NewDriver(logger),
		cfg:         cfg,
		transcripts: make(chan string, 32),
		errOut:      make(chan error, 16),
		exits:       make(chan int, 1),
	}
}

func (e *externalAdapter) Kind() matcher.BackendKind { return matcher.BackendSegment }

// Configure ignores locale (the external backend is language-configured
// through subprocess.Config.Language at construction time) and
// re-applies the stored subprocess configuration.
func (e *externalAdapter) Configure(string) error {
	return e.driver.Configure(e.cfg)
}

func (e *externalAdapter) Start(ctx context.Context) error {
	if err := e.driver.Start(ctx); err != nil {
		return err
	}
	go e.forward(ctx)
	return nil
}

// forward pumps the driver's native channels into the adapter's
// backendAdapter-shaped channels until ctx is cancelled, so a restart's
// new driver+adapter pair never leaves a goroutine blocked on a channel
// nobody reads from again.
func (e *externalAdapter) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-e.driver.Transcripts():
			select {
			case e.transcripts <- t.Text:
			case <-ctx.Done():
				return
			}
		case be := <-e.driver.BackendErrors():
			select {
			case e.errOut <- backendRuntimeError(be.Line):
			case <-ctx.Done():
				return
			}
		case ex := <-e.driver.Exited():
			select {
			case e.exits <- ex.Code:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (e *externalAdapter) Stop() error { return e.driver.Stop() }

func (e *externalAdapter) Append([]float32) error { return nil }

func (e *externalAdapter) Events() (<-chan string, <-chan error, <-chan int) {
	return e.transcripts, e.errOut, e.exits
}

// PlatformBackendFactory returns a BackendFactory that constructs a fresh
// platform-mode adapter for each generation, for a caller wiring a
// Controller to the platform transcription backend.
func PlatformBackendFactory() BackendFactory {
	return func(logger *slog.Logger) backendAdapter {
		return NewPlatformAdapter(logger)
	}
}

// ExternalBackendFactory returns a BackendFactory that constructs a fresh
// external-subprocess adapter for each generation, for a caller wiring a
// Controller to the external ASR binary.
func ExternalBackendFactory(cfg subprocess.Config) BackendFactory {
	return func(logger *slog.Logger) backendAdapter {
		return NewExternalAdapter(logger, cfg)
	}
}

// DemoPlatformFeeder lets a caller outside this package drive a
// platform-mode session with scripted transcripts, without needing to
// name the unexported backendAdapter type the factory constructs. Each
// generation gets its own platformAdapter; Emit always targets whichever
// one the Controller most recently constructed.
type DemoPlatformFeeder struct {
	mu      sync.Mutex
	current *platformAdapter
}

// NewDemoPlatformFeeder constructs a feeder.
func NewDemoPlatformFeeder() *DemoPlatformFeeder {
	return &DemoPlatformFeeder{}
}

// Factory returns the BackendFactory to pass as Options.BackendFactory.
func (f *DemoPlatformFeeder) Factory() BackendFactory {
	return func(logger *slog.Logger) backendAdapter {
		a := NewPlatformAdapter(logger)
		f.mu.Lock()
		f.current = a
		f.mu.Unlock()
		return a
	}
}

// Emit pushes a cumulative transcript through the most recently
// constructed generation's platform adapter.
func (f *DemoPlatformFeeder) Emit(ctx context.Context, text string) error {
	f.mu.Lock()
	a := f.current
	f.mu.Unlock()
	if a == nil {
		return fmt.Errorf("session: no backend constructed yet")
	}
	return a.Emit(ctx, text)
}

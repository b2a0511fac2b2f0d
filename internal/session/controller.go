package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nupi-ai/teleprompter-engine/internal/audio"
	"github.com/nupi-ai/teleprompter-engine/internal/matcher"
	"github.com/nupi-ai/teleprompter-engine/internal/sessionerr"
	"github.com/nupi-ai/teleprompter-engine/internal/telemetry"
)

// maxRetries is the retry budget: past this many consecutive failures
// the controller gives up and surfaces the error instead of scheduling
// another restart.
const maxRetries = 10

// deviceChangeSuppressWindow is how long the controller ignores its own
// device-change signal while it is mid-reassignment.
const deviceChangeSuppressWindow = 1 * time.Second

// BackendFactory constructs a fresh backendAdapter for one generation.
// The controller calls it on start, jump, and every restart — it never
// reuses a backendAdapter instance across generations.
type BackendFactory func(logger *slog.Logger) backendAdapter

// Options configures a new Controller.
type Options struct {
	Logger                     *slog.Logger
	Capture                    *audio.Capture
	BackendFactory             BackendFactory
	Locale                     string
	Authorizer                 Authorizer
	PrivacyPane                PrivacyPaneOpener
	RequireSpeechAuthorization bool // true for the platform backend
	Recorder                   *telemetry.Recorder
	Clock                      func() time.Time
	DeviceUID                  string
	Devices                    DeviceResolver
	// DisableTranscription mirrors spec §6's "the engine runs transcription
	// only for word_tracking": the caller sets this from
	// config.ListeningMode.RunsTranscription() being false (silence_paused,
	// classic). Start refuses to run while it is set; Stop/Snapshot still
	// work normally so the UI layer can still hold a Controller around for
	// the page the other listening modes advance through some other way.
	DisableTranscription bool
}

// Controller is the single mutator of observable engine state, owning
// Audio Capture, the active transcription backend, and the fuzzy
// matcher's cursor state across their full lifecycle. All mutating
// methods take the mutex rather than running a channel-driven actor
// loop; every mutation site double-checks the generation it is acting
// on before touching state.
type Controller struct {
	log               *slog.Logger
	capture           *audio.Capture
	factory           BackendFactory
	locale            string
	authz             Authorizer
	privacy           PrivacyPaneOpener
	requireSpeechAuth bool
	recorder          *telemetry.Recorder
	clock             func() time.Time
	deviceUID         string
	devices           DeviceResolver
	disableTranscr    bool

	mu                        sync.Mutex
	state                     RunState
	generation                uint64
	runID                     string
	page                      string
	backend                   backendAdapter
	backendKind               matcher.BackendKind
	matchState                matcher.State
	retryCount                int
	restartTimer              *time.Timer
	suppressDeviceChangeUntil time.Time
	errMsg                    string
	lastSpokenText            string
	shouldDismiss             bool
	shouldAdvancePage         bool
	metrics                   *telemetry.SessionMetrics
	genCancel                 context.CancelFunc
	parentCtx                 context.Context

	subsMu    sync.Mutex
	subs      map[int]chan Snapshot
	nextSubID int
}

// NewController constructs a Controller. The returned Controller owns
// opts.Capture for its entire lifetime; callers must not drive it
// directly once NewController is called.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authz := opts.Authorizer
	if authz == nil {
		authz = NoopAuthorizer{}
	}
	privacy := opts.PrivacyPane
	if privacy == nil {
		privacy = NoopPrivacyPaneOpener{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Controller{
		log:               logger.With("component", "session.Controller"),
		capture:           opts.Capture,
		factory:           opts.BackendFactory,
		locale:            opts.Locale,
		authz:             authz,
		privacy:           privacy,
		requireSpeechAuth: opts.RequireSpeechAuthorization,
		recorder:          opts.Recorder,
		clock:             clock,
		deviceUID:         opts.DeviceUID,
		devices:           opts.Devices,
		disableTranscr:    opts.DisableTranscription,
		state:             StateIdle,
		subs:              make(map[int]chan Snapshot),
		parentCtx:         context.Background(),
	}
}

// Subscribe registers a new observer and returns its delivery channel
// plus a function to unregister it. The channel is buffered to 1 and
// always holds the latest published Snapshot rather than queuing every
// intermediate one.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.subsMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = ch
	c.subsMu.Unlock()

	c.publish()

	cancel := func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	levels := [30]float64{}
	if c.capture != nil {
		copy(levels[:], c.capture.Levels())
	}
	isSpeaking := c.capture != nil && c.capture.IsSpeaking()
	recognized := c.matchState.RecognizedCharCount
	return Snapshot{
		State:               c.state,
		Generation:          c.generation,
		RecognizedCharCount: recognized,
		IsListening:         c.state == StateRunning,
		Error:               c.errMsg,
		AudioLevels:         levels,
		LastSpokenText:      c.lastSpokenTextLocked(),
		IsSpeaking:          isSpeaking,
		ShouldDismiss:       c.shouldDismiss,
		ShouldAdvancePage:   c.shouldAdvancePage,
	}
}

// lastSpokenText is tracked separately from matchState so Snapshot can
// report it without the matcher package needing to know about
// publication at all; stored alongside the other observable fields.
func (c *Controller) lastSpokenTextLocked() string { return c.lastSpokenText }

func (c *Controller) publish() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Start validates preconditions, requests the permissions the selected
// backend needs, and transitions to Running. It builds no compact index
// itself; the matcher derives one from the page on each Advance call.
func (c *Controller) Start(ctx context.Context, page string) error {
	if strings.TrimSpace(page) == "" {
		return fmt.Errorf("session: empty page")
	}
	if c.disableTranscr {
		return fmt.Errorf("session: transcription disabled for the current listening mode")
	}

	c.mu.Lock()
	if c.state == StateRunning || c.state == StateAuthorizing {
		c.mu.Unlock()
		return fmt.Errorf("session: already running")
	}
	c.parentCtx = ctx
	c.state = StateAuthorizing
	c.errMsg = ""
	c.mu.Unlock()
	c.publish()

	micResult, err := c.authz.RequestMicrophoneAuthorization()
	if err != nil {
		return c.fail(sessionerr.New(sessionerr.KindPermissionDenied, err))
	}
	if micResult == AuthDenied {
		c.privacy.OpenSystemPrivacyPane(PrivacyPaneMicrophone)
		return c.fail(sessionerr.New(sessionerr.KindPermissionDenied, fmt.Errorf("microphone access denied")))
	}

	if c.requireSpeechAuth {
		speechResult, err := c.authz.RequestSpeechRecognitionAuthorization()
		if err != nil {
			return c.fail(sessionerr.New(sessionerr.KindPermissionDenied, err))
		}
		if speechResult == AuthDenied {
			c.privacy.OpenSystemPrivacyPane(PrivacyPaneSpeechRecognition)
			return c.fail(sessionerr.New(sessionerr.KindPermissionDenied, fmt.Errorf("speech recognition access denied")))
		}
	}

	c.mu.Lock()
	c.page = page
	c.matchState = matcher.State{}
	c.retryCount = 0
	c.runID = uuid.NewString()
	c.metrics = c.recorder.StartSession(c.runID, map[string]string{"page_len": fmt.Sprintf("%d", len([]rune(page)))})
	c.mu.Unlock()

	if err := c.beginGenerationAndStartLocked(true); err != nil {
		return c.fail(sessionerr.New(sessionerr.KindRecognizerUnavailable, err))
	}

	c.mu.Lock()
	c.state = StateRunning
	c.mu.Unlock()
	c.publish()
	return nil
}

// fail surfaces a fatal error and returns to Idle.
func (c *Controller) fail(err *sessionerr.Error) error {
	c.mu.Lock()
	c.state = StateIdle
	if err.Kind.Surfaceable() {
		c.errMsg = err.Error()
	}
	c.mu.Unlock()
	c.publish()
	return err
}

// beginGenerationAndStartLocked bumps the generation, tears down any
// previous generation's backend/capture work, constructs a fresh
// backend via the factory, and starts capture+backend under the new
// generation's context. Must be called without c.mu held (it acquires
// the lock itself around the state mutation, but the backend/capture
// Start calls happen outside the lock so callbacks they trigger can
// take the lock without deadlocking).
func (c *Controller) beginGenerationAndStartLocked(openDevice bool) error {
	c.mu.Lock()
	if c.genCancel != nil {
		c.genCancel()
	}
	prevBackend := c.backend
	genCtx, cancel := context.WithCancel(c.parentCtx)
	c.genCancel = cancel
	c.generation++
	gen := c.generation
	backend := c.factory(c.log)
	kind := backend.Kind()
	c.backend = backend
	c.backendKind = kind
	mic := c.resolveDeviceIDLocked()
	c.mu.Unlock()

	c.log.Info("generation started", "generation", gen, "backend", backendKindLabel(kind))

	if prevBackend != nil {
		_ = prevBackend.Stop()
	}

	if err := backend.Configure(c.locale); err != nil {
		return fmt.Errorf("session: configure backend: %w", err)
	}

	if openDevice && c.capture != nil {
		// The device outlives a single backend generation: a backend-only
		// retry must not touch it, so it is started against the
		// session-lifetime parentCtx rather than genCtx, and stopped first
		// here so reassigning the device (resume, jump, hot-swap) never
		// leaves a prior pump goroutine running against a stale device.
		c.capture.Stop()
		c.mu.Lock()
		c.suppressDeviceChangeUntil = c.clock().Add(deviceChangeSuppressWindow)
		c.mu.Unlock()
		c.capture.OnConfigChange(func() { c.handleConfigChange(gen) })
		if err := c.capture.Start(c.parentCtx, mic); err != nil {
			return fmt.Errorf("session: start capture: %w", err)
		}
	}

	if c.capture != nil {
		// Re-pointed on every generation, including backend-only retries
		// where the device itself is never touched: the tap closure closes
		// over this generation's backend, so a stale generation's already-
		// stopped backend never keeps receiving frames after a restart.
		c.capture.SetTap(func(frame audio.Frame, level float64) {
			_ = backend.Append(frame.Samples)
		})
	}

	if err := backend.Start(genCtx); err != nil {
		return fmt.Errorf("session: start backend: %w", err)
	}

	transcripts, errs, exits := backend.Events()
	go c.pumpEvents(genCtx, gen, transcripts, errs, exits)
	return nil
}

// resolveDeviceIDLocked turns the configured mic UID into a live device
// ID via the injected DeviceResolver (spec §6's resolve_device_id). If no
// resolver is wired, or the UID no longer resolves to a device, it falls
// back to the raw UID so Source.Open can still try the system default or
// a direct match. Must be called with c.mu held.
func (c *Controller) resolveDeviceIDLocked() string {
	if c.deviceUID == "" || c.devices == nil {
		return c.deviceUID
	}
	if id, ok := c.devices.ResolveDeviceID(c.deviceUID); ok {
		return id
	}
	return c.deviceUID
}

// pumpEvents forwards one generation's backend event channels into the
// controller's generation-checked handlers until genCtx is cancelled.
func (c *Controller) pumpEvents(genCtx context.Context, gen uint64, transcripts <-chan string, errs <-chan error, exits <-chan int) {
	for {
		select {
		case <-genCtx.Done():
			return
		case text, ok := <-transcripts:
			if !ok {
				transcripts = nil
				continue
			}
			c.onTranscript(gen, text)
		case err := <-errs:
			if err == nil {
				errs = nil
				continue
			}
			c.onBackendError(gen, err)
		case code, ok := <-exits:
			if !ok {
				exits = nil
				continue
			}
			c.onExit(gen, code)
		}
	}
}

// onTranscript folds one hypothesis into the matcher and publishes the
// resulting cursor.
func (c *Controller) onTranscript(gen uint64, text string) {
	c.mu.Lock()
	if gen != c.generation || c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	prev := c.matchState.RecognizedCharCount
	var ev matcher.Event
	c.matchState, ev = matcher.Advance(c.page, c.matchState, text, c.backendKind, c.clock)
	c.lastSpokenText = text
	c.retryCount = 0
	pageLen := len([]rune(c.page))
	if c.matchState.RecognizedCharCount >= pageLen && pageLen > 0 {
		c.shouldAdvancePage = true
	}
	metrics := c.metrics
	advanced := c.matchState.RecognizedCharCount - prev
	c.mu.Unlock()

	metrics.RecordTranscript(advanced)
	if ev.FarJumpCommitted {
		metrics.RecordFarJump(true)
	} else if ev.FarJumpPending {
		metrics.RecordFarJump(false)
	}
	c.publish()
}

// onBackendError applies the backend-runtime-error retry policy.
func (c *Controller) onBackendError(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation || c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.retryOrSurface(gen, err)
}

// onExit applies the backend-exited retry policy: retryable while
// listening, not dismissed, and the page is non-empty.
func (c *Controller) onExit(gen uint64, code int) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	listening := c.state == StateRunning
	dismissed := c.shouldDismiss
	pageEmpty := strings.TrimSpace(c.page) == ""
	c.mu.Unlock()

	if !listening || dismissed || pageEmpty {
		return
	}
	c.retryOrSurface(gen, sessionerr.NewExited(code))
}

// retryOrSurface increments the retry counter and schedules a coalesced
// restart, or transitions to Paused with a surfaced error once the
// retry budget (maxRetries attempts, backoff min(retry*0.5s,1.5s)) is
// exhausted.
func (c *Controller) retryOrSurface(gen uint64, err error) {
	c.mu.Lock()

	if gen != c.generation {
		c.mu.Unlock()
		return
	}

	if c.retryCount >= maxRetries {
		c.state = StatePaused
		c.errMsg = err.Error()
		c.mu.Unlock()
		c.publish()
		return
	}

	c.retryCount++
	c.metrics.RecordRetry()
	c.state = StateRetrying
	delay := time.Duration(c.retryCount) * 500 * time.Millisecond
	if delay > 1500*time.Millisecond {
		delay = 1500 * time.Millisecond
	}
	c.scheduleRestartLocked(delay, false)
	c.mu.Unlock()
	c.publish()
}

// scheduleRestartLocked arms a coalesced restart timer: scheduling a new
// restart cancels any prior pending one. Must be called with c.mu held;
// the timer's own callback re-acquires the lock.
// reopenDevice carries through to the eventual beginGenerationAndStartLocked
// call, true for device hot-swaps which must reacquire the input device,
// false for backend-only failures where the device is still healthy.
func (c *Controller) scheduleRestartLocked(delay time.Duration, reopenDevice bool) {
	if c.restartTimer != nil {
		c.restartTimer.Stop()
		c.metrics.RecordRestartCoalesced()
	}
	gen := c.generation
	c.restartTimer = time.AfterFunc(delay, func() {
		c.fireRestart(gen, reopenDevice)
	})
}

// fireRestart runs when a scheduled restart's timer elapses. It
// double-checks the generation and state are still the ones the restart
// was scheduled for, discarding a stale firing the way any other
// callback's generation tag is discarded.
func (c *Controller) fireRestart(gen uint64, reopenDevice bool) {
	c.mu.Lock()
	if gen != c.generation || (c.state != StateRetrying) {
		c.mu.Unlock()
		return
	}
	c.restartTimer = nil
	c.mu.Unlock()

	if err := c.beginGenerationAndStartLocked(reopenDevice); err != nil {
		c.mu.Lock()
		c.state = StatePaused
		c.errMsg = err.Error()
		c.mu.Unlock()
		c.publish()
		return
	}

	c.mu.Lock()
	c.state = StateRunning
	c.mu.Unlock()
	c.publish()
}

// handleConfigChange reacts to the Audio Capture's device-change signal:
// unless the controller itself is mid-reassignment (suppression window),
// it restarts the backend and re-opens the device without touching the
// cursor or incrementing the retry counter — a far cheaper recovery path
// than the backend-error backoff policy, and one that never surfaces an
// error to the UI (sessionerr.KindDeviceHotSwap is never Surfaceable).
func (c *Controller) handleConfigChange(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	if c.clock().Before(c.suppressDeviceChangeUntil) {
		c.mu.Unlock()
		return
	}
	c.state = StateRetrying
	c.scheduleRestartLocked(0, true)
	c.mu.Unlock()
	c.publish()
}

// Resume re-enters Running at the current cursor, resetting retries and
// pulling match_start up to recognized_char_count.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		return fmt.Errorf("session: resume requires paused state, got %s", c.state)
	}
	c.retryCount = 0
	c.matchState.MatchStart = c.matchState.RecognizedCharCount
	c.errMsg = ""
	c.mu.Unlock()

	if err := c.beginGenerationAndStartLocked(false); err != nil {
		return c.fail(sessionerr.New(sessionerr.KindRecognizerUnavailable, err))
	}

	c.mu.Lock()
	c.state = StateRunning
	c.mu.Unlock()
	c.publish()
	return nil
}

// JumpTo resets the cursor to offset, clears any pending far jump, bumps
// the generation, and restarts recognition if the session is running.
func (c *Controller) JumpTo(offset int) {
	c.mu.Lock()
	pageLen := len([]rune(c.page))
	if offset < 0 {
		offset = 0
	}
	if offset > pageLen {
		offset = pageLen
	}
	c.matchState = matcher.JumpTo(offset)
	running := c.state == StateRunning
	if !running {
		// beginGenerationAndStartLocked bumps the generation itself when
		// restarting recognition; when idle/paused nothing else will, but
		// a jump must still invalidate any in-flight stale callbacks.
		c.generation++
	}
	c.mu.Unlock()
	c.publish()

	if running {
		if err := c.beginGenerationAndStartLocked(false); err != nil {
			c.fail(sessionerr.New(sessionerr.KindRecognizerUnavailable, err))
			return
		}
		c.publish()
	}
}

// Stop cancels pending restarts, stops the backend and audio capture,
// clears pending anchor state implicitly (a fresh matcher.State carries
// none), and transitions to Idle. It is idempotent.
func (c *Controller) Stop() {
	c.stop(false)
}

// ForceStop additionally clears the page and raises the retry counter to
// the maximum to inhibit any auto-recovery still in flight.
func (c *Controller) ForceStop() {
	c.stop(true)
}

func (c *Controller) stop(force bool) {
	c.mu.Lock()
	if c.restartTimer != nil {
		c.restartTimer.Stop()
		c.restartTimer = nil
	}
	if c.genCancel != nil {
		c.genCancel()
		c.genCancel = nil
	}
	if c.capture != nil {
		c.capture.Stop()
	}
	backend := c.backend
	metrics := c.metrics
	c.backend = nil
	c.state = StateIdle
	c.matchState = matcher.State{}
	c.shouldDismiss = false
	c.shouldAdvancePage = false
	if force {
		c.page = ""
		c.retryCount = maxRetries
	}
	c.mu.Unlock()

	if backend != nil {
		_ = backend.Stop()
	}
	metrics.Finish(nil)
	c.publish()
}

// Package audio implements the Audio Capture component: it owns a single
// input device, delivers PCM frames and RMS levels to a tap callback,
// and signals configuration changes (device unplugged, sample rate
// changed) to the session controller.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Frame is one block of captured PCM samples plus the device's format at
// capture time.
type Frame struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Device describes one enumerable input device, as returned by
// enumerating audio input devices and resolved from a stored device ID.
type Device struct {
	ID   string
	UID  string
	Name string
}

// Source is the thing that actually produces frames — a real platform
// capture graph in production, a canned or synthetic generator in tests
// and the demo command. Capture adapts whatever Source it's given into
// the tap/RMS/config-change contract the session controller expects.
type Source interface {
	// Open binds to deviceID (empty for system default) and returns a
	// channel of frames that closes when the source stops, plus a
	// channel that is sent to whenever the source detects its own
	// format/device change out from under it.
	Open(ctx context.Context, deviceID string) (frames <-chan Frame, configChanged <-chan struct{}, err error)
}

// ErrInvalidFormat names the condition of a device reporting an unusable
// sample rate or channel count. Capture itself does not return it: frames
// with such a format are logged and dropped, and no error reaches the
// caller.
var ErrInvalidFormat = fmt.Errorf("audio: invalid device format")

// TapFunc receives each captured frame along with its scaled RMS level.
type TapFunc func(frame Frame, level float64)

// Capture owns exactly one input device at a time.
type Capture struct {
	log    *slog.Logger
	source Source

	mu             sync.Mutex
	cancel         context.CancelFunc
	tap            TapFunc
	onConfigChange func()
	suppressUntil  time.Time
	levels         *LevelRing
}

// NewCapture constructs a Capture around the given Source.
func NewCapture(logger *slog.Logger, source Source) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		log:    logger.With("component", "audio.Capture"),
		source: source,
		levels: NewLevelRing(30),
	}
}

// SetTap installs a single frame callback, replacing any prior tap.
func (c *Capture) SetTap(tap TapFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tap = tap
}

// OnConfigChange registers the callback invoked when the device's audio
// graph changes out from under the session, unless currently suppressed.
func (c *Capture) OnConfigChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConfigChange = fn
}

// SuppressConfigChange ignores config-change signals for the given
// duration, used while the controller itself is reassigning the device.
func (c *Capture) SuppressConfigChange(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suppressUntil = time.Now().Add(d)
}

// Start acquires the device (system default if deviceID is empty) and
// begins delivering frames to the installed tap.
func (c *Capture) Start(ctx context.Context, deviceID string) error {
	frames, configChanged, err := c.source.Open(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("audio: open device %q: %w", deviceID, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.pump(runCtx, frames)
	go c.watchConfigChange(runCtx, configChanged)
	return nil
}

// Stop is idempotent: it removes the tap and releases the device.
func (c *Capture) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.tap = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Levels returns a snapshot of the most recent RMS levels, most-recent-last.
func (c *Capture) Levels() []float64 {
	return c.levels.Snapshot()
}

// IsSpeaking reports whether the mean of the last 10 levels exceeds the
// speaking threshold.
func (c *Capture) IsSpeaking() bool {
	return c.levels.MeanOfLast(10) > speakingThreshold
}

const speakingThreshold = 0.08

func (c *Capture) pump(ctx context.Context, frames <-chan Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if frame.SampleRate <= 0 || frame.Channels == 0 {
				c.log.Warn("transient invalid audio format", "sample_rate", frame.SampleRate, "channels", frame.Channels)
				continue
			}
			level := scaledRMS(frame.Samples)
			c.levels.Push(level)

			c.mu.Lock()
			tap := c.tap
			c.mu.Unlock()
			if tap != nil {
				tap(frame, level)
			}
		}
	}
}

func (c *Capture) watchConfigChange(ctx context.Context, changed <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changed:
			if !ok {
				return
			}
			c.mu.Lock()
			suppressed := time.Now().Before(c.suppressUntil)
			fn := c.onConfigChange
			c.mu.Unlock()
			if suppressed {
				c.log.Debug("config change suppressed")
				continue
			}
			if fn != nil {
				fn()
			}
		}
	}
}

func scaledRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		sumSquares += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))
	level := rms * 5
	if level > 1 {
		level = 1
	}
	return level
}

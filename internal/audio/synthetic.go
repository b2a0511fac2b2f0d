package audio

import (
	"context"
	"time"
)

// SilentSource is an audio.Source that never picks up a real device: it
// emits empty-level frames on a fixed tick so a Capture has something to
// drive its RMS ring with, for the demo command and for tests that only
// care about backend event wiring. Its config-changed channel is never
// written to; callers that need to exercise device hot-swap drive it
// through a different Source (see the session package's test doubles).
type SilentSource struct {
	frameDur time.Duration
	samples  int
}

// NewSilentSource constructs a SilentSource producing one frame of
// samples every frameDur at 16kHz mono, the external subprocess driver's
// expected input format.
func NewSilentSource(frameDur time.Duration, samples int) *SilentSource {
	if frameDur <= 0 {
		frameDur = 20 * time.Millisecond
	}
	if samples <= 0 {
		samples = 320
	}
	return &SilentSource{frameDur: frameDur, samples: samples}
}

// Open implements Source.
func (s *SilentSource) Open(ctx context.Context, _ string) (<-chan Frame, <-chan struct{}, error) {
	frames := make(chan Frame)
	configChanged := make(chan struct{})

	go func() {
		defer close(frames)
		ticker := time.NewTicker(s.frameDur)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case frames <- Frame{Samples: make([]float32, s.samples), SampleRate: 16000, Channels: 1}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return frames, configChanged, nil
}

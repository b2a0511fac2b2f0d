package sessionerr_test

import (
	"errors"
	"testing"

	"github.com/nupi-ai/teleprompter-engine/internal/sessionerr"
)

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("device gone")
	err := sessionerr.New(sessionerr.KindTransientAudioUnavailable, cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
	if err.Kind != sessionerr.KindTransientAudioUnavailable {
		t.Fatalf("unexpected kind: %v", err.Kind)
	}
}

func TestExitedCarriesCode(t *testing.T) {
	err := sessionerr.NewExited(137)
	if err.ExitCode != 137 {
		t.Fatalf("unexpected exit code: %d", err.ExitCode)
	}
	if !err.Kind.Retryable() {
		t.Fatalf("expected BackendExited to be retryable")
	}
}

func TestDeviceHotSwapNeverSurfaces(t *testing.T) {
	if sessionerr.KindDeviceHotSwap.Surfaceable() {
		t.Fatalf("expected DeviceHotSwap to never be surfaceable")
	}
	if sessionerr.KindPermissionDenied.Retryable() {
		t.Fatalf("expected PermissionDenied to be fatal, not retryable")
	}
}

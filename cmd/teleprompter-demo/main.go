// Command teleprompter-demo wires a Session Controller end to end using
// either the platform backend (fed a canned transcript script) or the
// external subprocess backend (driven by a real sense-voice-stream
// binary), and logs every published Snapshot until interrupted. It
// exists to exercise the engine the way an embedder would, mirroring the
// teacher's cmd/adapter/main.go construct-collaborators-then-serve shape
// without the gRPC surface this engine never exposes.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nupi-ai/teleprompter-engine/internal/assets"
	"github.com/nupi-ai/teleprompter-engine/internal/audio"
	"github.com/nupi-ai/teleprompter-engine/internal/config"
	"github.com/nupi-ai/teleprompter-engine/internal/engineinfo"
	"github.com/nupi-ai/teleprompter-engine/internal/session"
	"github.com/nupi-ai/teleprompter-engine/internal/subprocess"
	"github.com/nupi-ai/teleprompter-engine/internal/telemetry"
)

const demoPage = "The quick brown fox jumps over the lazy dog. " +
	"Pack my box with five dozen liquor jugs. " +
	"How vexingly quick daft zebras jump."

// demoScript is a canned sequence of cumulative platform-backend
// transcripts: each line is what the recognizer would report as the
// transcript-so-far after the speaker utters a bit more of demoPage.
var demoScript = []string{
	"the quick",
	"the quick brown fox",
	"the quick brown fox jumps over the lazy dog",
	"the quick brown fox jumps over the lazy dog pack my box",
	"the quick brown fox jumps over the lazy dog pack my box with five dozen liquor jugs",
	"the quick brown fox jumps over the lazy dog pack my box with five dozen liquor jugs how vexingly quick daft zebras jump",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settingsPath := filepath.Join(os.TempDir(), "teleprompter-engine-demo-settings.yaml")
	cfg, err := config.Loader{Store: config.FileStore{Path: settingsPath}}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting demo",
		"engine", engineinfo.Info.Slug,
		"engine_mode", cfg.EngineMode,
		"speech_locale", cfg.SpeechLocale,
	)

	recorder := telemetry.NewRecorder(logger)
	capture := audio.NewCapture(logger, audio.NewSilentSource(20*time.Millisecond, 320))

	var factory session.BackendFactory
	var feeder *session.DemoPlatformFeeder

	switch cfg.EngineMode {
	case config.EngineModeExternal:
		resolver := assets.NewResolver(logger, []string{
			filepath.Join(os.Getenv("HOME"), ".local", "bin", "sense-voice-stream"),
			"/usr/local/bin/sense-voice-stream",
		})
		resolvedPath, persist, resolveErr := resolver.ResolveExecutable(cfg.ExternalExecutablePath)
		if resolveErr != nil {
			logger.Error("failed to resolve external executable", "error", resolveErr)
			os.Exit(1)
		}
		if persist {
			cfg.ExternalExecutablePath = resolvedPath
			if err := (config.FileStore{Path: settingsPath}).Save(cfg); err != nil {
				logger.Warn("failed to persist resolved executable path", "error", err)
			}
		}
		factory = session.ExternalBackendFactory(subprocess.Config{
			ExecutablePath:     resolvedPath,
			ModelPath:          cfg.ExternalModelPath,
			Language:           cfg.ExternalLanguage,
			DisableGPU:         cfg.ExternalDisableGPU,
			LibrarySearchPaths: assets.LibrarySearchPaths(resolvedPath),
		})
	default:
		feeder = session.NewDemoPlatformFeeder()
		factory = feeder.Factory()
	}

	ctrl := session.NewController(session.Options{
		Logger:                     logger,
		Capture:                    capture,
		BackendFactory:             factory,
		Locale:                     cfg.SpeechLocale,
		Recorder:                   recorder,
		RequireSpeechAuthorization: cfg.EngineMode == config.EngineModePlatform,
		DeviceUID:                  cfg.SelectedMicUID,
		DisableTranscription:       !cfg.ListeningMode.RunsTranscription(),
	})

	sub, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	go logSnapshots(ctx, logger, sub)

	if err := ctrl.Start(ctx, demoPage); err != nil {
		logger.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	if feeder != nil {
		go runScript(ctx, logger, feeder)
	}

	<-ctx.Done()
	logger.Info("shutdown requested, stopping session")
	ctrl.Stop()

	if snapshot := recorder.Snapshot(); snapshot.TotalSessions > 0 {
		logger.Info("telemetry totals",
			"total_sessions", snapshot.TotalSessions,
			"total_transcripts", snapshot.TotalTranscripts,
			"total_far_jumps_committed", snapshot.TotalFarJumpsCommitted,
			"total_far_jumps_debounced", snapshot.TotalFarJumpsDebounced,
			"total_retries", snapshot.TotalRetries,
			"total_restarts_coalesced", snapshot.TotalRestartsCoalesced,
		)
	}

	logger.Info("demo stopped")
}

// runScript feeds demoScript's cumulative transcripts into the platform
// feeder at a human-ish pace, standing in for a live recognizer callback.
func runScript(ctx context.Context, logger *slog.Logger, feeder *session.DemoPlatformFeeder) {
	ticker := time.NewTicker(900 * time.Millisecond)
	defer ticker.Stop()
	for _, line := range demoScript {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := feeder.Emit(ctx, line); err != nil {
				logger.Warn("failed to emit scripted transcript", "error", err)
				return
			}
		}
	}
}

func logSnapshots(ctx context.Context, logger *slog.Logger, sub <-chan session.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub:
			if !ok {
				return
			}
			logger.Info("snapshot",
				"state", snap.State,
				"generation", snap.Generation,
				"recognized_char_count", snap.RecognizedCharCount,
				"is_listening", snap.IsListening,
				"should_advance_page", snap.ShouldAdvancePage,
				"error", snap.Error,
			)
		}
	}
}

func newLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

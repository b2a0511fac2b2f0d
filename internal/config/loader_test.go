package config_test

import (
	"testing"

	"github.com/nupi-ai/teleprompter-engine/internal/config"
)

func TestLoaderDefaults(t *testing.T) {
	loader := config.Loader{
		Lookup: func(string) (string, bool) { return "", false },
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	assertEqual(t, config.DefaultSpeechLocale, cfg.SpeechLocale, "speech locale")
	assertEqual(t, string(config.DefaultEngineMode), string(cfg.EngineMode), "engine mode")
	assertEqual(t, string(config.DefaultListeningMode), string(cfg.ListeningMode), "listening mode")
	assertEqual(t, config.DefaultLogLevel, cfg.LogLevel, "log level")
	assertEqual(t, config.DefaultExternalLanguage, cfg.ExternalLanguage, "external language")
	if cfg.AutoNextPage {
		t.Fatalf("expected auto_next_page disabled by default")
	}
	assertInt(t, config.DefaultAutoNextPageDelay, cfg.AutoNextPageDelay, "auto_next_page_delay")
}

func TestLoaderOverrides(t *testing.T) {
	env := map[string]string{
		"TELEPROMPTER_CONFIG":                   `{"speech_locale":"pl-PL","auto_next_page_delay":1500}`,
		"TELEPROMPTER_ENGINE_MODE":               "external",
		"TELEPROMPTER_EXTERNAL_EXECUTABLE_PATH":  "/opt/sensevoice/run",
		"TELEPROMPTER_EXTERNAL_LANGUAGE":         "en",
		"TELEPROMPTER_EXTERNAL_DISABLE_GPU":      "true",
		"TELEPROMPTER_LISTENING_MODE":            "silence_paused",
		"TELEPROMPTER_LOG_LEVEL":                 "debug",
		"TELEPROMPTER_AUTO_NEXT_PAGE":            "true",
	}

	loader := config.Loader{
		Lookup: func(key string) (string, bool) {
			value, ok := env[key]
			return value, ok
		},
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	assertEqual(t, "pl-PL", cfg.SpeechLocale, "speech locale")
	assertEqual(t, string(config.EngineModeExternal), string(cfg.EngineMode), "engine mode")
	assertEqual(t, "/opt/sensevoice/run", cfg.ExternalExecutablePath, "external executable path")
	assertEqual(t, "en", cfg.ExternalLanguage, "external language")
	assertEqual(t, string(config.ListeningModeSilencePaused), string(cfg.ListeningMode), "listening mode")
	assertEqual(t, "debug", cfg.LogLevel, "log level")
	if !cfg.ExternalDisableGPU {
		t.Fatalf("expected external_disable_gpu true")
	}
	if !cfg.AutoNextPage {
		t.Fatalf("expected auto_next_page true")
	}
	assertInt(t, 1500, cfg.AutoNextPageDelay, "auto_next_page_delay")
}

func TestLoaderRejectsExternalModeWithoutExecutable(t *testing.T) {
	env := map[string]string{
		"TELEPROMPTER_ENGINE_MODE": "external",
	}
	loader := config.Loader{
		Lookup: func(key string) (string, bool) {
			value, ok := env[key]
			return value, ok
		},
	}
	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected validation error for external mode without an executable path")
	}
}

func TestLoaderFileDefaultsThenEnvOverride(t *testing.T) {
	store := fakeStore{cfg: config.Config{SpeechLocale: "fr-FR", LogLevel: "warn"}}
	env := map[string]string{
		"TELEPROMPTER_LOG_LEVEL": "error",
	}
	loader := config.Loader{
		Store: store,
		Lookup: func(key string) (string, bool) {
			value, ok := env[key]
			return value, ok
		},
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	assertEqual(t, "fr-FR", cfg.SpeechLocale, "speech locale from file")
	assertEqual(t, "error", cfg.LogLevel, "log level overridden by env")
}

type fakeStore struct {
	cfg config.Config
}

func (f fakeStore) Load() (config.Config, error) { return f.cfg, nil }
func (f fakeStore) Save(config.Config) error      { return nil }

func assertEqual(t *testing.T, want, got, label string) {
	t.Helper()
	if want != got {
		t.Fatalf("unexpected %s: want %q, got %q", label, want, got)
	}
}

func assertInt(t *testing.T, want, got int, label string) {
	t.Helper()
	if want != got {
		t.Fatalf("unexpected %s: want %d, got %d", label, want, got)
	}
}

// Package config loads and validates the engine's persisted settings:
// speech backend selection, locale, the external subprocess's
// executable/model paths, listening mode, and auto-advance behavior.
package config

import "fmt"

// EngineMode selects which transcription backend variant the session
// controller should start.
type EngineMode string

const (
	EngineModePlatform EngineMode = "platform"
	EngineModeExternal EngineMode = "external"
)

// ListeningMode controls when the engine runs transcription at all. Per
// spec §6, the engine only drives the transcription backend in
// word_tracking; silence_paused and classic are UI-level page-advance
// policies that this engine observes but never use as a trigger to start
// capturing audio or appending frames to a backend.
type ListeningMode string

const (
	ListeningModeWordTracking  ListeningMode = "word_tracking"
	ListeningModeSilencePaused ListeningMode = "silence_paused"
	ListeningModeClassic       ListeningMode = "classic"
)

// RunsTranscription reports whether the session controller should drive
// the transcription backend under this listening mode.
func (m ListeningMode) RunsTranscription() bool {
	return m == ListeningModeWordTracking
}

const (
	DefaultSpeechLocale      = "auto"
	DefaultEngineMode        = EngineModePlatform
	DefaultListeningMode     = ListeningModeWordTracking
	DefaultExternalLanguage  = "auto"
	DefaultAutoNextPageDelay = 0
	DefaultLogLevel          = "info"
)

// Config is the engine's full persisted-plus-environment configuration.
type Config struct {
	SpeechLocale   string
	EngineMode     EngineMode
	ListeningMode  ListeningMode
	SelectedMicUID string
	LogLevel       string

	ExternalExecutablePath string
	ExternalModelPath      string
	ExternalLanguage       string
	ExternalDisableGPU     bool

	AutoNextPage      bool
	AutoNextPageDelay int // milliseconds
}

// Validate applies defaults and rejects out-of-range values.
func (c *Config) Validate() error {
	if c.SpeechLocale == "" {
		c.SpeechLocale = DefaultSpeechLocale
	}
	if c.EngineMode == "" {
		c.EngineMode = DefaultEngineMode
	}
	if c.EngineMode != EngineModePlatform && c.EngineMode != EngineModeExternal {
		return fmt.Errorf("config: unknown engine mode %q", c.EngineMode)
	}
	if c.ListeningMode == "" {
		c.ListeningMode = DefaultListeningMode
	}
	switch c.ListeningMode {
	case ListeningModeWordTracking, ListeningModeSilencePaused, ListeningModeClassic:
	default:
		return fmt.Errorf("config: unknown listening mode %q", c.ListeningMode)
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ExternalLanguage == "" {
		c.ExternalLanguage = DefaultExternalLanguage
	}
	switch c.ExternalLanguage {
	case "auto", "zh", "en", "yue", "ja", "ko":
	default:
		return fmt.Errorf("config: unknown external_language %q", c.ExternalLanguage)
	}
	if c.EngineMode == EngineModeExternal && c.ExternalExecutablePath == "" {
		return fmt.Errorf("config: external_executable_path is required when engine mode is %q", EngineModeExternal)
	}
	if c.AutoNextPageDelay < 0 {
		return fmt.Errorf("config: auto_next_page_delay must be >= 0, got %d", c.AutoNextPageDelay)
	}
	return nil
}

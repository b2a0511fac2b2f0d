package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store persists settings across runs. The demo command uses it to write
// back a resolved external executable path once found, so the next run
// finds a valid configured path and reuses it directly.
type Store interface {
	Load() (Config, error)
	Save(Config) error
}

// FileStore persists Config as YAML on disk, the way a desktop app would
// keep its settings file.
type FileStore struct {
	Path string
}

type yamlConfig struct {
	SpeechLocale           string `yaml:"speech_locale"`
	EngineMode             string `yaml:"speech_engine_mode"`
	ListeningMode          string `yaml:"listening_mode"`
	SelectedMicUID         string `yaml:"selected_mic_uid"`
	LogLevel               string `yaml:"log_level"`
	ExternalExecutablePath string `yaml:"external_executable_path"`
	ExternalModelPath      string `yaml:"external_model_path"`
	ExternalLanguage       string `yaml:"external_language"`
	ExternalDisableGPU     bool   `yaml:"external_disable_gpu"`
	AutoNextPage           bool   `yaml:"auto_next_page"`
	AutoNextPageDelay      int    `yaml:"auto_next_page_delay"`
}

// Load reads the settings file. A missing file is not an error; it yields
// a zero-value Config so callers fall through to defaults/env overrides.
func (s FileStore) Load() (Config, error) {
	raw, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", s.Path, err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", s.Path, err)
	}

	return Config{
		SpeechLocale:           y.SpeechLocale,
		EngineMode:             EngineMode(y.EngineMode),
		ListeningMode:          ListeningMode(y.ListeningMode),
		SelectedMicUID:         y.SelectedMicUID,
		LogLevel:               y.LogLevel,
		ExternalExecutablePath: y.ExternalExecutablePath,
		ExternalModelPath:      y.ExternalModelPath,
		ExternalLanguage:       y.ExternalLanguage,
		ExternalDisableGPU:     y.ExternalDisableGPU,
		AutoNextPage:           y.AutoNextPage,
		AutoNextPageDelay:      y.AutoNextPageDelay,
	}, nil
}

// Save writes cfg to the settings file, overwriting it entirely.
func (s FileStore) Save(cfg Config) error {
	y := yamlConfig{
		SpeechLocale:           cfg.SpeechLocale,
		EngineMode:             string(cfg.EngineMode),
		ListeningMode:          string(cfg.ListeningMode),
		SelectedMicUID:         cfg.SelectedMicUID,
		LogLevel:               cfg.LogLevel,
		ExternalExecutablePath: cfg.ExternalExecutablePath,
		ExternalModelPath:      cfg.ExternalModelPath,
		ExternalLanguage:       cfg.ExternalLanguage,
		ExternalDisableGPU:     cfg.ExternalDisableGPU,
		AutoNextPage:           cfg.AutoNextPage,
		AutoNextPageDelay:      cfg.AutoNextPageDelay,
	}
	out, err := yaml.Marshal(y)
	if err != nil {
		return fmt.Errorf("config: marshal settings: %w", err)
	}
	if err := os.WriteFile(s.Path, out, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", s.Path, err)
	}
	return nil
}

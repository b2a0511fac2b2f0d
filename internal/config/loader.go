package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Loader loads configuration with the precedence settings-file defaults,
// then environment overrides, then validation. Tests can override Lookup
// to inject deterministic maps and Store to avoid touching disk.
type Loader struct {
	Lookup func(string) (string, bool)
	Store  Store
}

// Load retrieves the engine configuration and validates it.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	var cfg Config
	if l.Store != nil {
		fromFile, err := l.Store.Load()
		if err != nil {
			return Config{}, err
		}
		cfg = fromFile
	}

	if raw, ok := l.Lookup("TELEPROMPTER_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(l.Lookup, "TELEPROMPTER_SPEECH_LOCALE", &cfg.SpeechLocale)
	overrideEngineMode(l.Lookup, "TELEPROMPTER_ENGINE_MODE", &cfg.EngineMode)
	overrideListeningMode(l.Lookup, "TELEPROMPTER_LISTENING_MODE", &cfg.ListeningMode)
	overrideString(l.Lookup, "TELEPROMPTER_SELECTED_MIC_UID", &cfg.SelectedMicUID)
	overrideString(l.Lookup, "TELEPROMPTER_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "TELEPROMPTER_EXTERNAL_EXECUTABLE_PATH", &cfg.ExternalExecutablePath)
	overrideString(l.Lookup, "TELEPROMPTER_EXTERNAL_MODEL_PATH", &cfg.ExternalModelPath)
	overrideString(l.Lookup, "TELEPROMPTER_EXTERNAL_LANGUAGE", &cfg.ExternalLanguage)
	overrideBool(l.Lookup, "TELEPROMPTER_EXTERNAL_DISABLE_GPU", &cfg.ExternalDisableGPU)
	overrideBool(l.Lookup, "TELEPROMPTER_AUTO_NEXT_PAGE", &cfg.AutoNextPage)
	overrideInt(l.Lookup, "TELEPROMPTER_AUTO_NEXT_PAGE_DELAY", &cfg.AutoNextPageDelay)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyJSON(raw string, cfg *Config) error {
	type jsonConfig struct {
		SpeechLocale           string `json:"speech_locale"`
		EngineMode             string `json:"speech_engine_mode"`
		ListeningMode          string `json:"listening_mode"`
		SelectedMicUID         string `json:"selected_mic_uid"`
		LogLevel               string `json:"log_level"`
		ExternalExecutablePath string `json:"external_executable_path"`
		ExternalModelPath      string `json:"external_model_path"`
		ExternalLanguage       string `json:"external_language"`
		ExternalDisableGPU     *bool  `json:"external_disable_gpu"`
		AutoNextPage           *bool  `json:"auto_next_page"`
		AutoNextPageDelay      *int   `json:"auto_next_page_delay"`
	}
	var payload jsonConfig
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode TELEPROMPTER_CONFIG: %w", err)
	}
	if payload.SpeechLocale != "" {
		cfg.SpeechLocale = payload.SpeechLocale
	}
	if payload.EngineMode != "" {
		cfg.EngineMode = EngineMode(payload.EngineMode)
	}
	if payload.ListeningMode != "" {
		cfg.ListeningMode = ListeningMode(payload.ListeningMode)
	}
	if payload.SelectedMicUID != "" {
		cfg.SelectedMicUID = payload.SelectedMicUID
	}
	if payload.LogLevel != "" {
		cfg.LogLevel = payload.LogLevel
	}
	if payload.ExternalExecutablePath != "" {
		cfg.ExternalExecutablePath = payload.ExternalExecutablePath
	}
	if payload.ExternalModelPath != "" {
		cfg.ExternalModelPath = payload.ExternalModelPath
	}
	if payload.ExternalLanguage != "" {
		cfg.ExternalLanguage = payload.ExternalLanguage
	}
	if payload.ExternalDisableGPU != nil {
		cfg.ExternalDisableGPU = *payload.ExternalDisableGPU
	}
	if payload.AutoNextPage != nil {
		cfg.AutoNextPage = *payload.AutoNextPage
	}
	if payload.AutoNextPageDelay != nil {
		cfg.AutoNextPageDelay = *payload.AutoNextPageDelay
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideEngineMode(lookup func(string) (string, bool), key string, target *EngineMode) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = EngineMode(strings.TrimSpace(value))
	}
}

func overrideListeningMode(lookup func(string) (string, bool), key string, target *ListeningMode) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = ListeningMode(strings.TrimSpace(value))
	}
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			*target = parsed
		}
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			*target = parsed
		}
	}
}

package config

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/text/language"
)

const runtimeSettingsKey = "runtime_settings"

// RuntimeSettings are the knobs mutable at runtime through the API. They
// are persisted in the checkpoint database and overlaid onto the static
// configuration at startup.
type RuntimeSettings struct {
	TargetLanguage   string `json:"target_language"`
	WorkerCount      int    `json:"worker_count"`
	BatchTokenBudget int    `json:"batch_token_budget"`
	RetryBudget      int    `json:"retry_budget"`
}

func (s RuntimeSettings) Validate() error {
	if s.TargetLanguage != "" {
		if _, err := language.Parse(s.TargetLanguage); err != nil {
			return fmt.Errorf("invalid target_language: %w", err)
		}
	}
	if s.WorkerCount < 0 {
		return fmt.Errorf("worker_count must not be negative")
	}
	if s.BatchTokenBudget < 0 {
		return fmt.Errorf("batch_token_budget must not be negative")
	}
	if s.RetryBudget < 0 {
		return fmt.Errorf("retry_budget must not be negative")
	}
	return nil
}

// RuntimeSettings snapshots the mutable subset of the configuration.
func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		TargetLanguage:   c.Translate.TargetLang,
		WorkerCount:      c.Translate.WorkerCount,
		BatchTokenBudget: c.Translate.BatchTokenBudget,
		RetryBudget:      c.Translate.RetryBudget,
	}
}

// WithRuntimeSettings overlays persisted runtime settings; zero values keep
// the configured defaults.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if settings.TargetLanguage != "" {
			if _, err := language.Parse(settings.TargetLanguage); err == nil {
				c.Translate.TargetLang = settings.TargetLanguage
			}
		}
		if settings.WorkerCount > 0 {
			c.Translate.WorkerCount = settings.WorkerCount
		}
		if settings.BatchTokenBudget > 0 {
			c.Translate.BatchTokenBudget = settings.BatchTokenBudget
		}
		if settings.RetryBudget > 0 {
			c.Translate.RetryBudget = settings.RetryBudget
		}
	}
}

// SettingsStore is the persistence surface runtime settings need; the
// checkpoint store provides it.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// LoadRuntimeSettings reads persisted settings, with found=false on first
// start.
func LoadRuntimeSettings(ctx context.Context, store SettingsStore) (RuntimeSettings, bool, error) {
	raw, found, err := store.GetSetting(ctx, runtimeSettingsKey)
	if err != nil || !found {
		return RuntimeSettings{}, false, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return RuntimeSettings{}, false, fmt.Errorf("decode runtime settings: %w", err)
	}
	return settings, true, nil
}

// SaveRuntimeSettings validates and persists settings.
func SaveRuntimeSettings(ctx context.Context, store SettingsStore, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return store.SetSetting(ctx, runtimeSettingsKey, string(raw))
}

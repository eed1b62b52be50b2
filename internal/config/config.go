// Package config holds the service configuration: environment variables
// with sensible defaults, an optional YAML overlay, and mutable runtime
// settings persisted across restarts.
//
// Environment Variables:
//
// Backend Configuration:
//   - BACKEND: translation backend, one of openai|local|google (default: openai)
//   - LLM_API_KEY: API key for the OpenAI-compatible provider
//   - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
//   - LLM_MODEL: model name (default: openai/gpt-4o-mini)
//   - LLM_MAX_TOKENS: max response tokens (default: 4096)
//   - LLM_TEMPERATURE: sampling temperature (default: 0.3)
//   - LLM_TIMEOUT: request timeout in seconds (default: 120)
//   - LOCAL_API_URL: local daemon URL (default: http://localhost:11434)
//   - LOCAL_MODEL: local model name (default: llama3.2)
//   - GOOGLE_CREDENTIALS_FILE: service-account JSON path (optional)
//
// Translation Configuration:
//   - SOURCE_LANG: source language or "auto" (default: auto)
//   - TARGET_LANG: target language (default: en)
//   - BATCH_TOKEN_BUDGET: token budget per batch (default: 768)
//   - RETRY_BUDGET: retries per unit after the first attempt (default: 3)
//   - WORKER_COUNT: scheduler worker pool size (default: 4)
//   - MIN_UNIT_LENGTH: minimum unit length in runes (default: 2)
//
// Service Configuration:
//   - HTTP_ADDR: API listen address (default: :8080)
//   - DB_PATH: sqlite checkpoint path (default: ./data/doctrans.db)
//   - QUEUE_WORKERS: concurrent jobs (default: 2)
//   - RETENTION_TTL_HOURS: archived job data TTL (default: 168)
//   - RETENTION_CRON: sweep schedule (default: "0 3 * * *")
//   - CONFIG_FILE: optional YAML overlay path
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/transtools/doctrans/pkg/log"
)

type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Translate TranslateConfig `yaml:"translate"`
	Service   ServiceConfig   `yaml:"service"`
}

// BackendConfig selects and configures the translation provider.
type BackendConfig struct {
	Kind string `yaml:"kind"`

	LLMAPIKey      string  `yaml:"llm_api_key"`
	LLMAPIURL      string  `yaml:"llm_api_url"`
	LLMModel       string  `yaml:"llm_model"`
	LLMMaxTokens   int     `yaml:"llm_max_tokens"`
	LLMTemperature float64 `yaml:"llm_temperature"`
	LLMTimeout     int     `yaml:"llm_timeout"`

	LocalAPIURL string `yaml:"local_api_url"`
	LocalModel  string `yaml:"local_model"`

	GoogleCredentialsFile string `yaml:"google_credentials_file"`
}

type TranslateConfig struct {
	SourceLang       string `yaml:"source_lang"`
	TargetLang       string `yaml:"target_lang"`
	BatchTokenBudget int    `yaml:"batch_token_budget"`
	RetryBudget      int    `yaml:"retry_budget"`
	WorkerCount      int    `yaml:"worker_count"`
	MinUnitLength    int    `yaml:"min_unit_length"`
	GlossaryPath     string `yaml:"glossary_path"`
}

type ServiceConfig struct {
	HTTPAddr          string `yaml:"http_addr"`
	DBPath            string `yaml:"db_path"`
	QueueWorkers      int    `yaml:"queue_workers"`
	RetentionTTLHours int    `yaml:"retention_ttl_hours"`
	RetentionCron     string `yaml:"retention_cron"`
}

// Option mutates a Config during construction.
type Option func(*Config)

// NewFromEnv builds the configuration from environment variables, then the
// optional YAML overlay, then the options, in that order.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Backend: BackendConfig{
			Kind:                  getEnvString("BACKEND", "openai"),
			LLMAPIKey:             getEnvString("LLM_API_KEY", ""),
			LLMAPIURL:             getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			LLMModel:              getEnvString("LLM_MODEL", "openai/gpt-4o-mini"),
			LLMMaxTokens:          getEnvInt("LLM_MAX_TOKENS", 4096),
			LLMTemperature:        getEnvFloat("LLM_TEMPERATURE", 0.3),
			LLMTimeout:            getEnvInt("LLM_TIMEOUT", 120),
			LocalAPIURL:           getEnvString("LOCAL_API_URL", "http://localhost:11434"),
			LocalModel:            getEnvString("LOCAL_MODEL", "llama3.2"),
			GoogleCredentialsFile: getEnvString("GOOGLE_CREDENTIALS_FILE", ""),
		},
		Translate: TranslateConfig{
			SourceLang:       getEnvString("SOURCE_LANG", "auto"),
			TargetLang:       getEnvString("TARGET_LANG", "en"),
			BatchTokenBudget: getEnvInt("BATCH_TOKEN_BUDGET", 768),
			RetryBudget:      getEnvInt("RETRY_BUDGET", 3),
			WorkerCount:      getEnvInt("WORKER_COUNT", 4),
			MinUnitLength:    getEnvInt("MIN_UNIT_LENGTH", 2),
			GlossaryPath:     getEnvString("GLOSSARY_PATH", ""),
		},
		Service: ServiceConfig{
			HTTPAddr:          getEnvString("HTTP_ADDR", ":8080"),
			DBPath:            getEnvString("DB_PATH", "./data/doctrans.db"),
			QueueWorkers:      getEnvInt("QUEUE_WORKERS", 2),
			RetentionTTLHours: getEnvInt("RETENTION_TTL_HOURS", 168),
			RetentionCron:     getEnvString("RETENTION_CRON", "0 3 * * *"),
		},
	}

	if path := getEnvString("CONFIG_FILE", ""); path != "" {
		if err := config.applyFile(path); err != nil {
			return nil, err
		}
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyFile overlays values from a YAML file. Zero values in the file keep
// the environment defaults.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	// keys absent from the file keep their environment-derived values
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	log.Info("Applied configuration overlay from %s", path)
	return nil
}

func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case "openai":
		if strings.TrimSpace(c.Backend.LLMAPIURL) == "" {
			return fmt.Errorf("LLM_API_URL is required for the openai backend")
		}
		if strings.TrimSpace(c.Backend.LLMModel) == "" {
			return fmt.Errorf("LLM_MODEL is required for the openai backend")
		}
	case "local":
		if strings.TrimSpace(c.Backend.LocalAPIURL) == "" {
			return fmt.Errorf("LOCAL_API_URL is required for the local backend")
		}
	case "google":
		// application default credentials are acceptable
	default:
		return fmt.Errorf("unknown backend %q (want openai, local or google)", c.Backend.Kind)
	}

	if c.Translate.SourceLang != "auto" {
		if _, err := language.Parse(c.Translate.SourceLang); err != nil {
			return fmt.Errorf("invalid SOURCE_LANG %q: %w", c.Translate.SourceLang, err)
		}
	}
	if _, err := language.Parse(c.Translate.TargetLang); err != nil {
		return fmt.Errorf("invalid TARGET_LANG %q: %w", c.Translate.TargetLang, err)
	}
	if c.Translate.BatchTokenBudget <= 0 {
		return fmt.Errorf("BATCH_TOKEN_BUDGET must be positive")
	}
	if c.Translate.RetryBudget < 0 {
		return fmt.Errorf("RETRY_BUDGET must not be negative")
	}
	if c.Translate.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}
	if c.Service.QueueWorkers <= 0 {
		return fmt.Errorf("QUEUE_WORKERS must be positive")
	}
	if strings.TrimSpace(c.Service.DBPath) == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	return nil
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn("Invalid integer for %s: %q, using default %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Warn("Invalid float for %s: %q, using default %g", key, value, fallback)
		return fallback
	}
	return f
}

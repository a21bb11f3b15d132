package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
	"restodash/internal/logger"
)

// Prefix is prepended to every environment variable, e.g. RESTODASH_API_URL.
const Prefix = "RESTODASH"

type Config struct {
	// Backend API
	APIURL          string        `envconfig:"API_URL"`
	APIToken        string        `envconfig:"API_TOKEN"`
	EstablishmentID string        `envconfig:"ESTABLISHMENT_ID"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`

	// Storage base URL used to resolve invoice document paths
	StorageURL string `envconfig:"STORAGE_URL"`

	// Fan-out limits
	MaxConcurrency  int `envconfig:"MAX_CONCURRENCY" default:"8"`
	ExportThreshold int `envconfig:"EXPORT_THRESHOLD" default:"5"`

	// Optional response cache
	RedisURL string        `envconfig:"REDIS_URL"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	// HTTP surface (serve command)
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	RateLimit  int    `envconfig:"RATE_LIMIT" default:"120"`

	// Google integrations (optional)
	GoogleSheetURL        string `envconfig:"GOOGLE_SHEET_URL"`
	GoogleSheetWorksheet  string `envconfig:"GOOGLE_SHEET_WORKSHEET" default:"Factures"`
	GoogleCloudProject    string `envconfig:"GOOGLE_CLOUD_PROJECT"`
	GoogleCloudLocation   string `envconfig:"GOOGLE_CLOUD_LOCATION" default:"eu"`
	DocumentAIProcessorID string `envconfig:"DOCUMENT_AI_PROCESSOR_ID"`

	// Language model completing totals missed in OCR text (optional)
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	// Logging
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"console"`
	LogTimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02T15:04:05Z07:00"`
	LogOutput     string `envconfig:"LOG_OUTPUT" default:"stderr"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("%s_API_URL is required", Prefix)
	}
	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s_API_URL must be an absolute URL, got %q", Prefix, c.APIURL)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("%s_MAX_CONCURRENCY must be positive", Prefix)
	}
	if c.ExportThreshold < 0 {
		return fmt.Errorf("%s_EXPORT_THRESHOLD must not be negative", Prefix)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%s_HTTP_TIMEOUT must be positive", Prefix)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// RequireEstablishment returns the establishment id from the flag value or
// the configured default.
func (c *Config) RequireEstablishment(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if c.EstablishmentID != "" {
		return c.EstablishmentID, nil
	}
	return "", fmt.Errorf("establishment id is required: pass --establishment or set %s_ESTABLISHMENT_ID", Prefix)
}

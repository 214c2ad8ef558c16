// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Tiers     []TierConfig    `yaml:"tiers"`
	Default   string          `yaml:"default_tier"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ProviderConfig configures the speech provider.
type ProviderConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"` // Per-attempt timeout
	Retry   RetryConfig   `yaml:"retry"`
}

// RetryConfig configures the retry policy for provider calls.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// RateLimitConfig configures per-client admission control.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled"`
	MaxRequests   int           `yaml:"max_requests"`
	Window        time.Duration `yaml:"window"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// LedgerConfig configures usage ledger persistence.
// Backend is "file", "sqlite", or "memory".
type LedgerConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// TierConfig configures a billing tier. Match order follows the list
// order; the first tier whose name appears in the voice ID wins.
type TierConfig struct {
	Name       string `yaml:"name"`
	Unit       string `yaml:"unit"` // "bytes" or "characters"
	MonthlyCap int64  `yaml:"monthly_cap"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for container deployments where no config file is mounted.
//
// Environment variables:
//
//	SPEECHGATE_PROVIDER_URL      - Speech provider base URL (required)
//	SPEECHGATE_PROVIDER_API_KEY  - Provider API key
//	SPEECHGATE_SERVER_HOST       - Server host (default: 0.0.0.0)
//	SPEECHGATE_SERVER_PORT       - Server port (default: 8080)
//	SPEECHGATE_LEDGER_BACKEND    - Ledger backend: file, sqlite, memory (default: file)
//	SPEECHGATE_LEDGER_PATH       - Ledger file/database path
//	SPEECHGATE_RATELIMIT_ENABLED - Enable rate limiting (default: true)
//	SPEECHGATE_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	SPEECHGATE_LOG_FORMAT        - Log format: json or console (default: json)
//	SPEECHGATE_METRICS_ENABLED   - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if os.Getenv("SPEECHGATE_PROVIDER_URL") != "" {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set SPEECHGATE_PROVIDER_URL")
}

// applyEnvOverrides applies SPEECHGATE_* environment variables.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPEECHGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SPEECHGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SPEECHGATE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("SPEECHGATE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("SPEECHGATE_PROVIDER_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("SPEECHGATE_PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("SPEECHGATE_PROVIDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Provider.Timeout = d
		}
	}
	if v := os.Getenv("SPEECHGATE_PROVIDER_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Provider.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("SPEECHGATE_PROVIDER_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Provider.Retry.BaseDelay = d
		}
	}

	if v := os.Getenv("SPEECHGATE_RATELIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("SPEECHGATE_RATELIMIT_MAX_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.MaxRequests = n
		}
	}
	if v := os.Getenv("SPEECHGATE_RATELIMIT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.Window = d
		}
	}

	if v := os.Getenv("SPEECHGATE_LEDGER_BACKEND"); v != "" {
		cfg.Ledger.Backend = v
	}
	if v := os.Getenv("SPEECHGATE_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}

	if v := os.Getenv("SPEECHGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SPEECHGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("SPEECHGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("SPEECHGATE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}

	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 30 * time.Second
	}
	if cfg.Provider.Retry.MaxAttempts == 0 {
		cfg.Provider.Retry.MaxAttempts = 3
	}
	if cfg.Provider.Retry.BaseDelay == 0 {
		cfg.Provider.Retry.BaseDelay = time.Second
	}

	if cfg.RateLimit.MaxRequests == 0 {
		cfg.RateLimit.MaxRequests = 60
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.SweepInterval == 0 {
		cfg.RateLimit.SweepInterval = 5 * time.Minute
	}

	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = "file"
	}
	if cfg.Ledger.Path == "" {
		switch cfg.Ledger.Backend {
		case "sqlite":
			cfg.Ledger.Path = "speechgate.db"
		default:
			cfg.Ledger.Path = "usage.json"
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	// Built-in tier table if none configured
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = []TierConfig{
			{Name: "neural2", Unit: "bytes", MonthlyCap: 1_000_000},
			{Name: "wavenet", Unit: "bytes", MonthlyCap: 1_000_000},
			{Name: "polyglot", Unit: "bytes", MonthlyCap: 1_000_000},
			{Name: "studio", Unit: "characters", MonthlyCap: 100_000},
			{Name: "standard", Unit: "characters", MonthlyCap: 4_000_000},
		}
	}
	if cfg.Default == "" {
		cfg.Default = "standard"
	}
}

func validate(cfg *Config) error {
	if cfg.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}

	validBackends := map[string]bool{"file": true, "sqlite": true, "memory": true}
	if !validBackends[cfg.Ledger.Backend] {
		return fmt.Errorf("ledger.backend must be 'file', 'sqlite', or 'memory', got %q", cfg.Ledger.Backend)
	}

	validUnits := map[string]bool{"bytes": true, "characters": true}
	names := map[string]bool{}
	for i, tier := range cfg.Tiers {
		if tier.Name == "" {
			return fmt.Errorf("tiers[%d].name is required", i)
		}
		if names[tier.Name] {
			return fmt.Errorf("tiers[%d].name %q is duplicated", i, tier.Name)
		}
		names[tier.Name] = true
		if !validUnits[tier.Unit] {
			return fmt.Errorf("tiers[%d].unit must be 'bytes' or 'characters', got %q", i, tier.Unit)
		}
		if tier.MonthlyCap < 0 {
			return fmt.Errorf("tiers[%d].monthly_cap must not be negative", i)
		}
	}
	if !names[cfg.Default] {
		return fmt.Errorf("default_tier %q does not name a configured tier", cfg.Default)
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.MaxRequests < 0 {
		return fmt.Errorf("rate_limit.max_requests must not be negative")
	}

	return nil
}

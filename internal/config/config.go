// Package config provides configuration management for posctl.
//
// Configuration Sources (priority order, high to low):
//   1. CLI flags (bound by the cli package)
//   2. Environment variables (POS_* prefix, "." replaced by "_")
//   3. YAML config file (default: $HOME/.posctl/config.yaml, optional)
//   4. Built-in defaults
//
// Main Configuration Sections:
//
//   1. Backend
//      - base_url: REST base URL including the /api prefix
//      - timeout: request timeout in seconds
//      - retry_max: transport retries (0 keeps reads and mutations retry-free)
//      - rate_limit, rate_burst: client-side request rate (0 = unlimited)
//
//   2. Cache
//      - ttl_seconds: default freshness window for cached reads
//
//   3. Notify
//      - path: push channel path on the backend host
//      - reconnect_*: reconnect policy (initial delay, cap, multiplier, jitter)
//      - sound: ring the terminal bell on new orders
//
//   4. Session
//      - path: SQLite file holding tokens and identity
//
//   5. Logging
//      - level: "debug" | "info" | "warn" | "error"
//      - format: "json" | "console"
//      - file: optional rotating log file
//
//   6. Metrics
//      - enabled, address: prometheus endpoint for long running commands
//
//   7. Tracing
//      - endpoint: OTLP/HTTP collector host:port (empty disables tracing)
//      - sampling_rate: 0.0 to 1.0
//
package config

import "context"

// Config struct contains all configuration fields
type Config struct {
	Backend struct {
		BaseURL   string  `yaml:"base_url"`
		Timeout   int     `yaml:"timeout"`
		RetryMax  int     `yaml:"retry_max"`
		RateLimit float64 `yaml:"rate_limit"`
		RateBurst int     `yaml:"rate_burst"`
	} `yaml:"backend"`

	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	Notify struct {
		Path                string  `yaml:"path"`
		ReconnectInitialMs  int     `yaml:"reconnect_initial_ms"`
		ReconnectMaxMs      int     `yaml:"reconnect_max_ms"`
		ReconnectMultiplier float64 `yaml:"reconnect_multiplier"`
		ReconnectJitter     float64 `yaml:"reconnect_jitter"`
		Sound               bool    `yaml:"sound"`
	} `yaml:"notify"`

	Session struct {
		Path string `yaml:"path"`
	} `yaml:"session"`

	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Address string `yaml:"address"`
	} `yaml:"metrics"`

	Tracing struct {
		Endpoint     string  `yaml:"endpoint"`
		SamplingRate float64 `yaml:"sampling_rate"`
	} `yaml:"tracing"`
}

// Manager defines the interface for configuration access.
type Manager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches the config file and emits the reloaded configuration.
	Watch(ctx context.Context) <-chan Config

	// Reload re-reads configuration from its sources.
	Reload(ctx context.Context) error

	// Set overrides a single key (used for CLI flags).
	Set(key string, value interface{})
}

// NewManager creates a new configuration manager reading configPath.
// An empty path means defaults and environment only.
func NewManager(configPath string) (Manager, error) {
	mgr := &viperManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}

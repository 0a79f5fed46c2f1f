package config

import (
	"os"
	"path/filepath"
)

const (
	configDirName  = ".posctl"
	configFileName = "config.yaml"
	sessionDBName  = "session.db"
)

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Backend.BaseURL = "http://localhost:8001/api"
	cfg.Backend.Timeout = 30
	cfg.Backend.RetryMax = 0
	cfg.Backend.RateLimit = 0
	cfg.Backend.RateBurst = 5

	cfg.Cache.TTLSeconds = 300

	cfg.Notify.Path = "/api/ws/orders"
	cfg.Notify.ReconnectInitialMs = 3000
	cfg.Notify.ReconnectMaxMs = 30000
	cfg.Notify.ReconnectMultiplier = 2.0
	cfg.Notify.ReconnectJitter = 0.1
	cfg.Notify.Sound = true

	cfg.Session.Path = filepath.Join(homeDir(), configDirName, sessionDBName)

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	cfg.Logging.File = ""
	cfg.Logging.MaxSizeMB = 50
	cfg.Logging.MaxBackups = 5
	cfg.Logging.MaxAgeDays = 14
	cfg.Logging.Compress = true

	cfg.Metrics.Enabled = false
	cfg.Metrics.Address = ":9102"

	cfg.Tracing.Endpoint = ""
	cfg.Tracing.SamplingRate = 1.0

	return cfg
}

// DefaultPath returns $HOME/.posctl/config.yaml.
func DefaultPath() string {
	return filepath.Join(homeDir(), configDirName, configFileName)
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return h
	}
	return "."
}

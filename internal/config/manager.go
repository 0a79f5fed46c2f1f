package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperManager implements Manager using Viper.
type viperManager struct {
	configPath string
	mu         sync.RWMutex
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
	watchOnce  sync.Once
}

// Load loads configuration from all sources.
func (m *viperManager) Load(ctx context.Context) error {
	m.viper = viper.New()

	m.viper.SetEnvPrefix("POS")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	m.setDefaults()

	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
		m.viper.SetConfigType("yaml")
		if err := m.viper.ReadInConfig(); err != nil && !isNotFound(err) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	m.unmarshalConfig()
	return nil
}

// Get returns the current configuration.
func (m *viperManager) Get(ctx context.Context) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperManager) Validate(ctx context.Context) error {
	errs := m.Get(ctx).Validate()
	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration file changes and reloads.
func (m *viperManager) Watch(ctx context.Context) <-chan Config {
	if m.viper == nil || m.configPath == "" {
		return m.watchChan
	}
	if _, err := os.Stat(m.configPath); err != nil {
		return m.watchChan
	}
	m.watchOnce.Do(func() {
		m.viper.OnConfigChange(func(e fsnotify.Event) {
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				return
			}
			m.unmarshalConfig()
			select {
			case m.watchChan <- *m.Get(ctx):
			default:
				// Channel full, skip this update
			}
		})
		m.viper.WatchConfig()
	})
	return m.watchChan
}

// Reload reloads configuration from sources.
func (m *viperManager) Reload(ctx context.Context) error {
	if m.viper == nil {
		return m.Load(ctx)
	}
	if m.configPath != "" {
		if err := m.viper.ReadInConfig(); err != nil && !isNotFound(err) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	m.unmarshalConfig()
	return nil
}

// Set overrides a key with the highest priority.
func (m *viperManager) Set(key string, value interface{}) {
	if m.viper == nil {
		m.viper = viper.New()
		m.setDefaults()
	}
	m.viper.Set(key, value)
	m.unmarshalConfig()
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || os.IsNotExist(err)
}

// setDefaults sets default values in viper.
func (m *viperManager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("backend.base_url", defaults.Backend.BaseURL)
	m.viper.SetDefault("backend.timeout", defaults.Backend.Timeout)
	m.viper.SetDefault("backend.retry_max", defaults.Backend.RetryMax)
	m.viper.SetDefault("backend.rate_limit", defaults.Backend.RateLimit)
	m.viper.SetDefault("backend.rate_burst", defaults.Backend.RateBurst)

	m.viper.SetDefault("cache.ttl_seconds", defaults.Cache.TTLSeconds)

	m.viper.SetDefault("notify.path", defaults.Notify.Path)
	m.viper.SetDefault("notify.reconnect_initial_ms", defaults.Notify.ReconnectInitialMs)
	m.viper.SetDefault("notify.reconnect_max_ms", defaults.Notify.ReconnectMaxMs)
	m.viper.SetDefault("notify.reconnect_multiplier", defaults.Notify.ReconnectMultiplier)
	m.viper.SetDefault("notify.reconnect_jitter", defaults.Notify.ReconnectJitter)
	m.viper.SetDefault("notify.sound", defaults.Notify.Sound)

	m.viper.SetDefault("session.path", defaults.Session.Path)

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.file", defaults.Logging.File)
	m.viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
	m.viper.SetDefault("logging.compress", defaults.Logging.Compress)

	m.viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	m.viper.SetDefault("metrics.address", defaults.Metrics.Address)

	m.viper.SetDefault("tracing.endpoint", defaults.Tracing.Endpoint)
	m.viper.SetDefault("tracing.sampling_rate", defaults.Tracing.SamplingRate)
}

// unmarshalConfig copies viper state into a fresh Config.
func (m *viperManager) unmarshalConfig() {
	cfg := &Config{}

	cfg.Backend.BaseURL = m.viper.GetString("backend.base_url")
	cfg.Backend.Timeout = m.viper.GetInt("backend.timeout")
	cfg.Backend.RetryMax = m.viper.GetInt("backend.retry_max")
	cfg.Backend.RateLimit = m.viper.GetFloat64("backend.rate_limit")
	cfg.Backend.RateBurst = m.viper.GetInt("backend.rate_burst")

	cfg.Cache.TTLSeconds = m.viper.GetInt("cache.ttl_seconds")

	cfg.Notify.Path = m.viper.GetString("notify.path")
	cfg.Notify.ReconnectInitialMs = m.viper.GetInt("notify.reconnect_initial_ms")
	cfg.Notify.ReconnectMaxMs = m.viper.GetInt("notify.reconnect_max_ms")
	cfg.Notify.ReconnectMultiplier = m.viper.GetFloat64("notify.reconnect_multiplier")
	cfg.Notify.ReconnectJitter = m.viper.GetFloat64("notify.reconnect_jitter")
	cfg.Notify.Sound = m.viper.GetBool("notify.sound")

	cfg.Session.Path = m.viper.GetString("session.path")

	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")
	cfg.Logging.File = m.viper.GetString("logging.file")
	cfg.Logging.MaxSizeMB = m.viper.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = m.viper.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = m.viper.GetInt("logging.max_age_days")
	cfg.Logging.Compress = m.viper.GetBool("logging.compress")

	cfg.Metrics.Enabled = m.viper.GetBool("metrics.enabled")
	cfg.Metrics.Address = m.viper.GetString("metrics.address")

	cfg.Tracing.Endpoint = m.viper.GetString("tracing.endpoint")
	cfg.Tracing.SamplingRate = m.viper.GetFloat64("tracing.sampling_rate")

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}

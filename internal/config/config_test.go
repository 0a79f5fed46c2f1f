package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:8001/api", cfg.Backend.BaseURL)
	assert.Equal(t, 30, cfg.Backend.Timeout)
	assert.Equal(t, 0, cfg.Backend.RetryMax)

	assert.Equal(t, 300, cfg.Cache.TTLSeconds)

	assert.Equal(t, "/api/ws/orders", cfg.Notify.Path)
	assert.Equal(t, 3000, cfg.Notify.ReconnectInitialMs)
	assert.Equal(t, 2.0, cfg.Notify.ReconnectMultiplier)
	assert.True(t, cfg.Notify.Sound)

	assert.NotEmpty(t, cfg.Session.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)

	assert.Empty(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		modifyFn  func(*Config)
		wantError bool
		field     string
	}{
		{
			name:     "valid default config",
			modifyFn: func(cfg *Config) {},
		},
		{
			name:      "missing base url",
			modifyFn:  func(cfg *Config) { cfg.Backend.BaseURL = "" },
			wantError: true,
			field:     "backend.base_url",
		},
		{
			name:      "websocket scheme is not a REST base",
			modifyFn:  func(cfg *Config) { cfg.Backend.BaseURL = "ws://localhost:8001/api" },
			wantError: true,
			field:     "backend.base_url",
		},
		{
			name:      "zero timeout",
			modifyFn:  func(cfg *Config) { cfg.Backend.Timeout = 0 },
			wantError: true,
			field:     "backend.timeout",
		},
		{
			name:      "negative rate limit",
			modifyFn:  func(cfg *Config) { cfg.Backend.RateLimit = -1 },
			wantError: true,
			field:     "backend.rate_limit",
		},
		{
			name: "rate limit without burst",
			modifyFn: func(cfg *Config) {
				cfg.Backend.RateLimit = 10
				cfg.Backend.RateBurst = 0
			},
			wantError: true,
			field:     "backend.rate_burst",
		},
		{
			name:      "sampling rate above one",
			modifyFn:  func(cfg *Config) { cfg.Tracing.SamplingRate = 1.5 },
			wantError: true,
			field:     "tracing.sampling_rate",
		},
		{
			name:      "negative ttl",
			modifyFn:  func(cfg *Config) { cfg.Cache.TTLSeconds = -1 },
			wantError: true,
			field:     "cache.ttl_seconds",
		},
		{
			name:      "relative notify path",
			modifyFn:  func(cfg *Config) { cfg.Notify.Path = "api/ws/orders" },
			wantError: true,
			field:     "notify.path",
		},
		{
			name:      "cap below initial delay",
			modifyFn:  func(cfg *Config) { cfg.Notify.ReconnectMaxMs = 1000 },
			wantError: true,
			field:     "notify.reconnect_max_ms",
		},
		{
			name:      "jitter out of range",
			modifyFn:  func(cfg *Config) { cfg.Notify.ReconnectJitter = 1.5 },
			wantError: true,
			field:     "notify.reconnect_jitter",
		},
		{
			name:      "invalid log level",
			modifyFn:  func(cfg *Config) { cfg.Logging.Level = "verbose" },
			wantError: true,
			field:     "logging.level",
		},
		{
			name: "metrics enabled with bad address",
			modifyFn: func(cfg *Config) {
				cfg.Metrics.Enabled = true
				cfg.Metrics.Address = "9102"
			},
			wantError: true,
			field:     "metrics.address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modifyFn(cfg)

			errs := cfg.Validate()
			if !tt.wantError {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			var fields []string
			for _, err := range errs {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				fields = append(fields, verr.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestManagerLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
backend:
  base_url: https://pos.example.com/api
  timeout: 10
cache:
  ttl_seconds: 60
notify:
  reconnect_initial_ms: 500
  reconnect_max_ms: 4000
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	mgr, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))

	cfg := mgr.Get(context.Background())
	assert.Equal(t, "https://pos.example.com/api", cfg.Backend.BaseURL)
	assert.Equal(t, 10, cfg.Backend.Timeout)
	assert.Equal(t, 60, cfg.Cache.TTLSeconds)
	assert.Equal(t, 500, cfg.Notify.ReconnectInitialMs)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, "/api/ws/orders", cfg.Notify.Path)
	assert.NoError(t, mgr.Validate(context.Background()))
}

func TestManagerMissingFileUsesDefaults(t *testing.T) {
	mgr, err := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))

	assert.Equal(t, DefaultConfig().Backend.BaseURL, mgr.Get(context.Background()).Backend.BaseURL)
}

func TestManagerEnvOverride(t *testing.T) {
	t.Setenv("POS_BACKEND_BASE_URL", "http://10.0.0.5:8001/api")
	t.Setenv("POS_CACHE_TTL_SECONDS", "15")

	mgr, err := NewManager("")
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))

	cfg := mgr.Get(context.Background())
	assert.Equal(t, "http://10.0.0.5:8001/api", cfg.Backend.BaseURL)
	assert.Equal(t, 15, cfg.Cache.TTLSeconds)
}

func TestManagerSetOverridesEnv(t *testing.T) {
	t.Setenv("POS_LOGGING_LEVEL", "warn")

	mgr, err := NewManager("")
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))
	assert.Equal(t, "warn", mgr.Get(context.Background()).Logging.Level)

	mgr.Set("logging.level", "debug")
	assert.Equal(t, "debug", mgr.Get(context.Background()).Logging.Level)
}

func TestManagerValidateAggregatesErrors(t *testing.T) {
	mgr, err := NewManager("")
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))

	mgr.Set("backend.timeout", 0)
	mgr.Set("logging.format", "xml")

	err = mgr.Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.timeout")
	assert.Contains(t, err.Error(), "logging.format")
}

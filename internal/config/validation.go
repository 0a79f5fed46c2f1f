package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error

	if c.Backend.BaseURL == "" {
		errs = append(errs, &ValidationError{
			Field:   "backend.base_url",
			Message: "backend base URL is required",
		})
	} else if u, err := url.Parse(c.Backend.BaseURL); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, &ValidationError{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("scheme must be http or https, got '%s'", u.Scheme),
		})
	} else if u.Host == "" {
		errs = append(errs, &ValidationError{
			Field:   "backend.base_url",
			Message: "backend host cannot be empty",
		})
	}

	if c.Backend.Timeout < 1 {
		errs = append(errs, &ValidationError{
			Field:   "backend.timeout",
			Message: fmt.Sprintf("timeout must be at least 1 second, got %d", c.Backend.Timeout),
		})
	}

	if c.Backend.RetryMax < 0 {
		errs = append(errs, &ValidationError{
			Field:   "backend.retry_max",
			Message: fmt.Sprintf("retry_max cannot be negative, got %d", c.Backend.RetryMax),
		})
	}

	if c.Backend.RateLimit < 0 {
		errs = append(errs, &ValidationError{
			Field:   "backend.rate_limit",
			Message: fmt.Sprintf("rate_limit cannot be negative, got %g", c.Backend.RateLimit),
		})
	}
	if c.Backend.RateLimit > 0 && c.Backend.RateBurst < 1 {
		errs = append(errs, &ValidationError{
			Field:   "backend.rate_burst",
			Message: fmt.Sprintf("rate_burst must be at least 1 when rate_limit is set, got %d", c.Backend.RateBurst),
		})
	}

	if c.Cache.TTLSeconds < 0 {
		errs = append(errs, &ValidationError{
			Field:   "cache.ttl_seconds",
			Message: fmt.Sprintf("ttl cannot be negative, got %d", c.Cache.TTLSeconds),
		})
	}

	if !strings.HasPrefix(c.Notify.Path, "/") {
		errs = append(errs, &ValidationError{
			Field:   "notify.path",
			Message: fmt.Sprintf("path must start with '/', got '%s'", c.Notify.Path),
		})
	}

	if c.Notify.ReconnectInitialMs < 1 {
		errs = append(errs, &ValidationError{
			Field:   "notify.reconnect_initial_ms",
			Message: fmt.Sprintf("initial reconnect delay must be positive, got %d", c.Notify.ReconnectInitialMs),
		})
	}

	if c.Notify.ReconnectMaxMs < c.Notify.ReconnectInitialMs {
		errs = append(errs, &ValidationError{
			Field:   "notify.reconnect_max_ms",
			Message: fmt.Sprintf("max reconnect delay %d is below initial delay %d", c.Notify.ReconnectMaxMs, c.Notify.ReconnectInitialMs),
		})
	}

	if c.Notify.ReconnectMultiplier < 1 {
		errs = append(errs, &ValidationError{
			Field:   "notify.reconnect_multiplier",
			Message: fmt.Sprintf("multiplier must be >= 1, got %g", c.Notify.ReconnectMultiplier),
		})
	}

	if c.Notify.ReconnectJitter < 0 || c.Notify.ReconnectJitter > 1 {
		errs = append(errs, &ValidationError{
			Field:   "notify.reconnect_jitter",
			Message: fmt.Sprintf("jitter must be between 0 and 1, got %g", c.Notify.ReconnectJitter),
		})
	}

	if c.Session.Path == "" {
		errs = append(errs, &ValidationError{
			Field:   "session.path",
			Message: "session path is required",
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format '%s', must be json or console", c.Logging.Format),
		})
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
			errs = append(errs, &ValidationError{
				Field:   "metrics.address",
				Message: fmt.Sprintf("invalid address format (expected host:port): %v", err),
			})
		}
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, &ValidationError{
			Field:   "tracing.sampling_rate",
			Message: fmt.Sprintf("sampling_rate must be between 0.0 and 1.0, got %g", c.Tracing.SamplingRate),
		})
	}

	return errs
}

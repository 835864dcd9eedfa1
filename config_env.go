package goSession

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig mirrors Config with env tags so deployments can override the
// defaults without code. Zero values mean "keep the default".
type envConfig struct {
	RateLimitMaxAttempts   int           `env:"GOSESSION_RATELIMIT_MAX_ATTEMPTS"`
	RateLimitWindow        time.Duration `env:"GOSESSION_RATELIMIT_WINDOW"`
	RateLimitIPThrottle    bool          `env:"GOSESSION_RATELIMIT_IP_THROTTLE"`
	RateLimitIPMaxAttempts int           `env:"GOSESSION_RATELIMIT_IP_MAX_ATTEMPTS"`

	LockoutThreshold  int           `env:"GOSESSION_LOCKOUT_THRESHOLD"`
	LockoutDuration   time.Duration `env:"GOSESSION_LOCKOUT_DURATION"`
	LockoutCounterTTL time.Duration `env:"GOSESSION_LOCKOUT_COUNTER_TTL"`

	DeviceTrustTTL   time.Duration `env:"GOSESSION_DEVICE_TRUST_TTL"`
	DeviceMaxTrusted int           `env:"GOSESSION_DEVICE_MAX_TRUSTED"`

	ObserverBuffer int           `env:"GOSESSION_OBSERVER_BUFFER"`
	RestoreSkew    time.Duration `env:"GOSESSION_RESTORE_SKEW"`

	AuditEnabled    bool `env:"GOSESSION_AUDIT_ENABLED"`
	AuditBufferSize int  `env:"GOSESSION_AUDIT_BUFFER_SIZE"`

	MetricsEnabled bool `env:"GOSESSION_METRICS_ENABLED"`
	MetricsLatency bool `env:"GOSESSION_METRICS_LATENCY"`
}

// ConfigFromEnv returns the default configuration overlaid with any
// GOSESSION_* environment variables that are set.
//
// ConfigFromEnv may return an error when input validation, dependency calls, or security checks fail.
func ConfigFromEnv() (Config, error) {
	cfg := defaultConfig()

	var e envConfig
	if err := env.Parse(&e); err != nil {
		return cfg, fmt.Errorf("parse environment config: %w", err)
	}

	if e.RateLimitMaxAttempts > 0 {
		cfg.RateLimit.MaxAttempts = e.RateLimitMaxAttempts
	}
	if e.RateLimitWindow > 0 {
		cfg.RateLimit.Window = e.RateLimitWindow
	}
	if e.RateLimitIPThrottle {
		cfg.RateLimit.EnableIPThrottle = true
	}
	if e.RateLimitIPMaxAttempts > 0 {
		cfg.RateLimit.IPMaxAttempts = e.RateLimitIPMaxAttempts
	}

	if e.LockoutThreshold > 0 {
		cfg.Lockout.Threshold = e.LockoutThreshold
	}
	if e.LockoutDuration > 0 {
		cfg.Lockout.Duration = e.LockoutDuration
	}
	if e.LockoutCounterTTL > 0 {
		cfg.Lockout.CounterTTL = e.LockoutCounterTTL
	}

	if e.DeviceTrustTTL > 0 {
		cfg.Device.TrustTTL = e.DeviceTrustTTL
	}
	if e.DeviceMaxTrusted > 0 {
		cfg.Device.MaxTrusted = e.DeviceMaxTrusted
	}

	if e.ObserverBuffer > 0 {
		cfg.Session.ObserverBuffer = e.ObserverBuffer
	}
	if e.RestoreSkew > 0 {
		cfg.Session.RestoreSkew = e.RestoreSkew
	}

	if e.AuditEnabled {
		cfg.Audit.Enabled = true
	}
	if e.AuditBufferSize > 0 {
		cfg.Audit.BufferSize = e.AuditBufferSize
	}

	if e.MetricsEnabled {
		cfg.Metrics.Enabled = true
	}
	if e.MetricsLatency {
		cfg.Metrics.EnableLatencyHistograms = true
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("environment config invalid: %w", err)
	}
	return cfg, nil
}

package goSession

import (
	"errors"
	"time"
)

// Config defines a public type used by goSession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	RateLimit RateLimitConfig
	Lockout   LockoutConfig
	Device    DeviceConfig
	Session   SessionConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig defines a public type used by goSession APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	MaxAttempts      int
	Window           time.Duration
	EnableIPThrottle bool
	IPMaxAttempts    int
	RedisPrefix      string
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by goSession APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	Threshold   int
	Duration    time.Duration
	CounterTTL  time.Duration
	RedisPrefix string
}

/*
====================================
DEVICE CONFIG
====================================
*/

// DeviceConfig defines a public type used by goSession APIs.
//
// DeviceConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DeviceConfig struct {
	TrustTTL    time.Duration
	MaxTrusted  int
	RedisPrefix string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goSession APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	// ObserverBuffer is the per-subscriber channel depth for Observe.
	ObserverBuffer int
	// RestoreSkew is subtracted from the access token expiry when deciding
	// whether a stored session is still usable without a refresh.
	RestoreSkew time.Duration
	RedisPrefix string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by goSession APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by goSession APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			MaxAttempts:      5,
			Window:           15 * time.Minute,
			EnableIPThrottle: false,
			IPMaxAttempts:    20,
			RedisPrefix:      "gs:rl",
		},
		Lockout: LockoutConfig{
			Threshold:   5,
			Duration:    30 * time.Minute,
			CounterTTL:  24 * time.Hour,
			RedisPrefix: "gs:lock",
		},
		Device: DeviceConfig{
			TrustTTL:    90 * 24 * time.Hour,
			MaxTrusted:  10,
			RedisPrefix: "gs:dev",
		},
		Session: SessionConfig{
			ObserverBuffer: 8,
			RestoreSkew:    30 * time.Second,
			RedisPrefix:    "gs:sess",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// Config is flat value data; a shallow copy is a full copy.
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Rate limit
	if c.RateLimit.MaxAttempts <= 0 {
		return errors.New("RateLimit MaxAttempts must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit Window must be > 0")
	}
	if c.RateLimit.EnableIPThrottle && c.RateLimit.IPMaxAttempts <= 0 {
		return errors.New("RateLimit IPMaxAttempts must be > 0 when EnableIPThrottle is true")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}
	if c.Lockout.CounterTTL < c.Lockout.Duration {
		return errors.New("Lockout CounterTTL must be >= Lockout Duration")
	}

	// Device
	if c.Device.TrustTTL <= 0 {
		return errors.New("Device TrustTTL must be > 0")
	}
	if c.Device.MaxTrusted <= 0 {
		return errors.New("Device MaxTrusted must be > 0")
	}

	// Session
	if c.Session.ObserverBuffer <= 0 {
		return errors.New("Session ObserverBuffer must be > 0")
	}
	if c.Session.RestoreSkew < 0 {
		return errors.New("Session RestoreSkew must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	return nil
}

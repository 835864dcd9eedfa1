package goSession

import (
	"errors"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/device"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/lockout"
	"github.com/MrEthical07/goSession/internal/rate"
)

// Builder defines a public type used by goSession APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	rateLimiter   RateLimiter
	lockout       LockoutTracker
	fingerprinter Fingerprinter
	authenticator Authenticator
	tokenStore    TokenStore

	auditSink AuditSink
	logger    *log.Logger
	attrs     device.AttributeFunc

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuthenticator describes the withauthenticator operation and its observable behavior.
//
// WithAuthenticator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuthenticator(a Authenticator) *Builder {
	b.authenticator = a
	return b
}

// WithRateLimiter describes the withratelimiter operation and its observable behavior.
//
// WithRateLimiter does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRateLimiter(rl RateLimiter) *Builder {
	b.rateLimiter = rl
	return b
}

// WithLockoutTracker describes the withlockouttracker operation and its observable behavior.
//
// WithLockoutTracker does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLockoutTracker(lt LockoutTracker) *Builder {
	b.lockout = lt
	return b
}

// WithFingerprinter describes the withfingerprinter operation and its observable behavior.
//
// WithFingerprinter does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithFingerprinter(f Fingerprinter) *Builder {
	b.fingerprinter = f
	return b
}

// WithTokenStore describes the withtokenstore operation and its observable behavior.
//
// WithTokenStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTokenStore(ts TokenStore) *Builder {
	b.tokenStore = ts
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// WithLogger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLogger(l *log.Logger) *Builder {
	b.logger = l
	return b
}

// WithAttributeFunc describes the withattributefunc operation and its observable behavior.
//
// WithAttributeFunc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAttributeFunc(fn device.AttributeFunc) *Builder {
	b.attrs = fn
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Orchestrator, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.authenticator == nil {
		return nil, errors.New("authenticator is required")
	}

	rateLimiter := b.rateLimiter
	if rateLimiter == nil {
		if b.redis == nil {
			return nil, ErrRedisRequired
		}
		rateLimiter = rate.New(b.redis, rate.Config{
			MaxAttempts:      b.config.RateLimit.MaxAttempts,
			Window:           b.config.RateLimit.Window,
			EnableIPThrottle: b.config.RateLimit.EnableIPThrottle,
			IPMaxAttempts:    b.config.RateLimit.IPMaxAttempts,
			Prefix:           b.config.RateLimit.RedisPrefix,
		})
	}

	lockoutTracker := b.lockout
	if lockoutTracker == nil {
		if b.redis == nil {
			return nil, ErrRedisRequired
		}
		lockoutTracker = lockout.New(b.redis, lockout.Config{
			Threshold:  b.config.Lockout.Threshold,
			Duration:   b.config.Lockout.Duration,
			CounterTTL: b.config.Lockout.CounterTTL,
			Prefix:     b.config.Lockout.RedisPrefix,
		})
	}

	fingerprinter := b.fingerprinter
	if fingerprinter == nil {
		if b.redis == nil {
			return nil, ErrRedisRequired
		}
		attrs := b.attrs
		if attrs == nil {
			attrs = contextAttributes
		}
		fingerprinter = device.NewService(b.redis, device.Config{
			TrustTTL:   b.config.Device.TrustTTL,
			MaxTrusted: b.config.Device.MaxTrusted,
			Prefix:     b.config.Device.RedisPrefix,
		}, attrs)
	}

	tokenStore := b.tokenStore
	if tokenStore == nil {
		if b.redis != nil {
			var err error
			tokenStore, err = NewRedisTokenStore(b.redis, b.config.Session.RedisPrefix)
			if err != nil {
				return nil, err
			}
		} else {
			tokenStore = NewMemoryTokenStore()
		}
	}

	logger := b.logger
	if logger == nil {
		logger = log.Default()
	}

	o := &Orchestrator{
		cfg:           b.config,
		rateLimiter:   rateLimiter,
		lockout:       lockoutTracker,
		fingerprinter: fingerprinter,
		authenticator: b.authenticator,
		tokenStore:    tokenStore,
		metrics:       NewMetrics(b.config.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    b.config.Audit.Enabled,
			BufferSize: b.config.Audit.BufferSize,
			DropIfFull: b.config.Audit.DropIfFull,
		}, b.auditSink),
		logger:      logger,
		broadcaster: newStateBroadcaster(b.config.Session.ObserverBuffer, Unauthenticated()),
	}

	b.built = true
	return o, nil
}

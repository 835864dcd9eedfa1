// Package lockout tracks persistent failed-attempt counters per identifier
// and locks an identifier for a cooldown window once a threshold is reached.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds configuration for the account lockout tracker.
type Config struct {
	Threshold  int
	Duration   time.Duration
	CounterTTL time.Duration
	Prefix     string
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// Tracker counts failed authentication attempts per identifier in Redis and
// maintains a separate lock key once the threshold is crossed. The failure
// counter survives the lock expiring; only ClearFailedAttempts resets it.
type Tracker struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a lockout [Tracker] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Tracker {
	if cfg.Prefix == "" {
		cfg.Prefix = "gs:lock"
	}
	if cfg.CounterTTL < cfg.Duration {
		cfg.CounterTTL = cfg.Duration
	}
	return &Tracker{redis: redisClient, config: cfg}
}

func (t *Tracker) counterKey(identifier string) string {
	return t.config.Prefix + ":n:" + identifier
}

func (t *Tracker) lockKey(identifier string) string {
	return t.config.Prefix + ":l:" + identifier
}

// RecordFailure increments the failure counter for an identifier and places
// the lock once the threshold is reached. Returns true when the identifier is
// now locked.
func (t *Tracker) RecordFailure(ctx context.Context, identifier string) (bool, error) {
	if identifier == "" {
		return false, nil
	}

	count, err := t.redis.Incr(ctx, t.counterKey(identifier)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	if count == 1 && t.config.CounterTTL > 0 {
		// Rolling window for counting failures.
		if err := t.redis.Expire(ctx, t.counterKey(identifier), t.config.CounterTTL).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
	}

	if count < int64(t.config.Threshold) {
		return false, nil
	}

	if err := t.redis.Set(ctx, t.lockKey(identifier), count, t.config.Duration).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return true, nil
}

// IsLocked reports whether the identifier currently has an active lock.
func (t *Tracker) IsLocked(ctx context.Context, identifier string) (bool, error) {
	if identifier == "" {
		return false, nil
	}

	n, err := t.redis.Exists(ctx, t.lockKey(identifier)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return n > 0, nil
}

// RemainingLockout returns how long the active lock has left, or zero when
// the identifier is not locked.
func (t *Tracker) RemainingLockout(ctx context.Context, identifier string) (time.Duration, error) {
	if identifier == "" {
		return 0, nil
	}

	ttl, err := t.redis.PTTL(ctx, t.lockKey(identifier)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// ClearFailedAttempts removes both the failure counter and any active lock.
// Called after a successful authentication.
func (t *Tracker) ClearFailedAttempts(ctx context.Context, identifier string) error {
	if identifier == "" {
		return nil
	}

	if err := t.redis.Del(ctx, t.counterKey(identifier), t.lockKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// FailureCount returns the current failure counter for an identifier.
func (t *Tracker) FailureCount(ctx context.Context, identifier string) (int, error) {
	if identifier == "" {
		return 0, nil
	}

	count, err := t.redis.Get(ctx, t.counterKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return int(count), nil
}

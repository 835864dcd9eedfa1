package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	MaxAttempts      int
	Window           time.Duration
	EnableIPThrottle bool
	IPMaxAttempts    int
	Prefix           string
}

// Result is the outcome of a single attempt check. Reason is display-ready:
// the orchestrator surfaces it to the user verbatim on a denial.
type Result struct {
	Allowed           bool
	RemainingAttempts int
	ResetAt           time.Time
	RetryAfter        time.Duration
	Reason            string
}

const (
	reasonWindow = "Too many attempts. Please wait before trying again."
	reasonIP     = "Too many attempts from your network. Please wait before trying again."
)

// Limiter enforces per-endpoint+client fixed-window attempt budgets using
// Redis counters. Check counts the attempt it evaluates, so a denied attempt
// still consumes budget.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "gs:rl"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check records one attempt against the endpoint+clientID window and reports
// whether it is allowed. When metadata carries an "ip" entry and the IP
// throttle is enabled, a secondary per-IP window is enforced as well.
func (l *Limiter) Check(ctx context.Context, endpoint, clientID string, metadata map[string]string) (Result, error) {
	res, err := l.checkWindow(ctx, l.clientKey(endpoint, clientID), l.config.MaxAttempts)
	if err != nil || !res.Allowed {
		return res, err
	}

	if l.config.EnableIPThrottle {
		if ip := metadata["ip"]; ip != "" {
			ipRes, err := l.checkWindow(ctx, l.ipKey(endpoint, ip), l.config.IPMaxAttempts)
			if err != nil {
				return ipRes, err
			}
			if !ipRes.Allowed {
				ipRes.Reason = reasonIP
				return ipRes, nil
			}
		}
	}

	return res, nil
}

// RecordSuccess clears the attempt window after a successful authentication,
// so prior failed attempts stop counting against the client.
func (l *Limiter) RecordSuccess(ctx context.Context, endpoint, clientID string, metadata map[string]string) error {
	keys := []string{l.clientKey(endpoint, clientID)}
	if l.config.EnableIPThrottle {
		if ip := metadata["ip"]; ip != "" {
			keys = append(keys, l.ipKey(endpoint, ip))
		}
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter for an endpoint+clientID pair.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) Attempts(ctx context.Context, endpoint, clientID string) (int, error) {
	count, err := l.redis.Get(ctx, l.clientKey(endpoint, clientID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkWindow(ctx context.Context, key string, maxAttempts int) (Result, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		ttl = l.config.Window
	}

	res := Result{
		Allowed: count <= int64(maxAttempts),
		ResetAt: time.Now().Add(ttl),
	}
	if remaining := int64(maxAttempts) - count; remaining > 0 {
		res.RemainingAttempts = int(remaining)
	}
	if !res.Allowed {
		res.RetryAfter = ttl
		res.Reason = reasonWindow
	}

	return res, nil
}

func (l *Limiter) clientKey(endpoint, clientID string) string {
	return l.config.Prefix + ":" + sanitize(endpoint) + ":c:" + clientID
}

func (l *Limiter) ipKey(endpoint, ip string) string {
	return l.config.Prefix + ":" + sanitize(endpoint) + ":ip:" + ip
}

func sanitize(endpoint string) string {
	return strings.Trim(strings.ReplaceAll(endpoint, "/", "_"), "_")
}

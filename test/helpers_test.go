//go:build integration
// +build integration

package test

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/lockout"
	"github.com/MrEthical07/goSession/localauth"
)

const testUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// codeCapture records the most recent out-of-band two-factor code.
type codeCapture struct {
	mu   sync.Mutex
	last string
}

func (c *codeCapture) notify(_, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = code
}

func (c *codeCapture) code(t *testing.T) string {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == "" {
		t.Fatal("no two-factor code was delivered")
	}
	return c.last
}

// integrationRig wires the whole stack against one miniredis: the local
// authenticator counts credential failures into the same lockout tracker the
// orchestrator reads, exactly as a production deployment would.
type integrationRig struct {
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	provider *localauth.MemoryProvider
	auth     *localauth.Service
	codes    *codeCapture
	orch     *goSession.Orchestrator
	config   goSession.Config
}

func integrationConfig() goSession.Config {
	return goSession.Config{
		RateLimit: goSession.RateLimitConfig{
			MaxAttempts: 10,
			Window:      15 * time.Minute,
			RedisPrefix: "gs:rl",
		},
		Lockout: goSession.LockoutConfig{
			Threshold:   3,
			Duration:    30 * time.Minute,
			CounterTTL:  24 * time.Hour,
			RedisPrefix: "gs:lock",
		},
		Device: goSession.DeviceConfig{
			TrustTTL:    90 * 24 * time.Hour,
			MaxTrusted:  10,
			RedisPrefix: "gs:dev",
		},
		Session: goSession.SessionConfig{
			ObserverBuffer: 8,
			RestoreSkew:    30 * time.Second,
			RedisPrefix:    "gs:sess",
		},
		Audit: goSession.AuditConfig{
			Enabled:    false,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: goSession.MetricsConfig{
			Enabled: true,
		},
	}
}

func newIntegrationRig(t *testing.T, mutate func(*goSession.Config)) *integrationRig {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := integrationConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	tracker := lockout.New(rdb, lockout.Config{
		Threshold:  cfg.Lockout.Threshold,
		Duration:   cfg.Lockout.Duration,
		CounterTTL: cfg.Lockout.CounterTTL,
		Prefix:     cfg.Lockout.RedisPrefix,
	})

	provider := localauth.NewMemoryProvider()
	codes := &codeCapture{}
	auth, err := localauth.New(provider, localauth.Config{
		Secret:          []byte("integration-test-secret"),
		Issuer:          "goSession-integration",
		Notify:          codes.notify,
		FailureRecorder: tracker,
	})
	if err != nil {
		t.Fatalf("localauth new failed: %v", err)
	}

	orch, err := goSession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAuthenticator(auth).
		WithLockoutTracker(tracker).
		WithLogger(log.New(io.Discard, "", 0)).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	t.Cleanup(func() {
		orch.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &integrationRig{
		mr:       mr,
		rdb:      rdb,
		provider: provider,
		auth:     auth,
		codes:    codes,
		orch:     orch,
		config:   cfg,
	}
}

func requestContext() context.Context {
	ctx := goSession.WithClientIP(context.Background(), "203.0.113.7")
	return goSession.WithUserAgent(ctx, testUserAgent)
}

func registerUser(t *testing.T, rig *integrationRig, email, pass string) {
	t.Helper()

	state, err := rig.orch.Register(requestContext(), goSession.RegisterRequest{
		Email:     email,
		Password:  pass,
		FirstName: "Alice",
		LastName:  "Example",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if state.Phase() != goSession.PhaseAuthenticated {
		t.Fatalf("register ended in %v, want authenticated", state.Phase())
	}

	if _, err := rig.orch.Logout(requestContext()); err != nil {
		t.Fatalf("logout after register failed: %v", err)
	}
}

func enableTwoFactor(t *testing.T, rig *integrationRig, email string) {
	t.Helper()

	rec, err := rig.provider.FindByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("find account failed: %v", err)
	}
	rec.TwoFactorEnabled = true
	if err := rig.provider.Update(context.Background(), rec); err != nil {
		t.Fatalf("update account failed: %v", err)
	}
}

package goSession

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

// fakeRateLimiter is a scriptable RateLimiter that records every call.
type fakeRateLimiter struct {
	mu        sync.Mutex
	allowed   bool
	reason    string
	checkErr  error
	resetErr  error
	checks    []string
	successes []string
	order     *callRecorder
}

func newAllowAllLimiter(order *callRecorder) *fakeRateLimiter {
	return &fakeRateLimiter{allowed: true, order: order}
}

func (f *fakeRateLimiter) Check(_ context.Context, endpoint, clientID string, _ map[string]string) (RateLimitResult, error) {
	f.mu.Lock()
	f.checks = append(f.checks, endpoint+"|"+clientID)
	f.mu.Unlock()
	f.order.record("rate.Check")
	if f.checkErr != nil {
		return RateLimitResult{}, f.checkErr
	}
	return RateLimitResult{Allowed: f.allowed, Reason: f.reason, RetryAfter: 30 * time.Second}, nil
}

func (f *fakeRateLimiter) RecordSuccess(_ context.Context, endpoint, clientID string, _ map[string]string) error {
	f.mu.Lock()
	f.successes = append(f.successes, endpoint+"|"+clientID)
	f.mu.Unlock()
	f.order.record("rate.RecordSuccess")
	return f.resetErr
}

// fakeLockout is a scriptable LockoutTracker that records every call.
type fakeLockout struct {
	mu        sync.Mutex
	locked    bool
	remaining time.Duration
	checkErr  error
	clearErr  error
	checks    int
	clears    []string
	order     *callRecorder
}

func (f *fakeLockout) IsLocked(context.Context, string) (bool, error) {
	f.mu.Lock()
	f.checks++
	f.mu.Unlock()
	f.order.record("lockout.IsLocked")
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.locked, nil
}

func (f *fakeLockout) RemainingLockout(context.Context, string) (time.Duration, error) {
	return f.remaining, nil
}

func (f *fakeLockout) ClearFailedAttempts(_ context.Context, identifier string) error {
	f.mu.Lock()
	f.clears = append(f.clears, identifier)
	f.mu.Unlock()
	f.order.record("lockout.Clear")
	return f.clearErr
}

// fakeFingerprinter records trust-path calls so tests can assert the
// exactly-one-trust-call rule.
type fakeFingerprinter struct {
	mu            sync.Mutex
	trusted       bool
	generateErr   error
	isTrustedErr  error
	trustErr      error
	generates     int
	trusts        int
	verifications int
	trustName     string
	order         *callRecorder
}

func (f *fakeFingerprinter) Generate(context.Context) (*DeviceFingerprint, error) {
	f.mu.Lock()
	f.generates++
	f.mu.Unlock()
	f.order.record("device.Generate")
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &DeviceFingerprint{
		FingerprintID: "fp-1",
		DeviceID:      "dev-1",
		DeviceModel:   "Chrome",
		Platform:      "Linux",
	}, nil
}

func (f *fakeFingerprinter) IsTrusted(context.Context, string) (bool, error) {
	f.order.record("device.IsTrusted")
	if f.isTrustedErr != nil {
		return false, f.isTrustedErr
	}
	return f.trusted, nil
}

func (f *fakeFingerprinter) Trust(_ context.Context, _ string, customName string) (bool, error) {
	f.mu.Lock()
	f.trusts++
	f.trustName = customName
	f.mu.Unlock()
	f.order.record("device.Trust")
	if f.trustErr != nil {
		return false, f.trustErr
	}
	return true, nil
}

func (f *fakeFingerprinter) RecordVerification(context.Context) error {
	f.mu.Lock()
	f.verifications++
	f.mu.Unlock()
	f.order.record("device.RecordVerification")
	return nil
}

// fakeAuthenticator answers from scripted results and counts every call.
type fakeAuthenticator struct {
	mu           sync.Mutex
	loginResult  *LoginResult
	loginErr     error
	registerErr  error
	verifyResult *LoginResult
	verifyErr    error
	refreshErr   error
	logoutErr    error
	logins       int
	registers    int
	verifies     []string
	refreshes    []string
	logouts      []string
	gate         chan struct{} // when set, Login blocks until the gate closes
	order        *callRecorder
}

func (f *fakeAuthenticator) Login(context.Context, string, string) (*LoginResult, error) {
	f.mu.Lock()
	f.logins++
	gate := f.gate
	f.mu.Unlock()
	f.order.record("auth.Login")
	if gate != nil {
		<-gate
	}
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginResult, nil
}

func (f *fakeAuthenticator) Register(context.Context, RegisterRequest) (*LoginResult, error) {
	f.mu.Lock()
	f.registers++
	f.mu.Unlock()
	f.order.record("auth.Register")
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.loginResult, nil
}

func (f *fakeAuthenticator) Refresh(_ context.Context, refreshToken string) (*LoginResult, error) {
	f.mu.Lock()
	f.refreshes = append(f.refreshes, refreshToken)
	f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.loginResult, nil
}

func (f *fakeAuthenticator) VerifyTwoFactor(_ context.Context, challengeID, code string) (*LoginResult, error) {
	f.mu.Lock()
	f.verifies = append(f.verifies, challengeID+"|"+code)
	f.mu.Unlock()
	f.order.record("auth.VerifyTwoFactor")
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.verifyResult != nil {
		return f.verifyResult, nil
	}
	return f.loginResult, nil
}

func (f *fakeAuthenticator) Logout(_ context.Context, accessToken string) error {
	f.mu.Lock()
	f.logouts = append(f.logouts, accessToken)
	f.mu.Unlock()
	return f.logoutErr
}

// fakeTokenStore is an in-memory TokenStore with scriptable failures.
type fakeTokenStore struct {
	mu      sync.Mutex
	sess    *StoredSession
	saveErr error
	loadErr error
	saves   int
	clears  int
	order   *callRecorder
}

func (f *fakeTokenStore) Save(_ context.Context, sess *StoredSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.order.record("store.Save")
	if f.saveErr != nil {
		return f.saveErr
	}
	f.sess = sess
	return nil
}

func (f *fakeTokenStore) Load(context.Context) (*StoredSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.sess, nil
}

func (f *fakeTokenStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	f.sess = nil
	return nil
}

// callRecorder captures cross-collaborator call order.
type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) record(name string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
}

func (r *callRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// testRig bundles an orchestrator with its counting fakes.
type testRig struct {
	orchestrator  *Orchestrator
	rateLimiter   *fakeRateLimiter
	lockout       *fakeLockout
	fingerprinter *fakeFingerprinter
	authenticator *fakeAuthenticator
	tokenStore    *fakeTokenStore
	order         *callRecorder
}

func testUser() *User {
	return &User{
		ID:    "u1",
		Email: "alice@example.com",
		Name:  "Alice Example",
		Roles: []string{"user"},
	}
}

func testLoginResult() *LoginResult {
	return &LoginResult{
		User:         testUser(),
		AccessToken:  "access-token-1",
		RefreshToken: "refresh-token-1",
	}
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	order := &callRecorder{}
	rig := &testRig{
		rateLimiter:   newAllowAllLimiter(order),
		lockout:       &fakeLockout{order: order},
		fingerprinter: &fakeFingerprinter{order: order},
		authenticator: &fakeAuthenticator{loginResult: testLoginResult(), order: order},
		tokenStore:    &fakeTokenStore{order: order},
		order:         order,
	}

	orchestrator, err := New().
		WithAuthenticator(rig.authenticator).
		WithRateLimiter(rig.rateLimiter).
		WithLockoutTracker(rig.lockout).
		WithFingerprinter(rig.fingerprinter).
		WithTokenStore(rig.tokenStore).
		WithLogger(log.New(io.Discard, "", 0)).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(orchestrator.Close)

	rig.orchestrator = orchestrator
	return rig
}

func indexOf(calls []string, name string) int {
	for i, c := range calls {
		if c == name {
			return i
		}
	}
	return -1
}

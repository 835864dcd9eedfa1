package goSession

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLoginSuccess(t *testing.T) {
	rig := newTestRig(t)

	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if state.Phase() != PhaseAuthenticated {
		t.Fatalf("expected authenticated state, got %v", state)
	}
	if state.AccessToken() != "access-token-1" || state.RefreshToken() != "refresh-token-1" {
		t.Fatalf("unexpected tokens: %q / %q", state.AccessToken(), state.RefreshToken())
	}
	if state.User() == nil || state.User().ID != "u1" {
		t.Fatalf("unexpected user: %+v", state.User())
	}
	if rig.orchestrator.Current().Phase() != PhaseAuthenticated {
		t.Fatal("expected current state to reflect the login")
	}
	if got := rig.orchestrator.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("expected 1 login success counter, got %d", got)
	}
}

func TestLoginStateUserIsIsolatedCopy(t *testing.T) {
	rig := newTestRig(t)

	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	state.User().Roles[0] = "mutated"
	if rig.authenticator.loginResult.User.Roles[0] != "user" {
		t.Fatal("expected state user to be a copy, authenticator result was mutated")
	}
}

func TestLoginRateLimited(t *testing.T) {
	rig := newTestRig(t)
	rig.rateLimiter.allowed = false

	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
	if !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if state.Phase() != PhaseAuthError {
		t.Fatalf("expected auth error state, got %v", state)
	}
	if !strings.Contains(state.Message(), "Too many requests") {
		t.Fatalf("unexpected rate limit message: %q", state.Message())
	}
	if rig.authenticator.logins != 0 {
		t.Fatal("expected authenticator to be short-circuited by the rate gate")
	}
	if rig.lockout.checks != 0 {
		t.Fatal("expected lockout gate to be short-circuited by the rate gate")
	}
}

func TestLoginRateLimitedShowsLimiterReason(t *testing.T) {
	rig := newTestRig(t)
	rig.rateLimiter.allowed = false
	rig.rateLimiter.reason = "Login temporarily blocked for this account."

	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
	if !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if state.Message() != "Login temporarily blocked for this account." {
		t.Fatalf("expected the limiter's reason verbatim, got %q", state.Message())
	}
}

func TestLoginLockedOut(t *testing.T) {
	rig := newTestRig(t)
	rig.lockout.locked = true
	rig.lockout.remaining = 25 * time.Minute

	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
	if state.Phase() != PhaseAuthError {
		t.Fatalf("expected auth error state, got %v", state)
	}
	if !strings.Contains(state.Message(), "25 minutes") {
		t.Fatalf("expected remaining-lockout wording, got %q", state.Message())
	}
	if rig.authenticator.logins != 0 {
		t.Fatal("expected authenticator to be short-circuited by the lockout gate")
	}
}

func TestLoginLockoutMessageRoundsUp(t *testing.T) {
	rig := newTestRig(t)
	rig.lockout.locked = true
	rig.lockout.remaining = 90 * time.Second

	state, _ := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
	if !strings.Contains(state.Message(), "2 minutes") {
		t.Fatalf("expected rounded-up minutes, got %q", state.Message())
	}
}

func TestLoginGateOrder(t *testing.T) {
	rig := newTestRig(t)

	if _, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	calls := rig.order.snapshot()
	check := indexOf(calls, "rate.Check")
	locked := indexOf(calls, "lockout.IsLocked")
	login := indexOf(calls, "auth.Login")
	clear := indexOf(calls, "lockout.Clear")
	save := indexOf(calls, "store.Save")
	if check == -1 || locked == -1 || login == -1 || clear == -1 || save == -1 {
		t.Fatalf("missing pipeline calls: %v", calls)
	}
	if !(check < locked && locked < login && login < clear && clear < save) {
		t.Fatalf("pipeline ran out of order: %v", calls)
	}
}

func TestLoginInvalidCredentialsUsesBackendMessage(t *testing.T) {
	rig := newTestRig(t)
	rig.authenticator.loginErr = &CredentialError{
		Message: "Invalid email or password.",
		Reason:  ErrInvalidCredentials,
	}

	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if errors.Is(err, ErrAuthenticationFailed) {
		t.Fatal("credential failures must not be wrapped as infrastructure failures")
	}
	if state.Message() != "Invalid email or password." {
		t.Fatalf("expected the backend message verbatim, got %q", state.Message())
	}
}

func TestLoginUnclassifiedErrorGetsFallbackMessage(t *testing.T) {
	rig := newTestRig(t)
	rig.authenticator.loginErr = errors.New("dial tcp: connection refused")

	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed wrap, got %v", err)
	}
	if state.Message() != msgLoginFailed {
		t.Fatalf("expected fallback message, got %q", state.Message())
	}
	if strings.Contains(state.Message(), "dial tcp") {
		t.Fatal("raw collaborator error leaked into the display message")
	}
}

func TestLoginInfraFailuresDegradeToAllow(t *testing.T) {
	rig := newTestRig(t)
	rig.rateLimiter.checkErr = errors.New("redis unavailable")
	rig.lockout.checkErr = errors.New("redis unavailable")

	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("expected infra failures to degrade to allow, got %v", err)
	}
	if state.Phase() != PhaseAuthenticated {
		t.Fatalf("expected authenticated state, got %v", state)
	}
	if got := rig.orchestrator.MetricsSnapshot().Counters[MetricCollaboratorError]; got != 2 {
		t.Fatalf("expected 2 collaborator error counters, got %d", got)
	}
}

func TestLoginSoftPostAuthFailures(t *testing.T) {
	rig := newTestRig(t)
	rig.lockout.clearErr = errors.New("redis unavailable")
	rig.rateLimiter.resetErr = errors.New("redis unavailable")
	rig.fingerprinter.generateErr = errors.New("no attributes")
	rig.tokenStore.saveErr = errors.New("disk full")

	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("expected bookkeeping failures to stay soft, got %v", err)
	}
	if state.Phase() != PhaseAuthenticated {
		t.Fatalf("expected authenticated state, got %v", state)
	}
	if got := rig.orchestrator.MetricsSnapshot().Counters[MetricCollaboratorError]; got != 4 {
		t.Fatalf("expected 4 collaborator error counters, got %d", got)
	}
}

func TestLoginTrustsUnknownDeviceOnce(t *testing.T) {
	rig := newTestRig(t)
	rig.fingerprinter.trusted = false

	if _, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if rig.fingerprinter.trusts != 1 || rig.fingerprinter.verifications != 0 {
		t.Fatalf("expected exactly one Trust call, got trust=%d verify=%d",
			rig.fingerprinter.trusts, rig.fingerprinter.verifications)
	}
	if rig.fingerprinter.trustName != "Chrome - Linux" {
		t.Fatalf("unexpected default device name: %q", rig.fingerprinter.trustName)
	}
}

func TestLoginVerifiesKnownDeviceOnce(t *testing.T) {
	rig := newTestRig(t)
	rig.fingerprinter.trusted = true

	if _, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if rig.fingerprinter.trusts != 0 || rig.fingerprinter.verifications != 1 {
		t.Fatalf("expected exactly one RecordVerification call, got trust=%d verify=%d",
			rig.fingerprinter.trusts, rig.fingerprinter.verifications)
	}
}

func TestLoginTrustLookupFailureSkipsBothTrustCalls(t *testing.T) {
	rig := newTestRig(t)
	rig.fingerprinter.isTrustedErr = errors.New("redis unavailable")

	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
	if err != nil || state.Phase() != PhaseAuthenticated {
		t.Fatalf("expected soft trust failure, got state=%v err=%v", state, err)
	}
	if rig.fingerprinter.trusts != 0 || rig.fingerprinter.verifications != 0 {
		t.Fatal("expected no trust call after a failed trust lookup")
	}
}

func TestLoginPersistsSession(t *testing.T) {
	rig := newTestRig(t)

	if _, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if rig.tokenStore.sess == nil {
		t.Fatal("expected session to be persisted")
	}
	if rig.tokenStore.sess.AccessToken != "access-token-1" {
		t.Fatalf("unexpected persisted token: %q", rig.tokenStore.sess.AccessToken)
	}
	if rig.tokenStore.sess.User.ID != "u1" {
		t.Fatalf("unexpected persisted user: %+v", rig.tokenStore.sess.User)
	}
}

func TestLoginClearsCountersOnSuccess(t *testing.T) {
	rig := newTestRig(t)

	if _, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if len(rig.lockout.clears) != 1 || rig.lockout.clears[0] != "alice@example.com" {
		t.Fatalf("expected lockout counters cleared for the identifier, got %v", rig.lockout.clears)
	}
	if len(rig.rateLimiter.successes) != 1 {
		t.Fatalf("expected one rate-limit reset, got %v", rig.rateLimiter.successes)
	}
}

func TestLoginTwoFactorRequired(t *testing.T) {
	rig := newTestRig(t)
	rig.authenticator.loginErr = &TwoFactorRequiredError{ChallengeID: "ch-1", Method: "email"}

	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")

	var tfr *TwoFactorRequiredError
	if !errors.As(err, &tfr) {
		t.Fatalf("expected TwoFactorRequiredError, got %v", err)
	}
	if tfr.Method != "email" {
		t.Fatalf("unexpected challenge method: %q", tfr.Method)
	}
	if state.Phase() != PhaseUnauthenticated {
		t.Fatalf("expected unauthenticated state while challenge is pending, got %v", state)
	}
	if rig.tokenStore.saves != 0 {
		t.Fatal("expected no persisted session before the second factor")
	}
	if got := rig.orchestrator.MetricsSnapshot().Counters[MetricTwoFactorRequired]; got != 1 {
		t.Fatalf("expected two-factor-required counter, got %d", got)
	}
}

func TestLoginWhileAuthenticated(t *testing.T) {
	rig := newTestRig(t)

	if _, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
	if !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Fatalf("expected ErrAlreadyAuthenticated, got %v", err)
	}
	if state.Phase() != PhaseAuthenticated {
		t.Fatalf("expected session to remain authenticated, got %v", state)
	}
	if rig.authenticator.logins != 1 {
		t.Fatalf("expected no second backend login, got %d", rig.authenticator.logins)
	}
}

func TestLoginAfterClose(t *testing.T) {
	rig := newTestRig(t)
	rig.orchestrator.Close()

	if _, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret"); !errors.Is(err, ErrOrchestratorClosed) {
		t.Fatalf("expected ErrOrchestratorClosed, got %v", err)
	}
}

func TestLoginSingleFlight(t *testing.T) {
	rig := newTestRig(t)
	gate := make(chan struct{})
	rig.authenticator.gate = gate

	const callers = 8
	var wg sync.WaitGroup
	states := make([]SessionState, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i], errs[i] = rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
		}(i)
	}

	// Let the callers pile up on the in-flight attempt before releasing it.
	deadline := time.After(2 * time.Second)
	for {
		rig.authenticator.mu.Lock()
		started := rig.authenticator.logins
		rig.authenticator.mu.Unlock()
		if started == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected one in-flight backend login, got %d", started)
		case <-time.After(time.Millisecond):
		}
	}
	// Give the remaining callers time to join the flight before release.
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	if rig.authenticator.logins != 1 {
		t.Fatalf("expected one backend login for %d concurrent callers, got %d", callers, rig.authenticator.logins)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if states[i].Phase() != PhaseAuthenticated {
			t.Fatalf("caller %d saw state %v", i, states[i])
		}
		if states[i].AccessToken() != states[0].AccessToken() {
			t.Fatal("expected all joined callers to observe the identical outcome")
		}
	}
	if rig.fingerprinter.trusts != 1 {
		t.Fatalf("expected one trust call across joined callers, got %d", rig.fingerprinter.trusts)
	}
}

func TestLoginBookkeepingSurvivesCancellation(t *testing.T) {
	rig := newTestRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	gate := make(chan struct{})
	rig.authenticator.gate = gate

	done := make(chan struct{})
	var state SessionState
	var err error
	go func() {
		defer close(done)
		state, err = rig.orchestrator.Login(ctx, "alice@example.com", "secret")
	}()

	// Cancel while authentication is in flight; the backend still answers
	// success, so the post-auth pipeline must run to completion.
	cancel()
	close(gate)
	<-done

	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if state.Phase() != PhaseAuthenticated {
		t.Fatalf("expected authenticated state, got %v", state)
	}
	if rig.tokenStore.saves != 1 {
		t.Fatalf("expected session persistence despite cancellation, got %d saves", rig.tokenStore.saves)
	}
	if rig.fingerprinter.trusts != 1 {
		t.Fatalf("expected device trust despite cancellation, got %d", rig.fingerprinter.trusts)
	}
}

func TestLoginRetryAfterAuthError(t *testing.T) {
	rig := newTestRig(t)
	rig.authenticator.loginErr = &CredentialError{Message: "Invalid email or password.", Reason: ErrInvalidCredentials}

	if _, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	rig.authenticator.loginErr = nil
	state, err := rig.orchestrator.Login(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("retry after auth error failed: %v", err)
	}
	if state.Phase() != PhaseAuthenticated {
		t.Fatalf("expected authenticated state after retry, got %v", state)
	}
}

package goSession

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	endpointLogin    = "/api/auth/login"
	endpointRegister = "/api/auth/register"
)

// Login runs the full login pipeline for the identifier+credential pair:
// rate-limit gate, lockout gate, authentication, then post-auth bookkeeping.
// The returned state is terminal and already published to observers; the
// error classifies the outcome ([ErrLoginRateLimited], [ErrAccountLocked],
// [ErrInvalidCredentials], [*TwoFactorRequiredError], or nil on success).
//
// Concurrent Login calls are single-flighted: a call made while another is in
// flight joins it and observes the identical outcome. Once authentication has
// succeeded, cancelling ctx no longer aborts the attempt; the bookkeeping
// steps run to completion.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
func (o *Orchestrator) Login(ctx context.Context, identifier, credential string) (SessionState, error) {
	if o.isClosed() {
		return o.Current(), ErrOrchestratorClosed
	}
	if o.Current().Phase() == PhaseAuthenticated {
		return o.Current(), ErrAlreadyAuthenticated
	}

	v, err, _ := o.flight.Do("login", func() (any, error) {
		out := o.loginAttempt(ctx, identifier, credential)
		return out, nil
	})
	if err != nil {
		// Unreachable: loginAttempt reports through the outcome.
		return o.Current(), err
	}

	out := v.(loginOutcome)
	return out.state, out.err
}

// loginAttempt is the single-flighted body of Login. It always leaves the
// state machine in a terminal state.
func (o *Orchestrator) loginAttempt(ctx context.Context, identifier, credential string) loginOutcome {
	start := time.Now()
	defer func() {
		o.metricObserve(MetricLoginLatency, time.Since(start))
	}()

	o.transition(Authenticating())
	metadata := requestMetadata(ctx)

	// Gate 1: rate limit. A limiter infrastructure failure must not lock
	// users out, so it degrades to allow.
	res, err := o.rateLimiter.Check(ctx, endpointLogin, identifier, metadata)
	if err != nil {
		o.warn("rate limit check failed", err)
	} else if !res.Allowed {
		o.metricInc(MetricLoginRateLimited)
		o.emitAudit(ctx, auditEventLoginRateLimited, false, "", identifier, ErrLoginRateLimited, func() map[string]string {
			return map[string]string{"reason": res.Reason}
		})
		state := o.transition(AuthError(rateLimitMessage(res)))
		return loginOutcome{state: state, err: ErrLoginRateLimited}
	}

	// Gate 2: account lockout. Same degradation rule as the rate limiter.
	locked, err := o.lockout.IsLocked(ctx, identifier)
	if err != nil {
		o.warn("lockout check failed", err)
	} else if locked {
		remaining, err := o.lockout.RemainingLockout(ctx, identifier)
		if err != nil {
			o.warn("lockout remaining lookup failed", err)
		}
		o.metricInc(MetricLoginLockedOut)
		o.emitAudit(ctx, auditEventLoginLockedOut, false, "", identifier, ErrAccountLocked, nil)
		state := o.transition(AuthError(lockoutMessage(remaining)))
		return loginOutcome{state: state, err: ErrAccountLocked}
	}

	// Gate 3: authenticate.
	result, err := o.authenticator.Login(ctx, identifier, credential)
	if err != nil {
		var tfr *TwoFactorRequiredError
		if errors.As(err, &tfr) {
			// Control signal, not a failure: park the challenge and drop
			// back to Unauthenticated until the second factor arrives.
			o.setPending(&pendingTwoFactor{
				challengeID: tfr.ChallengeID,
				method:      tfr.Method,
				identifier:  identifier,
			})
			o.metricInc(MetricTwoFactorRequired)
			o.emitAudit(ctx, auditEventTwoFactorRequired, false, "", identifier, err, nil)
			state := o.transition(Unauthenticated())
			return loginOutcome{state: state, err: err}
		}

		o.metricInc(MetricLoginFailure)
		o.emitAudit(ctx, auditEventLoginFailure, false, "", identifier, err, nil)
		state := o.transition(AuthError(displayMessage(err, msgLoginFailed)))
		if !errors.Is(err, ErrInvalidCredentials) && !errors.Is(err, ErrLoginRateLimited) && !errors.Is(err, ErrAccountLocked) {
			err = fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		}
		return loginOutcome{state: state, err: err}
	}

	// Authentication succeeded: the outcome is decided. Bookkeeping runs on
	// a context that survives caller cancellation and can only soft-fail.
	state := o.completeLogin(context.WithoutCancel(ctx), endpointLogin, identifier, result, true)
	o.metricInc(MetricLoginSuccess)
	o.emitAudit(ctx, auditEventLoginSuccess, true, result.User.ID, identifier, nil, nil)
	return loginOutcome{state: state}
}

// completeLogin runs the post-auth pipeline in its fixed order: lockout
// clear, rate-limit reset, device trust, session persistence, then the
// Authenticated transition. Every step is best-effort.
func (o *Orchestrator) completeLogin(ctx context.Context, endpoint, identifier string, result *LoginResult, clearLockout bool) SessionState {
	if clearLockout {
		if err := o.lockout.ClearFailedAttempts(ctx, identifier); err != nil {
			o.warn("lockout clear failed", err)
		}
	}

	if err := o.rateLimiter.RecordSuccess(ctx, endpoint, identifier, requestMetadata(ctx)); err != nil {
		o.warn("rate limit reset failed", err)
	}

	o.trustCurrentDevice(ctx, result.User.ID, identifier)
	o.persistSession(ctx, result)

	return o.transition(Authenticated(result.User.Clone(), result.AccessToken, result.RefreshToken))
}

// trustCurrentDevice generates the attempt's fingerprint and makes exactly
// one trust call: Trust for a device the user has not seen before,
// RecordVerification for a known one.
func (o *Orchestrator) trustCurrentDevice(ctx context.Context, userID, identifier string) {
	fp, err := o.fingerprinter.Generate(ctx)
	if err != nil {
		o.warn("fingerprint generation failed", err)
		return
	}

	trusted, err := o.fingerprinter.IsTrusted(ctx, userID)
	if err != nil {
		o.warn("device trust lookup failed", err)
		return
	}

	if trusted {
		if err := o.fingerprinter.RecordVerification(ctx); err != nil {
			o.warn("device verification record failed", err)
			return
		}
		o.metricInc(MetricDeviceVerified)
		o.emitAudit(ctx, auditEventDeviceVerification, true, userID, identifier, nil, nil)
		return
	}

	if _, err := o.fingerprinter.Trust(ctx, userID, fp.DeviceModel+" - "+fp.Platform); err != nil {
		o.warn("device trust failed", err)
		return
	}
	o.metricInc(MetricDeviceTrusted)
	o.emitAudit(ctx, auditEventDeviceTrusted, true, userID, identifier, nil, func() map[string]string {
		return map[string]string{"fingerprint_id": fp.FingerprintID}
	})
}

func (o *Orchestrator) persistSession(ctx context.Context, result *LoginResult) {
	sess := &StoredSession{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         *result.User.Clone(),
		SavedAt:      time.Now().Unix(),
	}
	if err := o.tokenStore.Save(ctx, sess); err != nil {
		o.warn("session persistence failed", err)
	}
}

// rateLimitMessage prefers the limiter's display-ready deny reason over the
// generic fallback.
func rateLimitMessage(res RateLimitResult) string {
	if res.Reason != "" {
		return res.Reason
	}
	return msgRateLimited
}

func lockoutMessage(remaining time.Duration) string {
	mins := int(math.Ceil(remaining.Minutes()))
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("Account is locked due to too many failed attempts. Try again in approximately %d minutes.", mins)
}

package goSession

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Register creates a new account and, on success, signs it in through the
// same post-auth pipeline as Login, minus the lockout bookkeeping (a fresh
// account has no failure history). The registration endpoint carries its own
// rate-limit window keyed by email.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
func (o *Orchestrator) Register(ctx context.Context, req RegisterRequest) (SessionState, error) {
	if o.isClosed() {
		return o.Current(), ErrOrchestratorClosed
	}
	if o.Current().Phase() == PhaseAuthenticated {
		return o.Current(), ErrAlreadyAuthenticated
	}

	v, err, _ := o.flight.Do("login", func() (any, error) {
		out := o.registerAttempt(ctx, req)
		return out, nil
	})
	if err != nil {
		return o.Current(), err
	}

	out := v.(loginOutcome)
	return out.state, out.err
}

func (o *Orchestrator) registerAttempt(ctx context.Context, req RegisterRequest) loginOutcome {
	o.transition(Authenticating())

	identifier := strings.ToLower(strings.TrimSpace(req.Email))
	metadata := requestMetadata(ctx)

	res, err := o.rateLimiter.Check(ctx, endpointRegister, identifier, metadata)
	if err != nil {
		o.warn("rate limit check failed", err)
	} else if !res.Allowed {
		o.metricInc(MetricRegisterRateLimited)
		o.emitAudit(ctx, auditEventRegisterRateLimited, false, "", identifier, ErrRegisterRateLimited, nil)
		state := o.transition(AuthError(rateLimitMessage(res)))
		return loginOutcome{state: state, err: ErrRegisterRateLimited}
	}

	result, err := o.authenticator.Register(ctx, req)
	if err != nil {
		o.metricInc(MetricRegisterFailure)
		o.emitAudit(ctx, auditEventRegisterFailure, false, "", identifier, err, nil)
		state := o.transition(AuthError(displayMessage(err, msgRegisterFail)))
		if !errors.Is(err, ErrAccountExists) && !errors.Is(err, ErrInvalidCredentials) {
			err = fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		}
		return loginOutcome{state: state, err: err}
	}

	state := o.completeLogin(context.WithoutCancel(ctx), endpointRegister, identifier, result, false)
	o.metricInc(MetricRegisterSuccess)
	o.emitAudit(ctx, auditEventRegisterSuccess, true, result.User.ID, identifier, nil, nil)
	return loginOutcome{state: state}
}

package goSession

import (
	"context"
	"errors"
	"fmt"
)

// ConfirmTwoFactor completes the two-factor challenge parked by a previous
// Login that returned [*TwoFactorRequiredError]. On success it runs the same
// post-auth pipeline as a password login. An invalid code leaves the
// challenge pending, so the caller may retry with a fresh code.
//
// ConfirmTwoFactor may return an error when input validation, dependency calls, or security checks fail.
func (o *Orchestrator) ConfirmTwoFactor(ctx context.Context, code string) (SessionState, error) {
	if o.isClosed() {
		return o.Current(), ErrOrchestratorClosed
	}

	// The pending challenge is taken inside the flight: a ConfirmTwoFactor
	// that joins an in-flight Login or Register receives that attempt's
	// outcome and leaves the challenge parked for a later confirm.
	v, err, _ := o.flight.Do("login", func() (any, error) {
		pending := o.takePending()
		if pending == nil {
			return loginOutcome{state: o.Current(), err: ErrNoPendingTwoFactor}, nil
		}
		out := o.confirmTwoFactorAttempt(ctx, pending, code)
		return out, nil
	})
	if err != nil {
		return o.Current(), err
	}

	out := v.(loginOutcome)
	return out.state, out.err
}

func (o *Orchestrator) confirmTwoFactorAttempt(ctx context.Context, pending *pendingTwoFactor, code string) loginOutcome {
	o.transition(Authenticating())

	result, err := o.authenticator.VerifyTwoFactor(ctx, pending.challengeID, code)
	if err != nil {
		o.metricInc(MetricTwoFactorFailure)
		o.emitAudit(ctx, auditEventTwoFactorFailure, false, "", pending.identifier, err, nil)

		if errors.Is(err, ErrTwoFactorInvalid) {
			// Wrong code, live challenge: keep it pending for a retry.
			o.setPending(pending)
			state := o.transition(AuthError(displayMessage(err, msgTwoFactorFail)))
			return loginOutcome{state: state, err: err}
		}

		state := o.transition(AuthError(displayMessage(err, msgTwoFactorFail)))
		return loginOutcome{state: state, err: fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)}
	}

	state := o.completeLogin(context.WithoutCancel(ctx), endpointLogin, pending.identifier, result, true)
	o.metricInc(MetricTwoFactorSuccess)
	o.emitAudit(ctx, auditEventTwoFactorSuccess, true, result.User.ID, pending.identifier, nil, nil)
	return loginOutcome{state: state}
}

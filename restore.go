package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// RestoreSession re-establishes a session at application start from the
// persisted [StoredSession]. An unexpired access token restores the session
// without any network traffic; an expired one with a refresh token is
// exchanged through [Authenticator.Refresh]. Restore never enters AuthError:
// a session that cannot be restored silently resolves to Unauthenticated and
// [ErrNoStoredSession].
//
// RestoreSession may return an error when input validation, dependency calls, or security checks fail.
func (o *Orchestrator) RestoreSession(ctx context.Context) (SessionState, error) {
	if o.isClosed() {
		return o.Current(), ErrOrchestratorClosed
	}

	sess, err := o.tokenStore.Load(ctx)
	if err != nil {
		o.warn("session load failed", err)
		return o.restoreFailed(ctx, "")
	}
	if sess == nil || sess.AccessToken == "" {
		return o.transition(Unauthenticated()), ErrNoStoredSession
	}

	exp, err := jwt.ExpiresAt(sess.AccessToken)
	if err == nil && time.Until(exp) > o.cfg.Session.RestoreSkew {
		state := o.transition(Authenticated(sess.User.Clone(), sess.AccessToken, sess.RefreshToken))
		o.metricInc(MetricSessionRestored)
		o.emitAudit(ctx, auditEventSessionRestored, true, sess.User.ID, sess.User.Email, nil, nil)
		return state, nil
	}

	if sess.RefreshToken == "" {
		if err := o.tokenStore.Clear(ctx); err != nil {
			o.warn("session clear failed", err)
		}
		return o.restoreFailed(ctx, sess.User.ID)
	}

	result, err := o.authenticator.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if err := o.tokenStore.Clear(ctx); err != nil {
			o.warn("session clear failed", err)
		}
		return o.restoreFailed(ctx, sess.User.ID)
	}

	o.persistSession(context.WithoutCancel(ctx), result)
	state := o.transition(Authenticated(result.User.Clone(), result.AccessToken, result.RefreshToken))
	o.metricInc(MetricSessionRestored)
	o.emitAudit(ctx, auditEventSessionRestored, true, result.User.ID, result.User.Email, nil, nil)
	return state, nil
}

func (o *Orchestrator) restoreFailed(ctx context.Context, userID string) (SessionState, error) {
	o.metricInc(MetricSessionRestoreFailed)
	o.emitAudit(ctx, auditEventSessionRestoreFailed, false, userID, "", ErrNoStoredSession, nil)
	return o.transition(Unauthenticated()), ErrNoStoredSession
}

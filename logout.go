package goSession

import "context"

// Logout ends the current session: the backend session is revoked
// best-effort, the persisted session blob is cleared, any pending two-factor
// challenge is discarded, and the state machine resets to Unauthenticated.
// Logout is idempotent from any state and never fails the caller for
// bookkeeping errors.
func (o *Orchestrator) Logout(ctx context.Context) (SessionState, error) {
	if o.isClosed() {
		return o.Current(), ErrOrchestratorClosed
	}

	current := o.Current()
	userID := ""
	if u := current.User(); u != nil {
		userID = u.ID
	}

	if current.Phase() == PhaseAuthenticated && current.AccessToken() != "" {
		if err := o.authenticator.Logout(ctx, current.AccessToken()); err != nil {
			o.warn("backend logout failed", err)
		}
	}

	if err := o.tokenStore.Clear(ctx); err != nil {
		o.warn("session clear failed", err)
	}

	o.takePending()

	o.metricInc(MetricLogout)
	o.emitAudit(ctx, auditEventLogout, true, userID, "", nil, nil)
	return o.transition(Unauthenticated()), nil
}

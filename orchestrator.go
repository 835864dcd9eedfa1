package goSession

import (
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
)

// Orchestrator drives the session state machine. It owns the current
// [SessionState], runs the login pipeline across the injected collaborators,
// and fans transitions out to observers. One instance serves one logical
// principal for the process lifetime; construct it with [Builder.Build].
//
// Orchestrator instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Orchestrator struct {
	cfg Config

	rateLimiter   RateLimiter
	lockout       LockoutTracker
	fingerprinter Fingerprinter
	authenticator Authenticator
	tokenStore    TokenStore

	metrics *Metrics
	audit   *internalaudit.Dispatcher
	logger  *log.Logger

	broadcaster *stateBroadcaster
	flight      singleflight.Group

	mu      sync.Mutex
	pending *pendingTwoFactor
	closed  bool
}

// pendingTwoFactor holds the challenge a two-factor login is waiting on.
type pendingTwoFactor struct {
	challengeID string
	method      string
	identifier  string
}

// loginOutcome carries a terminal state plus its classified error through the
// single-flight group, so joined callers observe the identical outcome.
type loginOutcome struct {
	state SessionState
	err   error
}

// Current returns a snapshot of the current session state.
//
// Current does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (o *Orchestrator) Current() SessionState {
	return o.broadcaster.Last()
}

// Observe subscribes to session state transitions. The returned channel
// immediately carries the current state (last-value replay), then every
// subsequent transition. Call cancel when done; it closes the channel.
//
// Observe does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (o *Orchestrator) Observe() (<-chan SessionState, func()) {
	return o.broadcaster.Subscribe()
}

// Close tears the orchestrator down: observers are closed and buffered audit
// events are flushed. Close is idempotent; operations after Close fail with
// [ErrOrchestratorClosed].
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.pending = nil
	o.mu.Unlock()

	o.broadcaster.Close()
	o.audit.Close()
}

// MetricsSnapshot returns a point-in-time copy of all counters and
// histograms. Empty maps are returned when metrics are disabled.
func (o *Orchestrator) MetricsSnapshot() MetricsSnapshot {
	return o.metrics.Snapshot()
}

// Metrics exposes the live metrics registry for exporters.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// AuditDropped reports how many audit events were dropped because the
// dispatch buffer was full.
func (o *Orchestrator) AuditDropped() uint64 {
	return o.audit.Dropped()
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// transition publishes s as the new current state and returns it.
func (o *Orchestrator) transition(s SessionState) SessionState {
	o.broadcaster.Publish(s)
	return s
}

// warn logs a best-effort failure that must not affect the outcome of the
// operation that produced it.
func (o *Orchestrator) warn(msg string, err error) {
	o.metricInc(MetricCollaboratorError)
	if o.logger != nil {
		o.logger.Printf("goSession: %s: %v", msg, err)
	}
}

func (o *Orchestrator) metricInc(id MetricID) {
	o.metrics.Inc(id)
}

func (o *Orchestrator) metricObserve(id MetricID, d time.Duration) {
	o.metrics.Observe(id, d)
}

func (o *Orchestrator) setPending(p *pendingTwoFactor) {
	o.mu.Lock()
	o.pending = p
	o.mu.Unlock()
}

func (o *Orchestrator) takePending() *pendingTwoFactor {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.pending
	o.pending = nil
	return p
}

package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef defines a public type used by goSession APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goSession APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session orchestrator.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful login attempts."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed login attempts."},
	{ID: goSession.MetricLoginRateLimited, Name: "gosession_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: goSession.MetricLoginLockedOut, Name: "gosession_login_locked_out_total", Help: "Login attempts denied by account lockout."},
	{ID: goSession.MetricTwoFactorRequired, Name: "gosession_two_factor_required_total", Help: "Logins requiring a second factor."},
	{ID: goSession.MetricTwoFactorSuccess, Name: "gosession_two_factor_success_total", Help: "Successful two-factor confirmations."},
	{ID: goSession.MetricTwoFactorFailure, Name: "gosession_two_factor_failure_total", Help: "Failed two-factor confirmations."},
	{ID: goSession.MetricRegisterSuccess, Name: "gosession_register_success_total", Help: "Successful registrations."},
	{ID: goSession.MetricRegisterFailure, Name: "gosession_register_failure_total", Help: "Failed registrations."},
	{ID: goSession.MetricRegisterRateLimited, Name: "gosession_register_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: goSession.MetricDeviceTrusted, Name: "gosession_device_trusted_total", Help: "Devices newly added to a user's trusted set."},
	{ID: goSession.MetricDeviceVerified, Name: "gosession_device_verified_total", Help: "Logins from already-trusted devices."},
	{ID: goSession.MetricCollaboratorError, Name: "gosession_collaborator_error_total", Help: "Best-effort collaborator failures that did not affect outcomes."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logout operations."},
	{ID: goSession.MetricSessionRestored, Name: "gosession_session_restored_total", Help: "Sessions restored at startup."},
	{ID: goSession.MetricSessionRestoreFailed, Name: "gosession_session_restore_failed_total", Help: "Startup restore attempts that resolved to unauthenticated."},
}

// HistogramDefs is an exported constant or variable used by the session orchestrator.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricLoginLatency, Name: "gosession_login_latency_seconds", Help: "Login pipeline latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session orchestrator.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session orchestrator.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

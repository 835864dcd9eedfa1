// Package goSession provides client-side authentication session orchestration:
// a single Login pipeline that composes a rate limiter, an account lockout
// tracker, a credential authenticator, and a device fingerprint/trust service
// with a fixed ordering and short-circuiting failure policy, plus a small
// observable session state machine for UI layers.
//
// The package is designed for a single logical principal per Orchestrator
// instance: construct one Orchestrator at application start through
// [Builder.Build], keep it for the process lifetime, and tear it down with
// [Orchestrator.Close] at shutdown. Orchestrator methods are safe to call from
// multiple goroutines; concurrent Login calls are single-flighted.
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Orchestrator], [Builder],
// [Config], the [SessionState] union, and the collaborator interfaces
// ([RateLimiter], [LockoutTracker], [Fingerprinter], [Authenticator],
// [TokenStore]). Redis-backed default collaborators live under internal/ and
// device/; backend authenticator implementations live in httpauth/ and
// localauth/.
//
// # Failure policy
//
// Failures before authentication (rate limit, lockout, bad credentials) are
// fatal to the attempt and end in an AuthError state carrying one
// human-readable message. Failures after authentication succeeded (lockout
// clear, rate-limit bookkeeping, device trust, token persistence) are logged
// and never override the successful outcome. This asymmetry is contractual.
package goSession

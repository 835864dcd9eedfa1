package goSession

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginRateLimited is an exported constant or variable used by the session orchestrator.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRegisterRateLimited is an exported constant or variable used by the session orchestrator.
	ErrRegisterRateLimited = errors.New("registration rate limited")
	// ErrAccountLocked is an exported constant or variable used by the session orchestrator.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidCredentials is an exported constant or variable used by the session orchestrator.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is an exported constant or variable used by the session orchestrator.
	ErrAccountExists = errors.New("account already exists")
	// ErrAuthenticationFailed is an exported constant or variable used by the session orchestrator.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrTwoFactorInvalid is an exported constant or variable used by the session orchestrator.
	ErrTwoFactorInvalid = errors.New("invalid two-factor code")
	// ErrNoPendingTwoFactor is an exported constant or variable used by the session orchestrator.
	ErrNoPendingTwoFactor = errors.New("no pending two-factor challenge")
	// ErrAlreadyAuthenticated is an exported constant or variable used by the session orchestrator.
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
	// ErrNoStoredSession is an exported constant or variable used by the session orchestrator.
	ErrNoStoredSession = errors.New("no stored session")
	// ErrOrchestratorClosed is an exported constant or variable used by the session orchestrator.
	ErrOrchestratorClosed = errors.New("orchestrator closed")
	// ErrRedisRequired is an exported constant or variable used by the session orchestrator.
	ErrRedisRequired = errors.New("redis client required for default collaborators")
)

// Display-ready fallback messages. Raw collaborator errors never reach the
// state machine; unclassified failures surface one of these instead.
const (
	msgRateLimited   = "Too many requests. Please try again later."
	msgLoginFailed   = "Login failed. Please try again."
	msgRegisterFail  = "Registration failed. Please try again."
	msgTwoFactorFail = "Two-factor verification failed. Please try again."
)

// TwoFactorRequiredError signals that credentials were accepted but a second
// factor must be confirmed before tokens are issued. It is a control signal,
// not a failure: the session returns to Unauthenticated and never enters
// AuthError on this path.
type TwoFactorRequiredError struct {
	ChallengeID string
	Method      string
}

// Error describes the error operation and its observable behavior.
func (e *TwoFactorRequiredError) Error() string {
	return fmt.Sprintf("two-factor verification required (method %s)", e.Method)
}

// CredentialError wraps a classification sentinel with the display-ready
// message the authenticator produced, so the orchestrator can surface the
// backend's wording verbatim while callers still match with errors.Is.
type CredentialError struct {
	Message string
	Reason  error
}

// Error describes the error operation and its observable behavior.
func (e *CredentialError) Error() string {
	return e.Message
}

// Unwrap describes the unwrap operation and its observable behavior.
func (e *CredentialError) Unwrap() error {
	return e.Reason
}

// displayMessage extracts the one human-readable message a fatal login
// failure carries, falling back to a generic message for anything the error
// taxonomy does not classify.
func displayMessage(err error, fallback string) string {
	var ce *CredentialError
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	switch {
	case errors.Is(err, ErrLoginRateLimited), errors.Is(err, ErrRegisterRateLimited):
		return msgRateLimited
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrAccountExists):
		return "An account with this email already exists."
	case errors.Is(err, ErrTwoFactorInvalid):
		return msgTwoFactorFail
	}
	return fallback
}

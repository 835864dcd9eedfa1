package goSession

import "fmt"

// Phase identifies the active variant of a [SessionState].
type Phase uint8

const (
	// PhaseUnauthenticated is the initial state and the state after logout.
	PhaseUnauthenticated Phase = iota
	// PhaseAuthenticating is the transient in-flight state during Login.
	PhaseAuthenticating
	// PhaseAuthenticated is the terminal success state.
	PhaseAuthenticated
	// PhaseAuthError is the terminal failure state. It is re-enterable:
	// a retried Login transitions back to PhaseAuthenticating.
	PhaseAuthError
)

// String describes the string operation and its observable behavior.
func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAuthError:
		return "auth_error"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// SessionState is an immutable snapshot of the session state machine. Exactly
// one variant is current at any time; construct values only through
// [Unauthenticated], [Authenticating], [Authenticated], and [AuthError].
//
// SessionState instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionState struct {
	phase        Phase
	user         *User
	accessToken  string
	refreshToken string
	message      string
}

// Unauthenticated returns the no-session variant.
func Unauthenticated() SessionState {
	return SessionState{phase: PhaseUnauthenticated}
}

// Authenticating returns the transient in-flight variant.
func Authenticating() SessionState {
	return SessionState{phase: PhaseAuthenticating}
}

// Authenticated returns the terminal success variant carrying the user and
// the backend-issued tokens. The refresh token may be empty.
func Authenticated(user *User, accessToken, refreshToken string) SessionState {
	return SessionState{
		phase:        PhaseAuthenticated,
		user:         user,
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
}

// AuthError returns the terminal failure variant carrying one human-readable
// message suitable for direct display.
func AuthError(message string) SessionState {
	return SessionState{phase: PhaseAuthError, message: message}
}

// Phase reports which variant is current.
func (s SessionState) Phase() Phase {
	return s.phase
}

// User returns the authenticated user, or nil outside PhaseAuthenticated.
func (s SessionState) User() *User {
	return s.user
}

// AccessToken returns the access token, or "" outside PhaseAuthenticated.
func (s SessionState) AccessToken() string {
	return s.accessToken
}

// RefreshToken returns the refresh token, or "" when absent.
func (s SessionState) RefreshToken() string {
	return s.refreshToken
}

// Message returns the display message, or "" outside PhaseAuthError.
func (s SessionState) Message() string {
	return s.message
}

// Terminal reports whether the state is one the UI expects no further
// automatic transition from (everything except PhaseAuthenticating).
func (s SessionState) Terminal() bool {
	return s.phase != PhaseAuthenticating
}

// String describes the string operation and its observable behavior.
func (s SessionState) String() string {
	switch s.phase {
	case PhaseAuthenticated:
		if s.user != nil {
			return "authenticated(" + s.user.ID + ")"
		}
		return "authenticated"
	case PhaseAuthError:
		return "auth_error(" + s.message + ")"
	default:
		return s.phase.String()
	}
}

// StateVisitor is the exhaustive-match contract for the [SessionState] closed
// union. Implementing the interface forces a case for every variant, so
// adding a variant breaks all visitors at compile time instead of silently
// falling through.
type StateVisitor interface {
	VisitUnauthenticated()
	VisitAuthenticating()
	VisitAuthenticated(user *User, accessToken, refreshToken string)
	VisitAuthError(message string)
}

// Match dispatches to exactly one visitor method for the current variant.
func (s SessionState) Match(v StateVisitor) {
	switch s.phase {
	case PhaseAuthenticating:
		v.VisitAuthenticating()
	case PhaseAuthenticated:
		v.VisitAuthenticated(s.user, s.accessToken, s.refreshToken)
	case PhaseAuthError:
		v.VisitAuthError(s.message)
	default:
		v.VisitUnauthenticated()
	}
}

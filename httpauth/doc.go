// Package httpauth implements the orchestrator's Authenticator boundary over
// a remote identity backend's JSON API. HTTP status codes are mapped onto
// the session error taxonomy; backend-provided detail messages are passed
// through verbatim so the UI shows the backend's wording.
package httpauth

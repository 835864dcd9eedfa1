// Package audit implements the asynchronous audit event pipeline used by the
// session orchestrator: a canonical event model, pluggable sinks, and a
// non-blocking dispatcher with a bounded buffer.
package audit

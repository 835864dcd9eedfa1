package goSession

import (
	"context"
	"errors"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
)

// AuditEvent is one entry in the orchestrator's audit trail.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the orchestrator's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// io.Writer, one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventLoginLockedOut       = "login_locked_out"
	auditEventTwoFactorRequired    = "two_factor_required"
	auditEventTwoFactorSuccess     = "two_factor_success"
	auditEventTwoFactorFailure     = "two_factor_failure"
	auditEventRegisterSuccess      = "register_success"
	auditEventRegisterFailure      = "register_failure"
	auditEventRegisterRateLimited  = "register_rate_limited"
	auditEventDeviceTrusted        = "device_trusted"
	auditEventDeviceVerification   = "device_verification"
	auditEventLogout               = "logout"
	auditEventSessionRestored      = "session_restored"
	auditEventSessionRestoreFailed = "session_restore_failed"
)

// AuditErrorCode defines a public type used by goSession APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrTwoFactorRequired  AuditErrorCode = "two_factor_required"
	auditErrTwoFactorInvalid   AuditErrorCode = "two_factor_invalid"
	auditErrNoPendingChallenge AuditErrorCode = "no_pending_challenge"
	auditErrNoStoredSession    AuditErrorCode = "no_stored_session"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (o *Orchestrator) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	identifier string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if o == nil || o.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		UserID:     userID,
		Identifier: identifier,
		DeviceID:   deviceIDFromContext(ctx),
		IP:         clientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	o.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var tfr *TwoFactorRequiredError
	if errors.As(err, &tfr) {
		return auditErrTwoFactorRequired
	}

	switch {
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRegisterRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrTwoFactorInvalid):
		return auditErrTwoFactorInvalid
	case errors.Is(err, ErrNoPendingTwoFactor):
		return auditErrNoPendingChallenge
	case errors.Is(err, ErrNoStoredSession):
		return auditErrNoStoredSession
	default:
		return auditErrInternal
	}
}

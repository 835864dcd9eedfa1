package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/device"
	"github.com/MrEthical07/goSession/internal/rate"
)

// User is the immutable identity record returned by an [Authenticator].
// A profile change replaces the whole value; nothing mutates a User in place.
type User struct {
	ID                 string
	Email              string
	Name               string
	FirstName          string
	LastName           string
	IsEmailVerified    bool
	IsTwoFactorEnabled bool
	Roles              []string
	Permissions        []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastLoginAt        *time.Time
}

// Clone returns a deep copy so that callers can hold a User across
// transitions without aliasing the orchestrator's value.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Roles = append([]string(nil), u.Roles...)
	out.Permissions = append([]string(nil), u.Permissions...)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		out.LastLoginAt = &t
	}
	return &out
}

// HasRole describes the hasrole operation and its observable behavior.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission describes the haspermission operation and its observable behavior.
func (u *User) HasPermission(perm string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// RateLimitResult is the allow/deny decision returned by [RateLimiter.Check].
type RateLimitResult = rate.Result

// DeviceFingerprint is the per-attempt device identity generated by a
// [Fingerprinter].
type DeviceFingerprint = device.Fingerprint

// LoginResult is the successful outcome of an [Authenticator] call: the
// authenticated user plus the backend-issued token pair.
type LoginResult struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

// RegisterRequest is the input for [Orchestrator.Register].
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RateLimiter gates login and registration attempts per endpoint+client key.
// Check counts the attempt and decides; RecordSuccess resets the counter
// after a successful authentication.
type RateLimiter interface {
	Check(ctx context.Context, endpoint, clientID string, metadata map[string]string) (RateLimitResult, error)
	RecordSuccess(ctx context.Context, endpoint, clientID string, metadata map[string]string) error
}

// LockoutTracker tracks persistent failed-attempt counters per identifier and
// locks an identifier for a cooldown window once a threshold is reached.
// Recording failures is the authenticating backend's responsibility, not the
// orchestrator's; the orchestrator only reads lock state and clears counters
// after success.
type LockoutTracker interface {
	IsLocked(ctx context.Context, identifier string) (bool, error)
	RemainingLockout(ctx context.Context, identifier string) (time.Duration, error)
	ClearFailedAttempts(ctx context.Context, identifier string) error
}

// Fingerprinter derives the current device's fingerprint and manages its
// trust association. Generate establishes the "current" fingerprint that the
// other three methods operate on.
type Fingerprinter interface {
	Generate(ctx context.Context) (*DeviceFingerprint, error)
	IsTrusted(ctx context.Context, userID string) (bool, error)
	Trust(ctx context.Context, userID, customName string) (bool, error)
	RecordVerification(ctx context.Context) error
}

// Authenticator verifies credentials against the backing identity system.
// Login returns [ErrInvalidCredentials]-classified errors with display-ready
// messages, or a [TwoFactorRequiredError] when a second factor must be
// confirmed before tokens are issued.
type Authenticator interface {
	Login(ctx context.Context, identifier, credential string) (*LoginResult, error)
	Register(ctx context.Context, req RegisterRequest) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
	VerifyTwoFactor(ctx context.Context, challengeID, code string) (*LoginResult, error)
	Logout(ctx context.Context, accessToken string) error
}

// StoredSession is the persisted session blob: the token pair plus a user
// snapshot, enough to restore a session at application start without a
// network round-trip.
type StoredSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         User   `json:"user"`
	SavedAt      int64  `json:"saved_at"`
}

// TokenStore persists at most one [StoredSession] per orchestrator instance.
// Load returns (nil, nil) when nothing is stored.
type TokenStore interface {
	Save(ctx context.Context, sess *StoredSession) error
	Load(ctx context.Context) (*StoredSession, error)
	Clear(ctx context.Context) error
}

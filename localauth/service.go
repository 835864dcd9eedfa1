package localauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
)

// FailureRecorder receives failed credential checks so a lockout backend can
// count them. The session orchestrator only reads lock state; counting is
// the authenticator's job.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, identifier string) (bool, error)
}

// Config defines a public type used by goSession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	// Notify delivers a two-factor code to the user out of band. Required
	// when any account has two-factor enabled.
	Notify func(email, code string)

	Password password.Config

	// FailureRecorder is optional; when set, failed credential checks are
	// reported to it.
	FailureRecorder FailureRecorder
}

// Service is an in-process implementation of the orchestrator's
// Authenticator boundary.
//
// Service instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Service struct {
	config     Config
	provider   UserProvider
	hasher     *password.Hasher
	challenges *challengeStore

	mu      sync.Mutex
	revoked map[string]time.Time
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
func New(provider UserProvider, cfg Config) (*Service, error) {
	if provider == nil {
		return nil, errors.New("user provider is required")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "localauth"
	}

	pwCfg := cfg.Password
	if pwCfg == (password.Config{}) {
		pwCfg = password.DefaultConfig()
	}
	hasher, err := password.New(pwCfg)
	if err != nil {
		return nil, err
	}

	return &Service{
		config:     cfg,
		provider:   provider,
		hasher:     hasher,
		challenges: newChallengeStore(cfg.ChallengeTTL, cfg.ChallengeMaxAttempts),
		revoked:    make(map[string]time.Time),
	}, nil
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
func (s *Service) Login(ctx context.Context, identifier, credential string) (*goSession.LoginResult, error) {
	rec, err := s.provider.FindByEmail(ctx, identifier)
	if errors.Is(err, ErrNotFound) {
		s.recordFailure(ctx, identifier)
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	ok, err := s.hasher.Verify(credential, rec.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("credential check: %w", err)
	}
	if !ok {
		s.recordFailure(ctx, identifier)
		return nil, invalidCredentials()
	}

	if rec.TwoFactorEnabled {
		c, err := s.challenges.create(rec.Email)
		if err != nil {
			return nil, fmt.Errorf("issue two-factor challenge: %w", err)
		}
		if s.config.Notify != nil {
			s.config.Notify(rec.Email, c.code)
		}
		return nil, &goSession.TwoFactorRequiredError{ChallengeID: c.id, Method: "email"}
	}

	return s.issue(ctx, rec)
}

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
func (s *Service) Register(ctx context.Context, req goSession.RegisterRequest) (*goSession.LoginResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, &goSession.CredentialError{
			Message: "Please enter a valid email address.",
			Reason:  goSession.ErrInvalidCredentials,
		}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, &goSession.CredentialError{
			Message: "Password does not meet the minimum requirements.",
			Reason:  goSession.ErrInvalidCredentials,
		}
	}

	now := time.Now().UTC()
	rec := &Record{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
		Roles:        []string{"user"},
	}

	if err := s.provider.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, &goSession.CredentialError{
				Message: "An account with this email already exists.",
				Reason:  goSession.ErrAccountExists,
			}
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	return s.issue(ctx, rec)
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*goSession.LoginResult, error) {
	claims, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, invalidCredentials()
	}

	rec, err := s.provider.FindByEmail(ctx, claims.Email)
	if err != nil {
		return nil, invalidCredentials()
	}

	return s.issue(ctx, rec)
}

// VerifyTwoFactor describes the verifytwofactor operation and its observable behavior.
//
// VerifyTwoFactor may return an error when input validation, dependency calls, or security checks fail.
func (s *Service) VerifyTwoFactor(ctx context.Context, challengeID, code string) (*goSession.LoginResult, error) {
	ok, gone, email := s.challenges.verify(challengeID, code)
	if !ok {
		if gone {
			return nil, errors.New("two-factor challenge expired")
		}
		return nil, &goSession.CredentialError{
			Message: "Invalid verification code.",
			Reason:  goSession.ErrTwoFactorInvalid,
		}
	}

	rec, err := s.provider.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	return s.issue(ctx, rec)
}

// Logout revokes the access token until its natural expiry. Unknown or
// malformed tokens are ignored; logout is idempotent.
func (s *Service) Logout(_ context.Context, accessToken string) error {
	claims, err := s.parseToken(accessToken, tokenTypeAccess)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	if claims.ExpiresAt != nil {
		s.revoked[claims.ID] = claims.ExpiresAt.Time
	}
	return nil
}

// IsRevoked reports whether an access token has been logged out before its
// expiry.
func (s *Service) IsRevoked(accessToken string) bool {
	claims, err := s.parseToken(accessToken, tokenTypeAccess)
	if err != nil {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, revoked := s.revoked[claims.ID]
	return revoked
}

func (s *Service) issue(ctx context.Context, rec *Record) (*goSession.LoginResult, error) {
	access, err := s.issueToken(rec.Email, rec.ID, tokenTypeAccess, s.config.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issueToken(rec.Email, rec.ID, tokenTypeRefresh, s.config.RefreshTTL)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec.LastLoginAt = &now
	rec.UpdatedAt = now
	// Login bookkeeping; a provider that cannot persist it does not fail
	// the login.
	_ = s.provider.Update(ctx, rec)

	return &goSession.LoginResult{
		User:         toUser(rec),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *Service) recordFailure(ctx context.Context, identifier string) {
	if s.config.FailureRecorder == nil {
		return
	}
	_, _ = s.config.FailureRecorder.RecordFailure(ctx, identifier)
}

func invalidCredentials() error {
	return &goSession.CredentialError{
		Message: "Invalid email or password.",
		Reason:  goSession.ErrInvalidCredentials,
	}
}

func toUser(rec *Record) *goSession.User {
	u := &goSession.User{
		ID:                 rec.ID,
		Email:              rec.Email,
		FirstName:          rec.FirstName,
		LastName:           rec.LastName,
		Name:               strings.TrimSpace(rec.FirstName + " " + rec.LastName),
		IsEmailVerified:    rec.EmailVerified,
		IsTwoFactorEnabled: rec.TwoFactorEnabled,
		Roles:              append([]string(nil), rec.Roles...),
		Permissions:        append([]string(nil), rec.Permissions...),
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
	if rec.LastLoginAt != nil {
		t := *rec.LastLoginAt
		u.LastLoginAt = &t
	}
	return u
}

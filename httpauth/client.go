package httpauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

const (
	pathLogin           = "/api/v1/auth/login"
	pathRegister        = "/api/v1/auth/register"
	pathRefresh         = "/api/v1/auth/refresh"
	pathLogout          = "/api/v1/auth/logout"
	pathTwoFactorVerify = "/api/v1/auth/2fa/verify"
)

// maxErrorBody bounds how much of an error response is read for its detail
// message.
const maxErrorBody = 64 << 10

// Config defines a public type used by goSession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	BaseURL string
	// HTTPClient is optional; a 10s-timeout client is used when nil.
	HTTPClient *http.Client
	// UserAgent is sent on every request when non-empty.
	UserAgent string
}

// Client is an [goSession.Authenticator] speaking the identity backend's
// JSON API.
//
// Client instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("base URL is required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL:   base,
		http:      hc,
		userAgent: cfg.UserAgent,
	}, nil
}

type userPayload struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	IsEmailVerified    bool       `json:"is_email_verified"`
	IsTwoFactorEnabled bool       `json:"is_two_factor_enabled"`
	Roles              []string   `json:"roles"`
	Permissions        []string   `json:"permissions"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         userPayload `json:"user"`
}

type errorResponse struct {
	Detail      string `json:"detail"`
	ChallengeID string `json:"challenge_id,omitempty"`
	Method      string `json:"method,omitempty"`
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
func (c *Client) Login(ctx context.Context, identifier, credential string) (*goSession.LoginResult, error) {
	body := map[string]string{"email": identifier, "password": credential}
	return c.tokenCall(ctx, pathLogin, body)
}

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
func (c *Client) Register(ctx context.Context, req goSession.RegisterRequest) (*goSession.LoginResult, error) {
	body := map[string]string{
		"email":      req.Email,
		"password":   req.Password,
		"first_name": req.FirstName,
		"last_name":  req.LastName,
	}
	return c.tokenCall(ctx, pathRegister, body)
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*goSession.LoginResult, error) {
	body := map[string]string{"refresh_token": refreshToken}
	return c.tokenCall(ctx, pathRefresh, body)
}

// VerifyTwoFactor describes the verifytwofactor operation and its observable behavior.
//
// VerifyTwoFactor may return an error when input validation, dependency calls, or security checks fail.
func (c *Client) VerifyTwoFactor(ctx context.Context, challengeID, code string) (*goSession.LoginResult, error) {
	body := map[string]string{"challenge_id": challengeID, "code": code}
	return c.tokenCall(ctx, pathTwoFactorVerify, body)
}

// Logout revokes the backend session for the access token. A 401 means the
// session is already gone and is treated as success.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	req, err := c.newRequest(ctx, pathLogout, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode == http.StatusOK ||
		resp.StatusCode == http.StatusNoContent ||
		resp.StatusCode == http.StatusUnauthorized {
		return nil
	}
	return fmt.Errorf("logout: backend returned %d", resp.StatusCode)
}

func (c *Client) tokenCall(ctx context.Context, path string, body any) (*goSession.LoginResult, error) {
	req, err := c.newRequest(ctx, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.mapError(path, resp)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode backend response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("backend response missing access token")
	}

	return &goSession.LoginResult{
		User:         toUser(tr.User),
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// mapError converts a non-2xx backend response into the session error
// taxonomy, carrying the backend's detail message verbatim when present.
func (c *Client) mapError(path string, resp *http.Response) error {
	var er errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&er)

	switch resp.StatusCode {
	case http.StatusPreconditionRequired:
		return &goSession.TwoFactorRequiredError{
			ChallengeID: er.ChallengeID,
			Method:      er.Method,
		}
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity, http.StatusBadRequest:
		reason := goSession.ErrInvalidCredentials
		if path == pathTwoFactorVerify {
			reason = goSession.ErrTwoFactorInvalid
		}
		return &goSession.CredentialError{
			Message: detailOr(er.Detail, "Invalid email or password."),
			Reason:  reason,
		}
	case http.StatusConflict:
		return &goSession.CredentialError{
			Message: detailOr(er.Detail, "An account with this email already exists."),
			Reason:  goSession.ErrAccountExists,
		}
	case http.StatusTooManyRequests:
		return &goSession.CredentialError{
			Message: detailOr(er.Detail, "Too many requests. Please try again later."),
			Reason:  goSession.ErrLoginRateLimited,
		}
	default:
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}
}

func detailOr(detail, fallback string) string {
	if detail != "" {
		return detail
	}
	return fallback
}

func toUser(p userPayload) *goSession.User {
	name := p.Name
	if name == "" {
		name = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	return &goSession.User{
		ID:                 p.ID,
		Email:              p.Email,
		Name:               name,
		FirstName:          p.FirstName,
		LastName:           p.LastName,
		IsEmailVerified:    p.IsEmailVerified,
		IsTwoFactorEnabled: p.IsTwoFactorEnabled,
		Roles:              p.Roles,
		Permissions:        p.Permissions,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
		LastLoginAt:        p.LastLoginAt,
	}
}

func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxErrorBody))
	_ = rc.Close()
}

package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed indicates the token could not be parsed at all.
	ErrMalformed = errors.New("malformed token")
	// ErrNoExpiry indicates the token carries no exp claim.
	ErrNoExpiry = errors.New("token has no expiry")
)

// Claims is the subset of registered claims the session layer cares about.
type Claims struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Inspect parses the token without signature verification and returns its
// registered claims. Absent time claims are zero values.
func Inspect(token string) (Claims, error) {
	parser := jwt.NewParser()

	var rc jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(token, &rc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := Claims{
		Subject: rc.Subject,
		Issuer:  rc.Issuer,
	}
	if rc.ExpiresAt != nil {
		out.ExpiresAt = rc.ExpiresAt.Time
	}
	if rc.IssuedAt != nil {
		out.IssuedAt = rc.IssuedAt.Time
	}
	return out, nil
}

// ExpiresAt returns the token's expiry. Tokens without an exp claim return
// [ErrNoExpiry].
func ExpiresAt(token string) (time.Time, error) {
	claims, err := Inspect(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt.IsZero() {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt, nil
}

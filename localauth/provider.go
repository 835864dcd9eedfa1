package localauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound indicates the identifier has no account.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate indicates the identifier is already taken.
	ErrDuplicate = errors.New("duplicate identifier")
)

// Record is the stored account shape a [UserProvider] persists.
type Record struct {
	ID               string
	Email            string
	PasswordHash     string
	FirstName        string
	LastName         string
	EmailVerified    bool
	TwoFactorEnabled bool
	Roles            []string
	Permissions      []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastLoginAt      *time.Time
}

// UserProvider is the persistence boundary for local accounts. Lookups are
// case-insensitive on email.
type UserProvider interface {
	FindByEmail(ctx context.Context, email string) (*Record, error)
	Create(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record) error
}

// MemoryProvider is a map-backed [UserProvider] for tests and demos.
type MemoryProvider struct {
	mu    sync.RWMutex
	users map[string]*Record
}

// NewMemoryProvider describes the newmemoryprovider operation and its observable behavior.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{users: make(map[string]*Record)}
}

// FindByEmail describes the findbyemail operation and its observable behavior.
//
// FindByEmail may return an error when input validation, dependency calls, or security checks fail.
func (p *MemoryProvider) FindByEmail(_ context.Context, email string) (*Record, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.users[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
func (p *MemoryProvider) Create(_ context.Context, rec *Record) error {
	key := normalizeEmail(rec.Email)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.users[key]; ok {
		return ErrDuplicate
	}
	cp := *rec
	p.users[key] = &cp
	return nil
}

// Update describes the update operation and its observable behavior.
//
// Update may return an error when input validation, dependency calls, or security checks fail.
func (p *MemoryProvider) Update(_ context.Context, rec *Record) error {
	key := normalizeEmail(rec.Email)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.users[key]; !ok {
		return ErrNotFound
	}
	cp := *rec
	p.users[key] = &cp
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

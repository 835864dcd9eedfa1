package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrTrustUnavailable indicates the trust store backend is unreachable.
	ErrTrustUnavailable = errors.New("device trust store unavailable")
	// ErrNoFingerprint indicates no fingerprint has been generated yet.
	ErrNoFingerprint = errors.New("no current fingerprint")
)

// Config holds trust store tuning parameters.
type Config struct {
	TrustTTL   time.Duration
	MaxTrusted int
	Prefix     string
}

// TrustedDevice is one entry in a user's trusted device list.
type TrustedDevice struct {
	FingerprintID  string    `json:"fingerprint_id"`
	DeviceID       string    `json:"device_id"`
	Name           string    `json:"name"`
	Model          string    `json:"model"`
	Platform       string    `json:"platform"`
	TrustedAt      time.Time `json:"trusted_at"`
	LastVerifiedAt time.Time `json:"last_verified_at"`
	VerifyCount    int       `json:"verify_count"`
}

// Service derives the current device's fingerprint and manages its trust
// association per user. Generate establishes the "current" fingerprint the
// trust operations act on; IsTrusted additionally remembers the user the
// check ran for, so RecordVerification needs no arguments.
type Service struct {
	redis  redis.UniversalClient
	config Config
	attrs  AttributeFunc
	now    func() time.Time

	mu         sync.Mutex
	current    *Fingerprint
	lastUserID string
}

// NewService creates a device [Service] backed by the given Redis client.
func NewService(redisClient redis.UniversalClient, cfg Config, attrs AttributeFunc) *Service {
	if cfg.Prefix == "" {
		cfg.Prefix = "gs:dev"
	}
	if attrs == nil {
		attrs = func(context.Context) Attributes { return Attributes{} }
	}
	return &Service{
		redis:  redisClient,
		config: cfg,
		attrs:  attrs,
		now:    time.Now,
	}
}

func (s *Service) trustKey(userID string) string {
	return s.config.Prefix + ":trust:" + userID
}

// Generate derives a fresh fingerprint from the current attributes and makes
// it the service's current fingerprint. The previously minted device ID is
// reused when the attributes carry none, keeping the ID install-scoped.
func (s *Service) Generate(ctx context.Context) (*Fingerprint, error) {
	attrs := s.attrs(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if attrs.DeviceID == "" && s.current != nil {
		attrs.DeviceID = s.current.DeviceID
	}

	fp := derive(attrs, s.now().UTC())
	s.current = fp

	cp := *fp
	return &cp, nil
}

// Current returns the fingerprint from the latest Generate call, or an error
// when none has been generated yet.
func (s *Service) Current() (*Fingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, ErrNoFingerprint
	}
	cp := *s.current
	return &cp, nil
}

// IsTrusted reports whether the current fingerprint is in the user's trusted
// set. The user is remembered for a subsequent RecordVerification.
func (s *Service) IsTrusted(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	fp := s.current
	s.lastUserID = userID
	s.mu.Unlock()

	if fp == nil {
		return false, ErrNoFingerprint
	}

	_, err := s.redis.HGet(ctx, s.trustKey(userID), fp.FingerprintID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTrustUnavailable, err)
	}
	return true, nil
}

// Trust adds the current fingerprint to the user's trusted set under the
// given display name. When the set is full, the oldest entry is evicted.
// Returns true when a new entry was written.
func (s *Service) Trust(ctx context.Context, userID, customName string) (bool, error) {
	s.mu.Lock()
	fp := s.current
	s.mu.Unlock()

	if fp == nil {
		return false, ErrNoFingerprint
	}

	key := s.trustKey(userID)

	devices, err := s.load(ctx, key)
	if err != nil {
		return false, err
	}
	if _, ok := devices[fp.FingerprintID]; ok {
		return false, nil
	}

	if len(devices) >= s.config.MaxTrusted {
		if oldest := oldestFingerprint(devices); oldest != "" {
			if err := s.redis.HDel(ctx, key, oldest).Err(); err != nil {
				return false, fmt.Errorf("%w: %v", ErrTrustUnavailable, err)
			}
		}
	}

	now := s.now().UTC()
	entry := TrustedDevice{
		FingerprintID:  fp.FingerprintID,
		DeviceID:       fp.DeviceID,
		Name:           customName,
		Model:          fp.DeviceModel,
		Platform:       fp.Platform,
		TrustedAt:      now,
		LastVerifiedAt: now,
		VerifyCount:    1,
	}
	if entry.Name == "" {
		entry.Name = fp.DeviceName
	}

	if err := s.store(ctx, key, entry); err != nil {
		return false, err
	}
	if s.config.TrustTTL > 0 {
		if err := s.redis.Expire(ctx, key, s.config.TrustTTL).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrTrustUnavailable, err)
		}
	}
	return true, nil
}

// RecordVerification bumps the verification bookkeeping for the current
// fingerprint on the user from the latest IsTrusted call.
func (s *Service) RecordVerification(ctx context.Context) error {
	s.mu.Lock()
	fp := s.current
	userID := s.lastUserID
	s.mu.Unlock()

	if fp == nil {
		return ErrNoFingerprint
	}
	if userID == "" {
		return errors.New("no user for verification")
	}

	key := s.trustKey(userID)

	raw, err := s.redis.HGet(ctx, key, fp.FingerprintID).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTrustUnavailable, err)
	}

	var entry TrustedDevice
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return fmt.Errorf("decode trusted device: %w", err)
	}

	entry.LastVerifiedAt = s.now().UTC()
	entry.VerifyCount++
	return s.store(ctx, key, entry)
}

// Devices lists the user's trusted devices, newest trust first.
func (s *Service) Devices(ctx context.Context, userID string) ([]TrustedDevice, error) {
	devices, err := s.load(ctx, s.trustKey(userID))
	if err != nil {
		return nil, err
	}

	out := make([]TrustedDevice, 0, len(devices))
	for _, d := range devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TrustedAt.After(out[j].TrustedAt)
	})
	return out, nil
}

// Revoke removes one fingerprint from the user's trusted set.
func (s *Service) Revoke(ctx context.Context, userID, fingerprintID string) error {
	if err := s.redis.HDel(ctx, s.trustKey(userID), fingerprintID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTrustUnavailable, err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, key string) (map[string]TrustedDevice, error) {
	raw, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrustUnavailable, err)
	}

	out := make(map[string]TrustedDevice, len(raw))
	for field, val := range raw {
		var entry TrustedDevice
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			// Skip unreadable entries rather than failing the whole set.
			continue
		}
		out[field] = entry
	}
	return out, nil
}

func (s *Service) store(ctx context.Context, key string, entry TrustedDevice) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode trusted device: %w", err)
	}
	if err := s.redis.HSet(ctx, key, entry.FingerprintID, data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTrustUnavailable, err)
	}
	return nil
}

func oldestFingerprint(devices map[string]TrustedDevice) string {
	var (
		oldest   string
		oldestAt time.Time
	)
	for id, d := range devices {
		if oldest == "" || d.TrustedAt.Before(oldestAt) {
			oldest = id
			oldestAt = d.TrustedAt
		}
	}
	return oldest
}

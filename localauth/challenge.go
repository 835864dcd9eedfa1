package localauth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

// challenge is one pending two-factor verification.
type challenge struct {
	id        string
	email     string
	code      string
	expiresAt time.Time
	attempts  int
}

// challengeStore holds pending two-factor challenges in memory. Challenges
// are single-use: a successful verification or exhausted attempts remove the
// entry.
type challengeStore struct {
	mu          sync.Mutex
	byID        map[string]*challenge
	ttl         time.Duration
	maxAttempts int
}

func newChallengeStore(ttl time.Duration, maxAttempts int) *challengeStore {
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &challengeStore{
		byID:        make(map[string]*challenge),
		ttl:         ttl,
		maxAttempts: maxAttempts,
	}
}

func (s *challengeStore) create(email string) (*challenge, error) {
	code, err := numericCode(6)
	if err != nil {
		return nil, err
	}

	c := &challenge{
		id:        uuid.NewString(),
		email:     email,
		code:      code,
		expiresAt: time.Now().Add(s.ttl),
	}

	s.mu.Lock()
	// One live challenge per email; reissuing invalidates the old one.
	for id, prev := range s.byID {
		if prev.email == email {
			delete(s.byID, id)
		}
	}
	s.byID[c.id] = c
	s.mu.Unlock()

	return c, nil
}

// verify consumes one attempt against the challenge. It reports whether the
// code matched and, separately, whether the challenge is now gone (expired,
// exhausted, or consumed by success).
func (s *challengeStore) verify(id, code string) (ok, gone bool, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, found := s.byID[id]
	if !found {
		return false, true, ""
	}
	if time.Now().After(c.expiresAt) {
		delete(s.byID, id)
		return false, true, ""
	}

	c.attempts++
	if subtle.ConstantTimeCompare([]byte(c.code), []byte(code)) == 1 {
		delete(s.byID, id)
		return true, true, c.email
	}
	if c.attempts >= s.maxAttempts {
		delete(s.byID, id)
		return false, true, ""
	}
	return false, false, ""
}

func numericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

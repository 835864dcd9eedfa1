package goSession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MemoryTokenStore is an in-process [TokenStore]. It is the default when no
// store is supplied to the builder; sessions do not survive process restarts.
type MemoryTokenStore struct {
	mu   sync.Mutex
	sess *StoredSession
}

// NewMemoryTokenStore describes the newmemorytokenstore operation and its observable behavior.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Save describes the save operation and its observable behavior.
func (s *MemoryTokenStore) Save(_ context.Context, sess *StoredSession) error {
	if sess == nil {
		return errors.New("nil session")
	}
	cp := *sess
	cp.User = *sess.User.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = &cp
	return nil
}

// Load describes the load operation and its observable behavior.
func (s *MemoryTokenStore) Load(_ context.Context) (*StoredSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return nil, nil
	}
	cp := *s.sess
	cp.User = *s.sess.User.Clone()
	return &cp, nil
}

// Clear describes the clear operation and its observable behavior.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	return nil
}

// RedisTokenStore persists the session blob in redis under a single key, so a
// session can be restored across process restarts. One orchestrator instance
// owns one key.
type RedisTokenStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisTokenStore describes the newredistokenstore operation and its observable behavior.
//
// NewRedisTokenStore may return an error when input validation, dependency calls, or security checks fail.
func NewRedisTokenStore(client redis.UniversalClient, prefix string) (*RedisTokenStore, error) {
	if client == nil {
		return nil, ErrRedisRequired
	}
	if prefix == "" {
		prefix = "gs:sess"
	}
	return &RedisTokenStore{
		client: client,
		key:    prefix + ":current",
	}, nil
}

// Save describes the save operation and its observable behavior.
func (s *RedisTokenStore) Save(ctx context.Context, sess *StoredSession) error {
	if sess == nil {
		return errors.New("nil session")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Load describes the load operation and its observable behavior.
func (s *RedisTokenStore) Load(ctx context.Context) (*StoredSession, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess StoredSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Clear describes the clear operation and its observable behavior.
func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

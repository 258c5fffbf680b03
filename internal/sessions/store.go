package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/fruteria-pos/internal/cart"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/angelmondragon/fruteria-pos/pkg/redis"
)

// Store persists sale sessions between requests.
type Store interface {
	Get(ctx context.Context, id string) (*cart.Session, error)
	Save(ctx context.Context, session *cart.Session) error
	Delete(ctx context.Context, id string) error
}

func errSessionNotFound(id string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "sale session not found").
		WithDetails(map[string]any{"session_id": id})
}

// MemoryStore keeps sessions in process memory as encoded payloads so callers
// never share a live *cart.Session.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*cart.Session, error) {
	s.mu.RLock()
	payload, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errSessionNotFound(id)
	}
	return decodeSession(payload)
}

func (s *MemoryStore) Save(ctx context.Context, session *cart.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode sale session")
	}
	s.mu.Lock()
	s.data[session.ID] = payload
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

type redisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartSessionKey(sessionID string) string
}

// RedisStore keeps sessions in Redis so several API replicas can serve one till.
type RedisStore struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed store. Sessions expire ttl after their last save.
func NewRedisStore(client redisClient, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*cart.Session, error) {
	payload, err := s.client.Get(ctx, s.client.CartSessionKey(id))
	if errors.Is(err, redis.ErrNil) {
		return nil, errSessionNotFound(id)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale session")
	}
	return decodeSession([]byte(payload))
}

func (s *RedisStore) Save(ctx context.Context, session *cart.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode sale session")
	}
	if err := s.client.Set(ctx, s.client.CartSessionKey(session.ID), payload, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store sale session")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.client.CartSessionKey(id)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete sale session")
	}
	return nil
}

func decodeSession(payload []byte) (*cart.Session, error) {
	var session cart.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode sale session")
	}
	return &session, nil
}

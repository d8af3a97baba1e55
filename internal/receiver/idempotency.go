package receiver

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore tracks processed batch ids
type IdempotencyStore interface {
	// MarkIfNew records id and reports whether it had not been seen before.
	MarkIfNew(ctx context.Context, id string) (bool, error)
	// Forget releases id so a retry of the same batch is processed again.
	Forget(ctx context.Context, id string) error
}

// MemoryStore is an in-process IdempotencyStore whose entries expire
// after ttl
type MemoryStore struct {
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryStore) MarkIfNew(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	if _, exists := s.seen[id]; exists {
		return false, nil
	}
	s.seen[id] = now
	return true, nil
}

func (s *MemoryStore) Forget(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.seen, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of tracked ids
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, at := range s.seen {
		if now.Sub(at) >= s.ttl {
			delete(s.seen, id)
		}
	}
}

// RedisStore shares duplicate tracking between receiver instances
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore keeps ids under prefix for ttl
func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "sentinel:batch:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) MarkIfNew(ctx context.Context, id string) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+id, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
}

func (s *RedisStore) Forget(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.prefix+id).Err()
}

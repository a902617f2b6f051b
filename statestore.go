package authflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStateStore is the Redis-backed [StateStore]. It is the production
// implementation: records written here survive process restarts, which is
// what makes the cooldown authoritative across reloads.
type RedisStateStore struct {
	redis redis.UniversalClient
}

// NewRedisStateStore creates a [RedisStateStore] on top of the given client.
func NewRedisStateStore(client redis.UniversalClient) *RedisStateStore {
	return &RedisStateStore{redis: client}
}

// Get describes the get operation and its observable behavior.
//
// Get may return an error when input validation, dependency calls, or security checks fail.
// Get does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RedisStateStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStateStoreUnavailable, err)
	}
	return value, true, nil
}

// Set describes the set operation and its observable behavior.
//
// Set may return an error when input validation, dependency calls, or security checks fail.
// Set does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RedisStateStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStateStoreUnavailable, err)
	}
	return nil
}

// Delete describes the delete operation and its observable behavior.
//
// Delete may return an error when input validation, dependency calls, or security checks fail.
// Delete does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RedisStateStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStateStoreUnavailable, err)
	}
	return nil
}

type memoryRecord struct {
	value     string
	expiresAt time.Time
}

// MemoryStateStore is an in-process [StateStore] for tests and environments
// without Redis. State does not survive a restart, so the cross-reload
// cooldown guarantee holds only within one process lifetime.
type MemoryStateStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	now     func() time.Time
}

// NewMemoryStateStore creates an empty [MemoryStateStore].
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

// Get describes the get operation and its observable behavior.
func (s *MemoryStateStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return "", false, nil
	}
	if !record.expiresAt.IsZero() && !s.now().Before(record.expiresAt) {
		delete(s.records, key)
		return "", false, nil
	}
	return record.value, true, nil
}

// Set describes the set operation and its observable behavior.
func (s *MemoryStateStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := memoryRecord{value: value}
	if ttl > 0 {
		record.expiresAt = s.now().Add(ttl)
	}
	s.records[key] = record
	return nil
}

// Delete describes the delete operation and its observable behavior.
func (s *MemoryStateStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

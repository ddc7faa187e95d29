package memory

import (
	"context"
	"sync"
	"time"

	"github.com/iho/yieldledger/internal/usecase"
)

type idempotencyEntry struct {
	value   []byte
	expires time.Time
}

// IdempotencyStore implements usecase.IdempotencyStore for a single process.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
	now     func() time.Time
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		entries: make(map[string]idempotencyEntry),
		now:     time.Now,
	}
}

// CheckAndSet claims key or returns what is already stored under it.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		return true, append([]byte(nil), e.value...), nil
	}

	value := []byte(usecase.IdempotencyInFlight)
	if response != nil {
		value = append([]byte(nil), response...)
	}
	s.entries[key] = idempotencyEntry{value: value, expires: now.Add(ttl)}
	return false, nil, nil
}

// Update stores the final response for key.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = idempotencyEntry{value: append([]byte(nil), response...), expires: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Delete releases key.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

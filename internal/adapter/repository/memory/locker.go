package memory

import (
	"context"
	"sync"
	"time"
)

// Locker implements usecase.Locker for a single process.
type Locker struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewLocker creates a new Locker.
func NewLocker() *Locker {
	return &Locker{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Acquire claims key for ttl.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, held := l.expires[key]; held && now.Before(until) {
		return false, nil
	}
	l.expires[key] = now.Add(ttl)
	return true, nil
}

// Release frees key.
func (l *Locker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.expires, key)
	l.mu.Unlock()
	return nil
}

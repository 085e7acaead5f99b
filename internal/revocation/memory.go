package revocation

import (
	"context"
	"sync"
	"time"

	"course-marketplace/backend/internal/security"
)

// MemoryStore is an in-memory Store implementation for tests and single-node
// deployments where the denylist need not survive a restart (every in-flight
// access credential dies within its short TTL anyway).
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]time.Time
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory denylist.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]time.Time),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Block records the token as rejected until ttl from now. An existing longer
// block is kept.
func (s *MemoryStore) Block(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := security.HashToken(token)
	until := s.nowF().Add(ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.m[key]; ok && existing.After(until) {
		return nil
	}
	s.m[key] = until
	return nil
}

// IsBlocked reports whether token is currently blocked. Expired entries are
// dropped lazily on read.
func (s *MemoryStore) IsBlocked(ctx context.Context, token string) (bool, error) {
	key := security.HashToken(token)
	s.mu.RLock()
	until, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !until.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, key)
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// PurgeExpired drops entries whose block window has passed.
func (s *MemoryStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, until := range s.m {
		if !until.After(now) {
			delete(s.m, k)
			n++
		}
	}
	return n, nil
}

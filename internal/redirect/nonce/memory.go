package nonce

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process fallback store. Expired entries are swept on
// every write, so without Redis each write costs O(n) in the number of ids
// consumed during the last TTL window.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // id -> expiry
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) MarkUsed(_ context.Context, id string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	s.entries[id] = now.Add(normalizeTTL(ttl))
}

func (s *MemoryStore) IsUsed(_ context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.usedLocked(id, s.now())
}

func (s *MemoryStore) Consume(_ context.Context, id string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	if s.usedLocked(id, now) {
		return false
	}
	s.entries[id] = now.Add(normalizeTTL(ttl))
	return true
}

func (s *MemoryStore) Backend() string {
	return "memory"
}

// Len returns the number of retained ids, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) usedLocked(id string, now time.Time) bool {
	expiry, ok := s.entries[id]
	return ok && now.Before(expiry)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for id, expiry := range s.entries {
		if !now.Before(expiry) {
			delete(s.entries, id)
		}
	}
}

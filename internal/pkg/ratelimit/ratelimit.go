package ratelimit

import (
	"sync"
	"time"
)

// Store counts attempts per key inside a fixed window. The interface exists
// so multi-instance deployments can swap in a shared counter (e.g. Redis)
// without touching the policy in the auth service.
type Store interface {
	// Allow records one attempt for key and reports whether it is still
	// within the limit.
	Allow(key string) bool
	// Reset clears the counter for key (e.g. after a successful login).
	Reset(key string)
}

type entry struct {
	count       int
	windowStart time.Time
}

// MemoryStore is a fixed-window in-memory counter for single-instance
// deployments.
type MemoryStore struct {
	mu          sync.Mutex
	entries     map[string]*entry
	window      time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewMemoryStore(window time.Duration, maxAttempts int) *MemoryStore {
	return &MemoryStore{
		entries:     make(map[string]*entry),
		window:      window,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

func (s *MemoryStore) Allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || now.Sub(e.windowStart) >= s.window {
		s.entries[key] = &entry{count: 1, windowStart: now}
		return true
	}
	e.count++
	return e.count <= s.maxAttempts
}

func (s *MemoryStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Package apisession provides a generic, thread-safe session store for API
// handlers that need per-editor state. Session IDs are issued by the server.
package apisession

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// cleanupInterval is how often store calls trigger lazy eviction of expired entries.
const cleanupInterval = 100

type entry[T any] struct {
	value      *T
	lastAccess time.Time
}

// Store is a typed, thread-safe session store. Each session ID maps to
// one *T supplied by the caller.
type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	ttl     time.Duration
	calls   int
}

// New creates a Store that evicts sessions inactive longer than ttl.
func New[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{
		entries: make(map[string]*entry[T]),
		ttl:     ttl,
	}
}

func (s *Store[T]) tickLocked() {
	s.calls++
	if s.calls%cleanupInterval == 0 {
		s.cleanupLocked()
	}
}

// Add stores a value built by the caller and returns its new session ID.
func (s *Store[T]) Add(v *T) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked()

	id := uuid.NewString()
	s.entries[id] = &entry[T]{value: v, lastAccess: time.Now()}
	return id
}

// Lookup returns the state for an existing, unexpired session and refreshes it.
func (s *Store[T]) Lookup(id string) (*T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked()

	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && time.Since(e.lastAccess) > s.ttl {
		delete(s.entries, id)
		return nil, false
	}
	e.lastAccess = time.Now()
	return e.value, true
}

// Delete removes a session. Unknown IDs are ignored.
func (s *Store[T]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Cleanup evicts all sessions that have been inactive longer than the TTL.
func (s *Store[T]) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
}

func (s *Store[T]) cleanupLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.ttl)
	for id, e := range s.entries {
		if e.lastAccess.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}

// Len returns the number of stored sessions, including expired ones not yet evicted.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

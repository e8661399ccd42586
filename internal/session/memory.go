package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Entries older than the TTL
// are treated as missing and dropped on access.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record
	ttl  time.Duration
	now  func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryTTL expires records idle for longer than ttl; 0 keeps them forever.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.ttl = ttl }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{data: make(map[string]Record), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, key string) (Record, error) {
	s.mu.RLock()
	rec, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	if !s.expired(rec) {
		return rec.Clone(), nil
	}

	// A Save may have landed since the read lock was released.
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok = s.data[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	if s.expired(rec) {
		delete(s.data, key)
		return Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) expired(rec Record) bool {
	return s.ttl > 0 && s.now().Sub(rec.UpdatedAt) > s.ttl
}

// Save implements Store. A zero UpdatedAt is stamped with the current time.
func (s *MemoryStore) Save(_ context.Context, key string, rec Record) error {
	rec = rec.Clone()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}
	s.mu.Lock()
	s.data[key] = rec
	s.mu.Unlock()
	return nil
}

// Delete implements Store. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored records, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

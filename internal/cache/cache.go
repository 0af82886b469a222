// Package cache provides small TTL key-value stores with lazy expiry.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is applied by Set.
const DefaultTTL = 60 * time.Second

// Entry is a cached value and the instant it stops being served.
type Entry[T any] struct {
	Value     T
	ExpiresAt time.Time
}

// Store is a TTL map. Expired entries are removed by the Get that observes them;
// there is no background sweeper.
type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]Entry[T]
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Store.
type Option func(*config)

type config struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL overrides the default TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

func newConfig(opts []Option) config {
	c := config{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewStore creates an empty store.
func NewStore[T any](opts ...Option) *Store[T] {
	c := newConfig(opts)
	return &Store[T]{
		entries: make(map[string]Entry[T]),
		ttl:     c.ttl,
		now:     c.now,
	}
}

// Get returns the live value for key.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	e, ok := s.entries[key]
	if !ok {
		return zero, false
	}
	if !s.now().Before(e.ExpiresAt) {
		delete(s.entries, key)
		return zero, false
	}
	return e.Value, true
}

// Set stores value under key with the store's TTL.
func (s *Store[T]) Set(key string, value T) {
	s.SetTTL(key, value, s.ttl)
}

// SetTTL stores value under key with an explicit TTL.
func (s *Store[T]) SetTTL(key string, value T, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry[T]{Value: value, ExpiresAt: s.now().Add(ttl)}
}

// Clear drops every entry.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
}

// Len counts stored entries, expired ones included.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

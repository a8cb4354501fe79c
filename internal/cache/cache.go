// Package cache stores merged feeds by query. Invalidation drops every entry
// at once since any command can change any query's result.
package cache

import (
	"context"
	"sync"
	"time"

	"stealthcompany.com/hrportal/internal/requests"
)

// Store is the query cache seen by the feed controller and the dispatcher.
// Writers read Generation before computing a feed and pass it to Set; a feed
// computed under a superseded generation is never served.
type Store interface {
	Get(ctx context.Context, key string) (requests.Feed, bool, error)
	Generation(ctx context.Context) (uint64, error)
	Set(ctx context.Context, generation uint64, key string, feed requests.Feed) error
	Invalidate(ctx context.Context) error
}

type memoryEntry struct {
	feed    requests.Feed
	expires time.Time
}

// MemoryStore is a process-local Store with a fixed time to live.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	generation uint64
	ttl        time.Duration
	now        func() time.Time
}

// NewMemoryStore creates a store. A ttl of zero keeps entries until invalidated.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (requests.Feed, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return requests.Feed{}, false, nil
	}
	if !e.expires.IsZero() && s.now().After(e.expires) {
		s.mu.Lock()
		if cur, still := s.entries[key]; still && cur.expires.Equal(e.expires) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return requests.Feed{}, false, nil
	}
	return e.feed, true, nil
}

func (s *MemoryStore) Generation(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation, nil
}

// Set drops feeds computed before the latest invalidation.
func (s *MemoryStore) Set(_ context.Context, generation uint64, key string, feed requests.Feed) error {
	e := memoryEntry{feed: feed}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return nil
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Invalidate(context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.generation++
	s.mu.Unlock()
	return nil
}

// Len is the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

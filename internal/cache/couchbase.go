package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/couchbase"
	"stealthcompany.com/hrportal/internal/requests"
)

const generationKey = "feed::generation"

// Documents is the subset of the Couchbase client the store needs.
type Documents interface {
	Get(ctx context.Context, id string, out any) error
	Upsert(ctx context.Context, id string, data any, ttl time.Duration) error
	Increment(ctx context.Context, id string) (uint64, error)
	Counter(ctx context.Context, id string) (uint64, error)
}

// CouchbaseStore shares cached feeds between portal instances. Entries are
// keyed by a generation counter; Invalidate bumps the counter so older
// entries become unreachable and age out through their expiry.
type CouchbaseStore struct {
	docs Documents
	ttl  time.Duration
}

// NewCouchbaseStore creates a store on docs.
func NewCouchbaseStore(docs Documents, ttl time.Duration) *CouchbaseStore {
	return &CouchbaseStore{docs: docs, ttl: ttl}
}

func documentID(generation uint64, key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("feed::%d::%s", generation, hex.EncodeToString(sum[:]))
}

func (s *CouchbaseStore) Get(ctx context.Context, key string) (requests.Feed, bool, error) {
	gen, err := s.docs.Counter(ctx, generationKey)
	if err != nil {
		return requests.Feed{}, false, fmt.Errorf("read cache generation: %w", err)
	}

	var feed requests.Feed
	if err := s.docs.Get(ctx, documentID(gen, key), &feed); err != nil {
		if errors.Is(err, couchbase.ErrNotFound) {
			return requests.Feed{}, false, nil
		}
		return requests.Feed{}, false, err
	}
	return feed, true, nil
}

func (s *CouchbaseStore) Generation(ctx context.Context) (uint64, error) {
	gen, err := s.docs.Counter(ctx, generationKey)
	if err != nil {
		return 0, fmt.Errorf("read cache generation: %w", err)
	}
	return gen, nil
}

// Set writes under the generation the feed was computed in. If another
// instance invalidated meanwhile, the document lands in a generation no
// reader looks at and ages out.
func (s *CouchbaseStore) Set(ctx context.Context, generation uint64, key string, feed requests.Feed) error {
	return s.docs.Upsert(ctx, documentID(generation, key), feed, s.ttl)
}

func (s *CouchbaseStore) Invalidate(ctx context.Context) error {
	gen, err := s.docs.Increment(ctx, generationKey)
	if err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	log.Debug().Uint64("generation", gen).Msg("Feed cache invalidated")
	return nil
}

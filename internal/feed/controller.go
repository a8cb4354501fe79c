// Package feed serves merged feeds through the query cache and coalesces
// identical concurrent queries into one aggregator run.
package feed

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"stealthcompany.com/hrportal/internal/auth"
	"stealthcompany.com/hrportal/internal/cache"
	"stealthcompany.com/hrportal/internal/metrics"
	"stealthcompany.com/hrportal/internal/requests"
)

// Runner builds a feed from the sources.
type Runner interface {
	Run(ctx context.Context, q requests.Query) requests.Feed
}

// Controller is the query entry point of the portal.
type Controller struct {
	runner Runner
	store  cache.Store
	group  singleflight.Group
	epoch  atomic.Uint64
}

// NewController creates a controller. store may be nil to disable caching.
func NewController(runner Runner, store cache.Store) *Controller {
	return &Controller{runner: runner, store: store}
}

// cacheKey scopes q to the caller, since backends may answer differently
// per user. Anonymous callers are not cached.
func cacheKey(ctx context.Context, q requests.Query) (string, bool) {
	scope, ok := auth.Scope(ctx)
	if !ok {
		return "anonymous|" + q.CacheKey(), false
	}
	return scope + "|" + q.CacheKey(), true
}

// Query returns the feed for q from the cache or a fresh run. Degraded feeds
// are returned but never cached. Identical queries share one run, but never
// across an invalidation.
func (c *Controller) Query(ctx context.Context, q requests.Query) requests.Feed {
	key, cacheable := cacheKey(ctx, q)
	store := c.store
	if !cacheable {
		store = nil
	}

	if store != nil {
		feed, ok, err := store.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("Feed cache read failed, running query")
		}
		metrics.RecordCacheLookup(ok)
		if ok {
			return feed
		}
	}

	epoch := c.epoch.Load()
	flight := fmt.Sprintf("%d|%s", epoch, key)
	v, _, shared := c.group.Do(flight, func() (interface{}, error) {
		return c.run(context.WithoutCancel(ctx), store, epoch, key, q), nil
	})
	if shared {
		log.Debug().Str("key", key).Msg("Joined in-flight query")
	}
	return v.(requests.Feed)
}

func (c *Controller) run(ctx context.Context, store cache.Store, epoch uint64, key string, q requests.Query) requests.Feed {
	var (
		generation uint64
		err        error
	)
	if store != nil {
		if generation, err = store.Generation(ctx); err != nil {
			log.Warn().Err(err).Msg("Feed cache generation unavailable, result will not be cached")
			store = nil
		}
	}

	feed := c.runner.Run(ctx, q)

	if store == nil || feed.Degraded() {
		return feed
	}
	// an invalidation during the run makes this result stale
	if c.epoch.Load() != epoch {
		return feed
	}
	if err := store.Set(ctx, generation, key, feed); err != nil {
		log.Warn().Err(err).Msg("Feed cache write failed")
	}
	return feed
}

// Invalidate drops every cached feed, keeps runs already in progress from
// writing their results back and makes later queries start a fresh run.
func (c *Controller) Invalidate(ctx context.Context) error {
	c.epoch.Add(1)
	if c.store == nil {
		return nil
	}
	return c.store.Invalidate(ctx)
}

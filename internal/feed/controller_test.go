package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/hrportal/internal/auth"
	"stealthcompany.com/hrportal/internal/cache"
	"stealthcompany.com/hrportal/internal/requests"
)

type countingRunner struct {
	calls    atomic.Int32
	degraded bool
	release  chan struct{}
	started  chan struct{}
}

func (r *countingRunner) Run(_ context.Context, q requests.Query) requests.Feed {
	n := r.calls.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	feed := requests.Feed{
		Items:            []requests.Request{{ID: int64(n), Kind: requests.KindGeneric}},
		ApproximateTotal: int(n),
	}
	if r.degraded {
		feed.FailedSources = []requests.Kind{requests.KindAbsence}
	}
	return feed
}

func caller(token string) context.Context {
	return auth.WithToken(context.Background(), token)
}

func TestQueryServesFromCache(t *testing.T) {
	runner := &countingRunner{}
	c := NewController(runner, cache.NewMemoryStore(0))
	ctx := caller("alice")

	first := c.Query(ctx, requests.Query{})
	second := c.Query(ctx, requests.Query{})

	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, first, second)
}

func TestQueryDoesNotCacheDegradedFeeds(t *testing.T) {
	runner := &countingRunner{degraded: true}
	c := NewController(runner, cache.NewMemoryStore(0))
	ctx := caller("alice")

	c.Query(ctx, requests.Query{})
	c.Query(ctx, requests.Query{})

	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestInvalidateForcesRerun(t *testing.T) {
	runner := &countingRunner{}
	c := NewController(runner, cache.NewMemoryStore(0))
	ctx := caller("alice")

	c.Query(ctx, requests.Query{})
	require.NoError(t, c.Invalidate(ctx))
	feed := c.Query(ctx, requests.Query{})

	assert.Equal(t, int32(2), runner.calls.Load())
	assert.Equal(t, 2, feed.ApproximateTotal)
}

func TestInvalidateDuringRunSkipsCacheWrite(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{}), started: make(chan struct{}, 1)}
	store := cache.NewMemoryStore(0)
	c := NewController(runner, store)
	ctx := caller("alice")

	done := make(chan struct{})
	go func() {
		c.Query(ctx, requests.Query{})
		close(done)
	}()
	<-runner.started
	require.NoError(t, c.Invalidate(ctx))
	close(runner.release)
	<-done

	assert.Zero(t, store.Len())
}

func TestConcurrentIdenticalQueriesCoalesce(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{}), started: make(chan struct{}, 8)}
	c := NewController(runner, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Query(ctx, requests.Query{})
		}()
	}
	<-runner.started
	// give the other callers time to join the in-flight run
	time.Sleep(50 * time.Millisecond)
	close(runner.release)
	wg.Wait()

	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestCacheIsScopedPerCaller(t *testing.T) {
	runner := &countingRunner{}
	c := NewController(runner, cache.NewMemoryStore(0))

	alice := auth.WithPrincipal(context.Background(), auth.Principal{Subject: "alice"})
	bob := auth.WithPrincipal(context.Background(), auth.Principal{Subject: "bob"})

	c.Query(alice, requests.Query{})
	c.Query(bob, requests.Query{})
	c.Query(alice, requests.Query{})

	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestCacheIsScopedPerBearerTokenWithoutPrincipal(t *testing.T) {
	runner := &countingRunner{}
	c := NewController(runner, cache.NewMemoryStore(0))

	alice := c.Query(caller("alice-token"), requests.Query{})
	bob := c.Query(caller("bob-token"), requests.Query{})
	again := c.Query(caller("alice-token"), requests.Query{})

	assert.Equal(t, int32(2), runner.calls.Load())
	assert.NotEqual(t, alice, bob, "one caller's feed must not be served to another")
	assert.Equal(t, alice, again)
}

func TestAnonymousQueriesBypassCache(t *testing.T) {
	runner := &countingRunner{}
	store := cache.NewMemoryStore(0)
	c := NewController(runner, store)

	c.Query(context.Background(), requests.Query{})
	c.Query(context.Background(), requests.Query{})

	assert.Equal(t, int32(2), runner.calls.Load())
	assert.Zero(t, store.Len())
}

// versionRunner reports the backend version seen when a run starts. Its
// first run blocks until released.
type versionRunner struct {
	mu      sync.Mutex
	version int
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (r *versionRunner) setVersion(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version = v
}

func (r *versionRunner) Run(context.Context, requests.Query) requests.Feed {
	r.mu.Lock()
	seen := r.version
	r.mu.Unlock()

	if r.calls.Add(1) == 1 {
		close(r.started)
		<-r.release
	}
	return requests.Feed{ApproximateTotal: seen}
}

func TestQueryAfterInvalidateStartsFreshRun(t *testing.T) {
	runner := &versionRunner{started: make(chan struct{}), release: make(chan struct{})}
	c := NewController(runner, cache.NewMemoryStore(0))
	ctx := caller("alice")

	stale := make(chan requests.Feed, 1)
	go func() { stale <- c.Query(ctx, requests.Query{}) }()
	<-runner.started

	// a command lands while the first run is still in flight
	runner.setVersion(1)
	require.NoError(t, c.Invalidate(ctx))

	fresh := c.Query(ctx, requests.Query{})
	close(runner.release)

	assert.Equal(t, 1, fresh.ApproximateTotal, "post-invalidation query must not join the earlier run")
	assert.Equal(t, 0, (<-stale).ApproximateTotal)
	assert.Equal(t, int32(2), runner.calls.Load())

	cached := c.Query(ctx, requests.Query{})
	assert.Equal(t, 1, cached.ApproximateTotal)
	assert.Equal(t, int32(2), runner.calls.Load())
}

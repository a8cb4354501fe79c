package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/requests"
)

// Guard serializes commands per request. Acquire returns
// requests.ErrCommandInFlight while another command holds key.
type Guard interface {
	Acquire(ctx context.Context, key requests.Key) (release func(), err error)
}

// MemoryGuard guards commands within one process.
type MemoryGuard struct {
	mu       sync.Mutex
	inFlight map[requests.Key]struct{}
}

// NewMemoryGuard creates an empty guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{inFlight: make(map[requests.Key]struct{})}
}

func (g *MemoryGuard) Acquire(_ context.Context, key requests.Key) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return nil, requests.ErrCommandInFlight
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}, nil
}

// Locker is a cross-instance lock, such as the Couchbase key locker.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// LockerGuard guards commands across portal instances. The lock expires after
// ttl so a crashed instance cannot block a request forever.
type LockerGuard struct {
	locker Locker
	ttl    time.Duration
}

// NewLockerGuard creates a guard on locker.
func NewLockerGuard(locker Locker, ttl time.Duration) *LockerGuard {
	return &LockerGuard{locker: locker, ttl: ttl}
}

func lockKey(key requests.Key) string {
	return fmt.Sprintf("command::%s::%d", key.Kind, key.ID)
}

func (g *LockerGuard) Acquire(ctx context.Context, key requests.Key) (func(), error) {
	ok, err := g.locker.TryLock(ctx, lockKey(key), g.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire command lock: %w", err)
	}
	if !ok {
		return nil, requests.ErrCommandInFlight
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := g.locker.Unlock(ctx, lockKey(key)); err != nil {
				log.Warn().Err(err).Str("kind", string(key.Kind)).Int64("id", key.ID).Msg("Failed to release command lock, it will expire")
			}
		})
	}, nil
}

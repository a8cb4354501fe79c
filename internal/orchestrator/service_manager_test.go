package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitRunsHooksInReverseOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sm := NewServiceManager(time.Second)

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	stopped := make(chan struct{})
	sm.Go(ctx, "loop", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})
	sm.OnShutdown("cache", record("cache"))
	sm.OnShutdown("http", record("http"))

	cancel()
	require.NoError(t, sm.Wait(ctx, cancel))

	assert.Equal(t, []string{"http", "cache"}, order)
	select {
	case <-stopped:
	default:
		t.Fatal("service did not observe cancellation")
	}
}

func TestWaitReturnsServiceFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sm := NewServiceManager(time.Second)

	boom := errors.New("listen: address in use")
	sm.Go(ctx, "http", func(context.Context) error { return boom })
	sm.Go(ctx, "evictor", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	err := sm.Wait(ctx, cancel)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Error(t, ctx.Err(), "a failed service cancels the rest")
}

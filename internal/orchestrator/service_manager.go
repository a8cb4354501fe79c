package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// ServiceManager runs the long-lived parts of the portal and tears them
// down in reverse order of registration.
type ServiceManager struct {
	wg      sync.WaitGroup
	errs    chan error
	closers []closer
	timeout time.Duration
}

// NewServiceManager creates a manager that allows shutdownTimeout for cleanup.
func NewServiceManager(shutdownTimeout time.Duration) *ServiceManager {
	return &ServiceManager{
		errs:    make(chan error, 16),
		timeout: shutdownTimeout,
	}
}

// Go starts a service. A service returning a non-nil error, other than
// context.Canceled, stops the whole manager.
func (sm *ServiceManager) Go(ctx context.Context, name string, run func(ctx context.Context) error) {
	sm.wg.Add(1)
	go func() {
		defer sm.wg.Done()
		log.Info().Str("service", name).Msg("Service starting")
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("service", name).Msg("Service exited with error")
			select {
			case sm.errs <- fmt.Errorf("%s: %w", name, err):
			default:
			}
			return
		}
		log.Info().Str("service", name).Msg("Service stopped")
	}()
}

// OnShutdown registers cleanup run after ctx is done.
func (sm *ServiceManager) OnShutdown(name string, fn func(ctx context.Context) error) {
	sm.closers = append(sm.closers, closer{name: name, fn: fn})
}

// Wait blocks until ctx is done or a service fails, then runs the shutdown
// hooks and waits for the services to return. It returns the service
// failure, if any.
func (sm *ServiceManager) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var failure error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down services...")
	case failure = <-sm.errs:
		log.Warn().Err(failure).Msg("Service failed, shutting down")
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), sm.timeout)
	defer done()

	for i := len(sm.closers) - 1; i >= 0; i-- {
		c := sm.closers[i]
		if err := c.fn(shutdownCtx); err != nil {
			log.Error().Err(err).Str("service", c.name).Msg("Shutdown hook failed")
			continue
		}
		log.Info().Str("service", c.name).Msg("Shutdown hook completed")
	}

	stopped := make(chan struct{})
	go func() {
		sm.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Services did not stop before the shutdown timeout")
	}
	return failure
}

package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/auth"
	"stealthcompany.com/hrportal/internal/notify"
	"stealthcompany.com/hrportal/internal/requests"
	"stealthcompany.com/hrportal/internal/socket"
)

// ErrViewNotFound is returned for unknown or evicted views.
var ErrViewNotFound = errors.New("view not found")

// Options configure a new view.
type Options struct {
	EmployeeID int64
	PageSize   int
}

// Registry owns the live views and evicts idle ones.
type Registry struct {
	mu       sync.RWMutex
	views    map[string]*View
	querier  Querier
	pub      Publisher
	loc      *time.Location
	pageSize int
}

// NewRegistry creates a registry. pub may be nil.
func NewRegistry(querier Querier, pub Publisher, loc *time.Location, defaultPageSize int) *Registry {
	if loc == nil {
		loc = time.UTC
	}
	return &Registry{
		views:    make(map[string]*View),
		querier:  querier,
		pub:      pub,
		loc:      loc,
		pageSize: defaultPageSize,
	}
}

// Create opens a view and runs its first query. Without an explicit
// employee the caller's own absences are listed.
func (r *Registry) Create(ctx context.Context, opts Options) Snapshot {
	employeeID := opts.EmployeeID
	if employeeID == 0 {
		if p, err := auth.PrincipalFromContext(ctx); err == nil {
			employeeID = p.EmployeeID
		}
	}
	size := opts.PageSize
	if size <= 0 {
		size = r.pageSize
	}

	v := newView(uuid.NewString(), r.querier, r.pub, r.loc, requests.Page{Size: size}, employeeID)
	v.touch(ctx)

	r.mu.Lock()
	r.views[v.id] = v
	r.mu.Unlock()

	log.Info().Str("view", v.id).Int64("employee", employeeID).Msg("View opened")

	snap, _ := v.Refresh(ctx)
	return snap
}

// Get returns a live view.
func (r *Registry) Get(id string) (*View, error) {
	r.mu.RLock()
	v, ok := r.views[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrViewNotFound
	}
	return v, nil
}

// Exists reports whether id is a live view.
func (r *Registry) Exists(id string) bool {
	_, err := r.Get(id)
	return err == nil
}

// Close removes a view.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	_, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()
	if !ok {
		return ErrViewNotFound
	}
	log.Info().Str("view", id).Msg("View closed")
	return nil
}

// Len is the number of live views.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

func (r *Registry) all() []*View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*View, 0, len(r.views))
	for _, v := range r.views {
		out = append(out, v)
	}
	return out
}

// Refresh re-runs every live view concurrently. The dispatcher calls it
// after each applied command.
func (r *Registry) Refresh(ctx context.Context) {
	views := r.all()

	var wg sync.WaitGroup
	for _, v := range views {
		wg.Add(1)
		go func(v *View) {
			defer wg.Done()
			v.Refresh(ctx)
		}(v)
	}
	wg.Wait()

	log.Debug().Int("views", len(views)).Msg("Views refreshed")
}

// Notify pushes a command outcome to the acting caller's own views.
// Other callers learn about the change through the refreshed feed.
func (r *Registry) Notify(_ context.Context, o notify.Outcome) {
	if r.pub == nil || o.Scope == "" {
		return
	}
	sent := 0
	for _, v := range r.all() {
		if !v.ownedBy(o.Scope) {
			continue
		}
		if err := r.pub.Send(v.id, socket.Event{Type: socket.EventCommandOutcome, Data: o}); err != nil {
			log.Warn().Err(err).Str("view", v.id).Msg("Failed to push command outcome")
			continue
		}
		sent++
	}
	log.Debug().Str("command", o.ID).Int("views", sent).Msg("Command outcome pushed")
}

// EvictIdle closes views without activity for longer than idle.
func (r *Registry) EvictIdle(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	var evicted []string
	r.mu.Lock()
	for id, v := range r.views {
		if v.idleSince().Before(cutoff) {
			delete(r.views, id)
			evicted = append(evicted, id)
		}
	}
	r.mu.Unlock()

	for _, id := range evicted {
		log.Info().Str("view", id).Msg("View went cold, evicted")
		if r.pub != nil {
			_ = r.pub.Send(id, socket.Event{Type: socket.EventViewExpired})
		}
	}
	return len(evicted)
}

// Run evicts idle views every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, idle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(idle)
		}
	}
}

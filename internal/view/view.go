// Package view keeps one server-side session per open portal screen: its
// filters, its date range inputs and the last feed it was shown.
package view

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/auth"
	"stealthcompany.com/hrportal/internal/metrics"
	"stealthcompany.com/hrportal/internal/rangefilter"
	"stealthcompany.com/hrportal/internal/requests"
	"stealthcompany.com/hrportal/internal/socket"
)

// Querier runs a feed query.
type Querier interface {
	Query(ctx context.Context, q requests.Query) requests.Feed
}

// Publisher pushes events to a view's subscribers.
type Publisher interface {
	Send(viewID string, ev socket.Event) error
}

// Snapshot is the externally visible state of a view.
type Snapshot struct {
	ID         string            `json:"id"`
	Status     *requests.Status  `json:"status,omitempty"`
	Page       requests.Page     `json:"page"`
	EmployeeID int64             `json:"employeeId"`
	Range      rangefilter.State `json:"range"`
	Token      uint64            `json:"token"`
	Feed       requests.Feed     `json:"feed"`
}

// View is one screen's session. Every query it issues carries a token; a
// result is applied only if its token is still the latest one.
type View struct {
	id      string
	querier Querier
	pub     Publisher

	mu         sync.Mutex
	status     *requests.Status
	page       requests.Page
	employeeID int64
	rng        *rangefilter.Synchronizer
	token      uint64
	feed       requests.Feed
	principal  *auth.Principal
	bearer     string
	scope      string
	lastActive time.Time
}

func newView(id string, querier Querier, pub Publisher, loc *time.Location, page requests.Page, employeeID int64) *View {
	return &View{
		id:         id,
		querier:    querier,
		pub:        pub,
		page:       page,
		employeeID: employeeID,
		rng:        rangefilter.NewSynchronizer(loc),
		lastActive: time.Now(),
	}
}

// ID returns the view id.
func (v *View) ID() string { return v.id }

// touch records activity and the caller's credentials, which later
// refreshes reuse when talking to the backends.
func (v *View) touch(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.lastActive = time.Now()
	if p, err := auth.PrincipalFromContext(ctx); err == nil {
		v.principal = &p
	}
	if tok := auth.TokenFromContext(ctx); tok != "" {
		v.bearer = tok
	}
	if scope, ok := auth.Scope(ctx); ok {
		v.scope = scope
	}
}

func (v *View) ownedBy(scope string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scope == scope
}

func (v *View) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastActive
}

// credentials builds a context carrying the view owner's identity.
func (v *View) credentials(ctx context.Context) context.Context {
	if v.principal != nil {
		ctx = auth.WithPrincipal(ctx, *v.principal)
	}
	if v.bearer != "" {
		ctx = auth.WithToken(ctx, v.bearer)
	}
	return ctx
}

func (v *View) query() requests.Query {
	q := requests.Query{Page: v.page, EmployeeID: v.employeeID}
	if v.status != nil {
		s := *v.status
		q.Criteria.Status = &s
	}
	q.Criteria.DateRange = v.rng.Active()
	return q
}

// Refresh issues a new query and applies its result unless a newer query
// was issued meanwhile. It reports whether the result was applied.
func (v *View) Refresh(ctx context.Context) (Snapshot, bool) {
	v.mu.Lock()
	v.token++
	token := v.token
	q := v.query()
	qctx := v.credentials(context.WithoutCancel(ctx))
	v.mu.Unlock()

	feed := v.querier.Query(qctx, q)

	v.mu.Lock()
	if token != v.token {
		v.mu.Unlock()
		metrics.RecordStaleDiscard()
		log.Debug().Str("view", v.id).Uint64("token", token).Msg("Discarding stale query result")
		return v.Snapshot(), false
	}
	v.feed = feed
	v.mu.Unlock()

	snap := v.Snapshot()
	if v.pub != nil {
		if err := v.pub.Send(v.id, socket.Event{Type: socket.EventFeedUpdated, Data: snap}); err != nil {
			log.Warn().Err(err).Str("view", v.id).Msg("Failed to publish feed update")
		}
	}
	return snap, true
}

// SetStatus changes the status filter (nil clears it) and re-runs the query.
func (v *View) SetStatus(ctx context.Context, status *requests.Status) Snapshot {
	v.touch(ctx)
	v.mu.Lock()
	v.status = status
	v.page.Number = 0
	v.mu.Unlock()

	snap, _ := v.Refresh(ctx)
	return snap
}

// SetPage moves to another page of the paginated source.
func (v *View) SetPage(ctx context.Context, page requests.Page) Snapshot {
	v.touch(ctx)
	v.mu.Lock()
	if page.Size <= 0 {
		page.Size = v.page.Size
	}
	v.page = page
	v.mu.Unlock()

	snap, _ := v.Refresh(ctx)
	return snap
}

// SetRangeText records a keystroke in one date field. It never queries.
func (v *View) SetRangeText(ctx context.Context, side rangefilter.Side, text string) (rangefilter.State, bool) {
	v.touch(ctx)
	parsed := v.rng.SetText(side, text)
	return v.rng.Snapshot(), parsed
}

// SelectCalendar records a calendar selection. It never queries.
func (v *View) SelectCalendar(ctx context.Context, from, to *time.Time) rangefilter.State {
	v.touch(ctx)
	v.rng.SelectCalendar(from, to)
	return v.rng.Snapshot()
}

// CommitRange promotes the pending range and re-runs the query once. An
// inverted range is returned as a validation error without querying.
func (v *View) CommitRange(ctx context.Context) (Snapshot, error) {
	v.touch(ctx)
	if _, err := v.rng.Commit(); err != nil {
		return v.Snapshot(), err
	}
	v.mu.Lock()
	v.page.Number = 0
	v.mu.Unlock()

	snap, _ := v.Refresh(ctx)
	return snap, nil
}

// ClearFilters drops the status filter and the date range together and
// re-runs the query.
func (v *View) ClearFilters(ctx context.Context) Snapshot {
	v.touch(ctx)
	v.mu.Lock()
	v.status = nil
	v.page.Number = 0
	v.rng.Clear()
	v.mu.Unlock()

	snap, _ := v.Refresh(ctx)
	return snap
}

// Snapshot returns a copy of the view state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := Snapshot{
		ID:         v.id,
		Page:       v.page,
		EmployeeID: v.employeeID,
		Range:      v.rng.Snapshot(),
		Token:      v.token,
		Feed:       v.feed,
	}
	if v.status != nil {
		s := *v.status
		snap.Status = &s
	}
	return snap
}

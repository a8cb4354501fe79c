// Package dispatch routes state-changing commands to the backend that owns
// the request, then invalidates the query cache and re-runs live views.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/auth"
	"stealthcompany.com/hrportal/internal/metrics"
	"stealthcompany.com/hrportal/internal/notify"
	"stealthcompany.com/hrportal/internal/requests"
)

// GenericCommands are the mutations of the generic backend.
type GenericCommands interface {
	Approve(ctx context.Context, id int64, comment string) error
	Reject(ctx context.Context, id int64, comment string) error
	Cancel(ctx context.Context, id int64) error
}

// AbsenceCommands are the mutations of the absence backend.
type AbsenceCommands interface {
	Approve(ctx context.Context, id int64) error
	Reject(ctx context.Context, id int64, comment string) error
	Delete(ctx context.Context, id int64) error
}

// Invalidator drops cached query results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Refresher re-runs every live query after a mutation.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Command is a user request to change a request's status. Current is the
// status the user saw; legality is checked against it before any call.
type Command struct {
	Key       requests.Key    `json:"key"`
	Action    requests.Action `json:"action"`
	Comment   string          `json:"comment,omitempty"`
	Current   requests.Status `json:"currentStatus"`
	Confirmed bool            `json:"confirmed,omitempty"`
}

// Result reports an applied command.
type Result struct {
	Outcome notify.Outcome `json:"outcome"`
	Plan    requests.Plan  `json:"-"`
}

// Deps wires the dispatcher. Guard defaults to a MemoryGuard and Sink to a
// LogSink; Cache and Refresher may be nil.
type Deps struct {
	Generic   GenericCommands
	Absence   AbsenceCommands
	Guard     Guard
	Cache     Invalidator
	Refresher Refresher
	Sink      notify.Sink
}

// Dispatcher executes commands. It never patches a request locally.
type Dispatcher struct {
	deps Deps
	now  func() time.Time
}

// New creates a dispatcher.
func New(deps Deps) *Dispatcher {
	if deps.Guard == nil {
		deps.Guard = NewMemoryGuard()
	}
	if deps.Sink == nil {
		deps.Sink = notify.LogSink{}
	}
	return &Dispatcher{deps: deps, now: time.Now}
}

// Submit infers the transition from cmd.Current and executes it.
func (d *Dispatcher) Submit(ctx context.Context, cmd Command) (Result, error) {
	plan, err := requests.Next(cmd.Current, cmd.Action)
	if err != nil {
		return Result{}, err
	}
	return d.execute(ctx, cmd, plan)
}

// Decide takes the first decision on a PENDING request.
func (d *Dispatcher) Decide(ctx context.Context, cmd Command) (Result, error) {
	plan, err := requests.Decide(cmd.Current, cmd.Action)
	if err != nil {
		return Result{}, err
	}
	return d.execute(ctx, cmd, plan)
}

// Revise reverses a past decision. It is rejected locally when the request
// was never decided or already has the target status.
func (d *Dispatcher) Revise(ctx context.Context, cmd Command) (Result, error) {
	plan, err := requests.Revise(cmd.Current, cmd.Action)
	if err != nil {
		return Result{}, err
	}
	return d.execute(ctx, cmd, plan)
}

// Cancel withdraws a PENDING request. It needs an explicit confirmation.
func (d *Dispatcher) Cancel(ctx context.Context, key requests.Key, current requests.Status, confirmed bool) (Result, error) {
	plan, err := requests.Cancel(current)
	if err != nil {
		return Result{}, err
	}
	return d.execute(ctx, Command{Key: key, Action: requests.ActionCancel, Current: current, Confirmed: confirmed}, plan)
}

func validate(cmd Command, plan requests.Plan) error {
	if !cmd.Key.Kind.Valid() {
		return &requests.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown request kind %q", string(cmd.Key.Kind))}
	}
	if cmd.Key.ID <= 0 {
		return &requests.ValidationError{Field: "id", Reason: "must be positive"}
	}
	if plan.Destructive() && !cmd.Confirmed {
		return &requests.ValidationError{Field: "confirm", Reason: fmt.Sprintf("%s needs an explicit confirmation", plan.Action)}
	}
	if plan.Action == requests.ActionReject && strings.TrimSpace(cmd.Comment) == "" {
		return &requests.ValidationError{Field: "comment", Reason: "a rejection needs a comment"}
	}
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command, plan requests.Plan) (Result, error) {
	if err := validate(cmd, plan); err != nil {
		return Result{}, err
	}

	outcome := notify.Outcome{
		ID:         uuid.NewString(),
		Key:        cmd.Key,
		Action:     plan.Action,
		Transition: plan.Transition,
		From:       plan.From,
		To:         plan.To,
	}
	if p, err := auth.PrincipalFromContext(ctx); err == nil {
		outcome.Actor = p.DisplayName()
	}
	outcome.Scope, _ = auth.Scope(ctx)

	release, err := d.deps.Guard.Acquire(ctx, cmd.Key)
	if err != nil {
		if errors.Is(err, requests.ErrCommandInFlight) {
			metrics.RecordInFlightDenied()
			outcome.Result = notify.ResultRejected
			outcome.Error = err.Error()
			outcome.At = d.now()
			d.deps.Sink.Notify(ctx, outcome)
		}
		return Result{}, err
	}
	defer release()

	if err := d.route(ctx, cmd, plan); err != nil {
		cmdErr := &requests.CommandError{Key: cmd.Key, Action: plan.Action, Err: err}
		metrics.RecordCommand(string(cmd.Key.Kind), string(plan.Action), notify.ResultFailed)
		outcome.Result = notify.ResultFailed
		outcome.Error = err.Error()
		outcome.At = d.now()
		d.deps.Sink.Notify(ctx, outcome)
		return Result{}, cmdErr
	}

	metrics.RecordCommand(string(cmd.Key.Kind), string(plan.Action), notify.ResultApplied)
	outcome.Result = notify.ResultApplied
	outcome.At = d.now()

	// the backend is the source of truth; refetch instead of patching
	detached := context.WithoutCancel(ctx)
	if d.deps.Cache != nil {
		if err := d.deps.Cache.Invalidate(detached); err != nil {
			log.Warn().Err(err).Msg("Feed cache invalidation failed")
		}
	}
	d.deps.Sink.Notify(ctx, outcome)
	if d.deps.Refresher != nil {
		d.deps.Refresher.Refresh(detached)
	}

	return Result{Outcome: outcome, Plan: plan}, nil
}

// route calls the backend mutation for the command's kind.
func (d *Dispatcher) route(ctx context.Context, cmd Command, plan requests.Plan) error {
	id := cmd.Key.ID
	_, err := requests.Match(cmd.Key.Kind,
		func() (struct{}, error) {
			switch plan.Action {
			case requests.ActionApprove:
				return struct{}{}, d.deps.Generic.Approve(ctx, id, cmd.Comment)
			case requests.ActionReject:
				return struct{}{}, d.deps.Generic.Reject(ctx, id, cmd.Comment)
			default:
				return struct{}{}, d.deps.Generic.Cancel(ctx, id)
			}
		},
		func() (struct{}, error) {
			switch plan.Action {
			case requests.ActionApprove:
				if cmd.Comment != "" {
					log.Debug().Int64("id", id).Msg("Absence approval takes no comment, dropping it")
				}
				return struct{}{}, d.deps.Absence.Approve(ctx, id)
			case requests.ActionReject:
				return struct{}{}, d.deps.Absence.Reject(ctx, id, cmd.Comment)
			default:
				return struct{}{}, d.deps.Absence.Delete(ctx, id)
			}
		},
	)
	return err
}

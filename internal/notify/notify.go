// Package notify publishes structured command outcomes. Outcomes carry codes
// and fields only; wording is left to whoever renders them.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/requests"
)

// Result codes of an Outcome.
const (
	ResultApplied  = "applied"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

// Outcome describes one dispatched command.
type Outcome struct {
	ID         string              `json:"id"`
	Key        requests.Key        `json:"key"`
	Action     requests.Action     `json:"action"`
	Transition requests.Transition `json:"transition,omitempty"`
	From       requests.Status     `json:"from,omitempty"`
	To         requests.Status     `json:"to,omitempty"`
	Result     string              `json:"result"`
	Error      string              `json:"error,omitempty"`
	Actor      string              `json:"actor,omitempty"`
	At         time.Time           `json:"at"`

	// Scope identifies the acting caller, see auth.Scope. Outcomes with no
	// scope are logged but not pushed to any view.
	Scope string `json:"-"`
}

// Sink receives outcomes. Implementations must not block the caller for long.
type Sink interface {
	Notify(ctx context.Context, o Outcome)
}

// LogSink writes outcomes to the structured log.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, o Outcome) {
	var ev *zerolog.Event
	if o.Result == ResultApplied {
		ev = log.Info()
	} else {
		ev = log.Error()
	}
	ev.Str("outcome", o.ID).
		Str("kind", string(o.Key.Kind)).
		Int64("id", o.Key.ID).
		Str("action", string(o.Action)).
		Str("transition", string(o.Transition)).
		Str("from", string(o.From)).
		Str("to", string(o.To)).
		Str("result", o.Result).
		Str("actor", o.Actor).
		Str("error", o.Error).
		Msg("Command outcome")
}

// MultiSink fans an outcome out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, o Outcome) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, o)
		}
	}
}


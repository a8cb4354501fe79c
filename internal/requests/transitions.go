package requests

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is a state-changing command a user can issue on a request.
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
	ActionCancel  Action = "CANCEL"
)

// ParseAction is case-insensitive.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionApprove, ActionReject, ActionCancel:
		return a, nil
	}
	return "", &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", s)}
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseAction(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Transition names the kind of workflow step a plan performs.
type Transition string

const (
	TransitionDecide Transition = "decide"
	TransitionRevise Transition = "revise"
	TransitionCancel Transition = "cancel"
)

// Plan is a legal move of the decision state machine.
type Plan struct {
	Transition Transition
	Action     Action
	From       Status
	To         Status
}

// Destructive reports whether the plan needs an explicit confirmation.
func (p Plan) Destructive() bool {
	return p.Transition == TransitionCancel
}

func targetOf(a Action) (Status, bool) {
	switch a {
	case ActionApprove:
		return StatusApproved, true
	case ActionReject:
		return StatusRejected, true
	case ActionCancel:
		return StatusCancelled, true
	}
	return "", false
}

// Decide plans a first decision. Only PENDING requests can be decided.
func Decide(current Status, action Action) (Plan, error) {
	if action != ActionApprove && action != ActionReject {
		return Plan{}, &ValidationError{Field: "action", Reason: fmt.Sprintf("%s is not a decision", action)}
	}
	if current != StatusPending {
		return Plan{}, &ValidationError{Field: "status", Reason: fmt.Sprintf("cannot decide a %s request", current)}
	}
	to, _ := targetOf(action)
	return Plan{Transition: TransitionDecide, Action: action, From: current, To: to}, nil
}

// Revise plans the reversal of a past decision. The request must already be
// decided and the target must differ from the current status; it never goes
// back to PENDING.
func Revise(current Status, action Action) (Plan, error) {
	if action != ActionApprove && action != ActionReject {
		return Plan{}, &ValidationError{Field: "action", Reason: fmt.Sprintf("%s is not a decision", action)}
	}
	if current != StatusApproved && current != StatusRejected {
		return Plan{}, &ValidationError{Field: "status", Reason: fmt.Sprintf("cannot revise a %s request", current)}
	}
	to, _ := targetOf(action)
	if to == current {
		return Plan{}, &ValidationError{Field: "action", Reason: fmt.Sprintf("request is already %s", current)}
	}
	return Plan{Transition: TransitionRevise, Action: action, From: current, To: to}, nil
}

// Cancel plans the withdrawal of a PENDING request. CANCELLED is terminal.
func Cancel(current Status) (Plan, error) {
	if current != StatusPending {
		return Plan{}, &ValidationError{Field: "status", Reason: fmt.Sprintf("cannot cancel a %s request", current)}
	}
	return Plan{Transition: TransitionCancel, Action: ActionCancel, From: current, To: StatusCancelled}, nil
}

// Next infers the transition from the current status: decisions on PENDING
// requests, revisions on decided ones, cancellation only from PENDING.
func Next(current Status, action Action) (Plan, error) {
	if _, err := ParseStatus(string(current)); err != nil {
		return Plan{}, err
	}
	switch action {
	case ActionCancel:
		return Cancel(current)
	case ActionApprove, ActionReject:
		if current == StatusPending {
			return Decide(current, action)
		}
		return Revise(current, action)
	}
	return Plan{}, &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", string(action))}
}

// AllowedActions lists what the presentation may offer for a status.
func AllowedActions(current Status) []Action {
	switch current {
	case StatusPending:
		return []Action{ActionApprove, ActionReject, ActionCancel}
	case StatusApproved:
		return []Action{ActionReject}
	case StatusRejected:
		return []Action{ActionApprove}
	}
	return nil
}

package rangefilter

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/requests"
)

// Side selects one end of the range.
type Side int

const (
	Start Side = iota
	End
)

func (s Side) String() string {
	if s == Start {
		return "start"
	}
	return "end"
}

// State is a snapshot of both inputs and both ranges.
type State struct {
	StartText string             `json:"startText"`
	EndText   string             `json:"endText"`
	Pending   requests.DateRange `json:"pending"`
	Active    requests.DateRange `json:"active"`
}

// Synchronizer holds the text fields, the pending range they feed and the
// active range queries use. Only Commit and Clear change the active range.
type Synchronizer struct {
	mu        sync.Mutex
	loc       *time.Location
	startText string
	endText   string
	pending   requests.DateRange
	active    requests.DateRange
}

// NewSynchronizer creates an empty synchronizer reading dates in loc.
func NewSynchronizer(loc *time.Location) *Synchronizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Synchronizer{loc: loc}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyRange(r requests.DateRange) requests.DateRange {
	return requests.DateRange{From: copyTime(r.From), To: copyTime(r.To)}
}

// SetText records what the user typed on one side. Empty text clears that
// side of the pending range; text that does not parse leaves it unchanged.
// It reports whether the pending range was updated.
func (s *Synchronizer) SetText(side Side, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if side == Start {
		s.startText = text
	} else {
		s.endText = text
	}

	var value *time.Time
	if strings.TrimSpace(text) != "" {
		t, err := Parse(text, s.loc)
		if err != nil {
			log.Debug().Str("side", side.String()).Str("text", text).Msg("Ignoring unparseable date")
			return false
		}
		value = &t
	}

	if side == Start {
		s.pending.From = value
	} else {
		s.pending.To = value
	}
	return true
}

// SetStartText is SetText(Start, text).
func (s *Synchronizer) SetStartText(text string) bool { return s.SetText(Start, text) }

// SetEndText is SetText(End, text).
func (s *Synchronizer) SetEndText(text string) bool { return s.SetText(End, text) }

// SelectCalendar sets the pending range from a calendar selection and
// rewrites both text fields to match. A nil bound clears that side.
func (s *Synchronizer) SelectCalendar(from, to *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = requests.DateRange{From: s.day(from), To: s.day(to)}
	s.startText, s.endText = "", ""
	if s.pending.From != nil {
		s.startText = Format(*s.pending.From)
	}
	if s.pending.To != nil {
		s.endText = Format(*s.pending.To)
	}
}

// day maps t to midnight of its calendar date in the synchronizer's zone.
func (s *Synchronizer) day(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return &midnight
}

// Commit promotes the pending range to active and returns it. An inverted
// range is rejected and the active range is left as it was.
func (s *Synchronizer) Commit() (requests.DateRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending.From != nil && s.pending.To != nil && s.pending.From.After(*s.pending.To) {
		return copyRange(s.active), &requests.ValidationError{
			Field:  "dateRange",
			Reason: "start date " + Format(*s.pending.From) + " is after end date " + Format(*s.pending.To),
		}
	}
	s.active = copyRange(s.pending)
	return copyRange(s.active), nil
}

// Clear resets both text fields, the pending and the active range together.
func (s *Synchronizer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startText, s.endText = "", ""
	s.pending = requests.DateRange{}
	s.active = requests.DateRange{}
}

// Active returns the committed range, or nil when no bound is set.
func (s *Synchronizer) Active() *requests.DateRange {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active.IsZero() {
		return nil
	}
	r := copyRange(s.active)
	return &r
}

// Snapshot returns a copy of the whole state.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		StartText: s.startText,
		EndText:   s.endText,
		Pending:   copyRange(s.pending),
		Active:    copyRange(s.active),
	}
}

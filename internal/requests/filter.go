package requests

import (
	"sort"
	"time"
)

// Honored declares which parts of FilterCriteria a backend applied itself.
type Honored struct {
	Status    bool `json:"status"`
	DateRange bool `json:"dateRange"`
}

// StartOfDay returns midnight of t's calendar date in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar date.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Matches reports whether r satisfies every predicate of c.
func (c FilterCriteria) Matches(r Request) bool {
	return c.matchStatus(r) && c.matchDateRange(r)
}

func (c FilterCriteria) matchStatus(r Request) bool {
	if !c.HasStatus() {
		return true
	}
	return r.Status == *c.Status
}

func (c FilterCriteria) matchDateRange(r Request) bool {
	if !c.HasDateRange() {
		return true
	}
	if from := c.DateRange.From; from != nil && r.CreatedAt.Before(StartOfDay(*from)) {
		return false
	}
	if to := c.DateRange.To; to != nil && r.CreatedAt.After(EndOfDay(*to)) {
		return false
	}
	return true
}

// Apply returns the items matching c. It never modifies items and is
// idempotent: Apply(Apply(x, c), c) equals Apply(x, c).
func Apply(items []Request, c FilterCriteria) []Request {
	return ApplyExcept(items, c, Honored{})
}

// ApplyExcept applies only the predicates the source did not honor.
func ApplyExcept(items []Request, c FilterCriteria, honored Honored) []Request {
	checkStatus := c.HasStatus() && !honored.Status
	checkRange := c.HasDateRange() && !honored.DateRange

	out := make([]Request, 0, len(items))
	for _, r := range items {
		if checkStatus && !c.matchStatus(r) {
			continue
		}
		if checkRange && !c.matchDateRange(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Less is the feed order: newest first, then GENERIC before ABSENCE, then
// higher id first. It is a strict total order over distinct (kind, id) keys.
func Less(a, b Request) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	if ra, rb := a.Kind.rank(), b.Kind.rank(); ra != rb {
		return ra < rb
	}
	return a.ID > b.ID
}

// Sort orders items in place using Less.
func Sort(items []Request) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(items[i], items[j])
	})
}

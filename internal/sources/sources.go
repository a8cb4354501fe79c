// Package sources adapts each backend to the common request envelope and
// declares which filter predicates the backend applied itself.
package sources

import (
	"fmt"
	"strings"
	"time"

	"stealthcompany.com/hrportal/internal/requests"
)

// Result is what one adapter contributes to a feed. Total is nil when the
// backend cannot report a true count.
type Result struct {
	Items   []requests.Request
	Honored requests.Honored
	Total   *int
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// parseTimestamp accepts ISO-8601 with or without offset. Values without an
// offset are read in loc.
func parseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func optionalTimestamp(raw string, loc *time.Location) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := parseTimestamp(raw, loc)
	if err != nil {
		return nil
	}
	return &t
}

func normalizeType(raw string, fallback requests.Type) requests.Type {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return fallback
	}
	return requests.Type(strings.ReplaceAll(t, " ", "_"))
}

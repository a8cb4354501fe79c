// Package rangefilter reconciles the free-text and calendar inputs of the
// date range filter into one pending range, promoted only on commit.
package rangefilter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DisplayLayout is how dates are written back into the text fields.
const DisplayLayout = "02/01/2006"

// Parse reads a calendar date typed as dd/mm/yy, dd/mm/yyyy, ddmmyy or
// ddmmyyyy. With separators ('/', '-' or '.') day and month may have one
// digit. Two-digit years are in the 2000s. The result is midnight in loc.
func Parse(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if loc == nil {
		loc = time.UTC
	}

	var dd, mm, yy string
	if parts := strings.FieldsFunc(text, isSeparator); len(parts) == 3 && strings.ContainsFunc(text, isSeparator) {
		dd, mm, yy = parts[0], parts[1], parts[2]
		if len(dd) > 2 || len(mm) > 2 {
			return time.Time{}, fmt.Errorf("malformed date %q", text)
		}
	} else {
		switch len(text) {
		case 6, 8:
			dd, mm, yy = text[:2], text[2:4], text[4:]
		default:
			return time.Time{}, fmt.Errorf("malformed date %q", text)
		}
	}
	if len(yy) != 2 && len(yy) != 4 {
		return time.Time{}, fmt.Errorf("malformed year in %q", text)
	}

	day, err := digits(dd)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed day in %q", text)
	}
	month, err := digits(mm)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed month in %q", text)
	}
	year, err := digits(yy)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed year in %q", text)
	}
	if len(yy) == 2 {
		year += 2000
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// time.Date normalizes 31/02 into March; reject instead
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("no such date %q", text)
	}
	return t, nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '-' || r == '.'
}

func digits(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a number")
		}
	}
	return strconv.Atoi(s)
}

// Format writes t the way the text fields show it.
func Format(t time.Time) string {
	return t.Format(DisplayLayout)
}

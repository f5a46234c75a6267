package timeutil

import (
	"time"

	"github.com/mamadbah2/bustrack/internal/apperr"
)

// DateLayout is the ISO calendar date accepted on query strings.
const DateLayout = "2006-01-02"

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayBounds returns the half-open calendar day [start, start+1d) containing t.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := StartOfDay(t, loc)
	return start, start.AddDate(0, 0, 1)
}

// ParseDate parses an ISO date (or a full RFC 3339 timestamp) in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(DateLayout, value, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, apperr.Validation("date %q is not a valid ISO date", value)
}

// Range is a closed instant interval [From, To].
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t lies inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// ExplicitRange builds a range from two ISO dates. Both endpoints are required
// and the end date is inclusive through its last instant.
func ExplicitRange(startDate, endDate string, loc *time.Location) (Range, error) {
	if startDate == "" || endDate == "" {
		return Range{}, apperr.Validation("startDate and endDate are required")
	}

	start, err := ParseDate(startDate, loc)
	if err != nil {
		return Range{}, err
	}
	end, err := ParseDate(endDate, loc)
	if err != nil {
		return Range{}, err
	}

	from := StartOfDay(start, loc)
	_, next := DayBounds(end, loc)
	to := next.Add(-time.Millisecond)
	if to.Before(from) {
		return Range{}, apperr.Validation("endDate %s is before startDate %s", endDate, startDate)
	}

	return Range{From: from, To: to}, nil
}

// ResolveRange uses the explicit dates when both are given, otherwise the
// trailing window of days ending at now. A lone endpoint is rejected.
func ResolveRange(startDate, endDate string, days int, now time.Time, loc *time.Location) (Range, error) {
	switch {
	case startDate != "" && endDate != "":
		return ExplicitRange(startDate, endDate, loc)
	case startDate != "" || endDate != "":
		return Range{}, apperr.Validation("startDate and endDate must be provided together")
	}

	if days <= 0 {
		return Range{}, apperr.Validation("days must be a positive integer")
	}

	return Range{From: now.AddDate(0, 0, -days), To: now}, nil
}

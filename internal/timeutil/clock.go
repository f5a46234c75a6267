// Package timeutil holds the wall-clock and calendar helpers shared by the
// arrival and analytics services.
package timeutil

import (
	"strconv"
	"strings"

	"github.com/mamadbah2/bustrack/internal/apperr"
)

// MinutesPerDay is the size of the daily clock delays are measured on.
const MinutesPerDay = 24 * 60

// ParseClock converts an "H:MM AM" or "H:MM PM" string into minutes since midnight.
// 12 AM maps to hour 0 and 12 PM to hour 12.
func ParseClock(value string) (int, error) {
	clock, period, ok := strings.Cut(value, " ")
	if !ok || (period != "AM" && period != "PM") {
		return 0, apperr.Parse("time %q must look like H:MM AM or H:MM PM", value)
	}

	hourText, minuteText, ok := strings.Cut(clock, ":")
	if !ok || len(hourText) < 1 || len(hourText) > 2 || len(minuteText) != 2 {
		return 0, apperr.Parse("time %q must look like H:MM AM or H:MM PM", value)
	}

	hour, err := parseDigits(hourText)
	if err != nil || hour < 1 || hour > 12 {
		return 0, apperr.Parse("time %q has an invalid hour", value)
	}
	minute, err := parseDigits(minuteText)
	if err != nil || minute > 59 {
		return 0, apperr.Parse("time %q has an invalid minute", value)
	}

	hour %= 12
	if period == "PM" {
		hour += 12
	}

	return hour*60 + minute, nil
}

// parseDigits accepts only ASCII digits, rejecting signs and spaces strconv would allow.
func parseDigits(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}

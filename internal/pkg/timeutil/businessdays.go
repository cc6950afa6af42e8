package timeutil

import (
	"time"
)

// CountBusinessDays counts Monday-Friday days in the inclusive range [from, to].
// Returns 0 when to is before from. Times are truncated to their calendar date.
func CountBusinessDays(from, to time.Time) int {
	from = truncateToDate(from)
	to = truncateToDate(to)

	if to.Before(from) {
		return 0
	}

	count := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(d) {
			count++
		}
	}
	return count
}

// IsBusinessDay reports whether the date falls on a Monday through Friday
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

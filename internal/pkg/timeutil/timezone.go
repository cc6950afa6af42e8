package timeutil

import (
	"time"
)

// DateFormat is the wire format for calendar dates
const DateFormat = "2006-01-02"

// ParseDateInUserTimezone parses a YYYY-MM-DD date string as if it were in the user's timezone
// Returns the time at the start of that day in the user's timezone
func ParseDateInUserTimezone(dateStr, timezone string) (time.Time, error) {
	if timezone == "" {
		return time.Parse(DateFormat, dateStr)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		// Invalid timezone, fallback to UTC
		return time.Parse(DateFormat, dateStr)
	}

	return time.ParseInLocation(DateFormat, dateStr, loc)
}

// IsValidTimezone checks if a timezone string is valid
func IsValidTimezone(timezone string) bool {
	if timezone == "" {
		return false
	}
	_, err := time.LoadLocation(timezone)
	return err == nil
}

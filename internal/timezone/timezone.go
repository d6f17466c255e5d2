package timezone

import (
	"fmt"
	"time"
)

const DefaultTimezone = "Europe/Kyiv"

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

func IsValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

func Location(tz string) *time.Location {
	if IsValid(tz) {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}

	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Instant combines a clinic-local date and clock time into a UTC instant.
// Stored instants are always UTC; the clinic timezone is only applied here,
// at write time.
func Instant(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q %q: %w", date, clock, err)
	}
	return t.UTC(), nil
}

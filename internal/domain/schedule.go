package domain

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// NextFireInstant computes the nearest future UTC instant at which a daily
// reminder set to `at` in zone `tz` is due: today's local date if the time
// has not passed yet, otherwise tomorrow. The candidate is built with
// calendar arithmetic in the target zone, so crossing a DST transition keeps
// the local wall-clock time rather than a fixed 24h offset.
func NextFireInstant(nowUTC time.Time, at DayTime, tz string) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}

	localNow := nowUTC.In(loc)
	candidate := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), at.Hour, at.Minute, 0, 0, loc)
	if !candidate.After(localNow) {
		candidate = time.Date(localNow.Year(), localNow.Month(), localNow.Day()+1, at.Hour, at.Minute, 0, 0, loc)
	}
	return candidate.UTC(), nil
}

// NextDailyFire returns the same local wall-clock time one calendar day after
// the instant that fired. Rearming from the fired instant rather than from
// "now" keeps the schedule drift-free.
func NextDailyFire(firedUTC time.Time, at DayTime, loc *time.Location) time.Time {
	local := firedUTC.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, at.Hour, at.Minute, 0, 0, loc).UTC()
}

// LocalDate formats t as an ISO calendar date in the given location.
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

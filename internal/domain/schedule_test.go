package domain

import (
	"errors"
	"testing"
	"time"
)

func mustUTC(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts.UTC()
}

func TestNextFireInstant_TodayNotYetPassed(t *testing.T) {
	// 08:30 UTC, reminder at 09:00 Europe/Moscow (06:00 UTC same day is past,
	// so this checks the "today" branch via 09:00 MSK = 06:00 UTC).
	now := mustUTC(t, "2025-06-10T05:30:00Z") // 08:30 MSK
	next, err := NextFireInstant(now, DayTime{Hour: 9, Minute: 0}, "Europe/Moscow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustUTC(t, "2025-06-10T06:00:00Z")
	if !next.Equal(want) {
		t.Fatalf("want %v, got %v", want, next)
	}
}

func TestNextFireInstant_AlreadyPassedRollsToTomorrow(t *testing.T) {
	// 07:00 UTC = 10:00 MSK, already past 09:00 MSK → tomorrow 06:00 UTC.
	now := mustUTC(t, "2025-06-10T07:00:00Z")
	next, err := NextFireInstant(now, DayTime{Hour: 9, Minute: 0}, "Europe/Moscow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustUTC(t, "2025-06-11T06:00:00Z")
	if !next.Equal(want) {
		t.Fatalf("want %v, got %v", want, next)
	}
}

func TestNextFireInstant_ExactlyNowRollsForward(t *testing.T) {
	now := mustUTC(t, "2025-06-10T06:00:00Z") // exactly 09:00 MSK
	next, err := NextFireInstant(now, DayTime{Hour: 9, Minute: 0}, "Europe/Moscow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustUTC(t, "2025-06-11T06:00:00Z")
	if !next.Equal(want) {
		t.Fatalf("want %v, got %v", want, next)
	}
}

func TestNextFireInstant_UnknownZone(t *testing.T) {
	_, err := NextFireInstant(time.Now().UTC(), DayTime{Hour: 9}, "Not/AZone")
	if !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("want ErrInvalidTimezone, got %v", err)
	}
}

func TestNextDailyFire_KeepsLocalTimeAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// 2025-03-29 09:00 CET (UTC+1); clocks jump forward that night.
	fired := time.Date(2025, time.March, 29, 9, 0, 0, 0, loc)
	next := NextDailyFire(fired.UTC(), DayTime{Hour: 9, Minute: 0}, loc)

	local := next.In(loc)
	if local.Hour() != 9 || local.Minute() != 0 {
		t.Fatalf("want 09:00 local, got %s", local.Format("15:04"))
	}
	if local.Day() != 30 {
		t.Fatalf("want next calendar day, got %v", local)
	}
	// The UTC gap is 23h, not 24h, because of the spring-forward transition.
	if got := next.Sub(fired.UTC()); got != 23*time.Hour {
		t.Fatalf("want 23h between fires, got %v", got)
	}
}

func TestNextDailyFire_PlainDay(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Moscow")
	fired := time.Date(2025, time.June, 10, 9, 0, 0, 0, loc)
	next := NextDailyFire(fired.UTC(), DayTime{Hour: 9, Minute: 0}, loc)
	if got := next.Sub(fired.UTC()); got != 24*time.Hour {
		t.Fatalf("want 24h, got %v", got)
	}
}

func TestLocalDate(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Yekaterinburg") // UTC+5
	// 21:30 UTC is already the next day in Yekaterinburg.
	ts := mustUTC(t, "2025-06-10T21:30:00Z")
	if got := LocalDate(ts, loc); got != "2025-06-11" {
		t.Fatalf("want 2025-06-11, got %s", got)
	}
}

package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidTimezone   = errors.New("invalid timezone")
)

// DayTime is a wall-clock time of day without a date or zone.
type DayTime struct {
	Hour   int // 0..23
	Minute int // 0..59
}

// ParseDayTime parses "HH:MM" (24-hour). Single-digit hours like "9:15" are
// accepted, matching what users actually type.
func ParseDayTime(s string) (DayTime, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return DayTime{}, fmt.Errorf("%w: expected HH:MM, got %q", ErrInvalidTimeFormat, s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || h < 0 || h > 23 {
		return DayTime{}, fmt.Errorf("%w: invalid hour in %q", ErrInvalidTimeFormat, s)
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 0 || m > 59 {
		return DayTime{}, fmt.Errorf("%w: invalid minute in %q", ErrInvalidTimeFormat, s)
	}
	return DayTime{Hour: h, Minute: m}, nil
}

// String returns the canonical "HH:MM" form.
func (d DayTime) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

// ValidateTZ checks that tz is a valid IANA location and returns its
// canonical name.
func ValidateTZ(tz string) (string, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return "", fmt.Errorf("%w: empty zone name", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return loc.String(), nil
}

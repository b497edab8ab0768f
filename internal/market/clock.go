package market

import (
	"fmt"
	"time"
)

// Clock is a time of day in minutes after midnight, New York time.
type Clock int

// NewClock builds a Clock from hour and minute.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (use HH:MM): %w", s, err)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

// ClockOf returns the New York time of day of t.
func ClockOf(t time.Time) Clock {
	ny := t.In(newYork)
	return NewClock(ny.Hour(), ny.Minute())
}

// On returns the instant of this clock on the session date of day.
func (c Clock) On(day time.Time) time.Time {
	ny := day.In(newYork)
	y, m, d := ny.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, newYork)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

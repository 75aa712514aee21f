package engine

import (
	"time"

	"github.com/tartampluch/go-worldclock/internal/config"
)

// DayDelta returns the signed number of calendar days between the local date
// of z and the local date of ref: 0 on the same day, positive when z is
// calendar-ahead, negative when it is behind.
//
// Both local dates are projected onto UTC midnights before subtracting, so
// 23- or 25-hour DST days cannot skew the result the way subtracting the two
// zones' real midnights would.
func DayDelta(z, ref ZonedTime) int {
	return daysBetween(localDate(ref.Time), localDate(z.Time))
}

// localDate returns the wall-clock date of t as a UTC midnight.
func localDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours()) / config.HoursPerDay
}

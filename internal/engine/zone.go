package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tartampluch/go-worldclock/internal/config"
)

// ErrUnknownTimezone is matched (errors.Is) by every resolution failure.
var ErrUnknownTimezone = errors.New(config.ErrUnknownZone)

// ZoneError reports an identifier the timezone database cannot resolve.
type ZoneError struct {
	ID  string
	Err error // Optional: underlying time.LoadLocation error
}

func (e *ZoneError) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s %q", config.ErrUnknownZone, e.ID)
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *ZoneError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets callers classify the error without inspecting the wrapped cause.
func (e *ZoneError) Is(target error) bool {
	return target == ErrUnknownTimezone
}

// zoneCache memoizes loaded locations. time.LoadLocation hits the
// filesystem (or the embedded tzdata) on every call, and the engine resolves
// every configured zone once per second.
var zoneCache sync.Map // map[string]*time.Location

// LoadZone resolves an identifier to a *time.Location.
// "UTC" and "Local" are always available; empty identifiers never are.
func LoadZone(id string) (*time.Location, error) {
	name := strings.TrimSpace(id)
	if name == "" {
		return nil, &ZoneError{ID: id}
	}

	if loc, ok := zoneCache.Load(name); ok {
		return loc.(*time.Location), nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &ZoneError{ID: id, Err: err}
	}

	actual, _ := zoneCache.LoadOrStore(name, loc)
	return actual.(*time.Location), nil
}

// ResolveOffset returns the offset from UTC, in minutes, that the zone
// observes at the given instant. Daylight saving rules apply, so the same
// zone can yield different results for different instants.
func ResolveOffset(id string, instant time.Time) (int, error) {
	loc, err := LoadZone(id)
	if err != nil {
		return 0, err
	}
	_, offsetSec := instant.In(loc).Zone()
	return offsetSec / config.SecondsPerMin, nil
}

// ZonedTime is an instant interpreted in a specific timezone.
// It is a value type; every tick produces fresh ones.
type ZonedTime struct {
	// ID is the identifier the time was resolved for, as configured.
	ID string

	// Time carries the instant with its Location set to the resolved zone.
	Time time.Time
}

// NewZonedTime expresses instant in the zone named id.
func NewZonedTime(instant time.Time, id string) (ZonedTime, error) {
	loc, err := LoadZone(id)
	if err != nil {
		return ZonedTime{}, err
	}
	return ZonedTime{ID: id, Time: instant.In(loc)}, nil
}

func (z ZonedTime) Year() int   { return z.Time.Year() }
func (z ZonedTime) Month() int  { return int(z.Time.Month()) }
func (z ZonedTime) Day() int    { return z.Time.Day() }
func (z ZonedTime) Hour() int   { return z.Time.Hour() }
func (z ZonedTime) Minute() int { return z.Time.Minute() }
func (z ZonedTime) Second() int { return z.Time.Second() }

// Weekday returns the English weekday name ("Monday").
func (z ZonedTime) Weekday() string { return z.Time.Weekday().String() }

// OffsetMinutes returns the UTC offset in effect at this instant.
func (z ZonedTime) OffsetMinutes() int {
	_, offsetSec := z.Time.Zone()
	return offsetSec / config.SecondsPerMin
}

// Abbreviation returns the zone abbreviation in effect ("JST", "CEST").
func (z ZonedTime) Abbreviation() string {
	name, _ := z.Time.Zone()
	return name
}

// Instant returns the underlying absolute time in UTC.
func (z ZonedTime) Instant() time.Time { return z.Time.UTC() }

// Midnight returns the start of the local calendar day in the same zone.
// On days where a DST jump skips midnight, time.Date normalizes forward.
func (z ZonedTime) Midnight() time.Time {
	y, m, d := z.Time.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, z.Time.Location())
}

// IsZero reports whether the value was never populated.
func (z ZonedTime) IsZero() bool { return z.Time.IsZero() }

package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/tartampluch/go-worldclock/internal/config"
)

// WorldClockEntry is one secondary clock row. Every field is derived from
// the snapshot instant, the entry's identifier and the primary ZonedTime.
type WorldClockEntry struct {
	ID            string
	Label         string
	Time          ZonedTime
	OffsetMinutes int
	DayDelta      int
}

// ClockSnapshot is the immutable result of one tick. Primary and every
// secondary derive from the same sampled Instant.
type ClockSnapshot struct {
	// Instant is the sampled wall-clock time, in UTC.
	Instant time.Time

	// Sequence numbers published snapshots from 1, per engine.
	Sequence uint64

	Primary     ZonedTime
	Secondaries []WorldClockEntry
}

// SkipFunc is notified when a secondary identifier cannot be resolved.
type SkipFunc func(id string, err error)

// BuildSnapshot derives a complete snapshot for one instant.
//
// An unresolvable primary aborts the build: there is no meaningful display
// without it. Unresolvable secondaries are omitted from the result (and
// reported to skip, which may be nil); order and duplicates of the remaining
// identifiers are preserved.
func BuildSnapshot(instant time.Time, primary string, secondaries []string, skip SkipFunc) (*ClockSnapshot, error) {
	instant = instant.UTC()

	primaryTime, err := NewZonedTime(instant, primary)
	if err != nil {
		return nil, err
	}

	entries := make([]WorldClockEntry, 0, len(secondaries))
	for _, id := range secondaries {
		entry, err := buildEntry(instant, id, primaryTime)
		if err != nil {
			if skip != nil {
				skip(id, err)
			}
			continue
		}
		entries = append(entries, entry)
	}

	return &ClockSnapshot{
		Instant:     instant,
		Primary:     primaryTime,
		Secondaries: entries,
	}, nil
}

func buildEntry(instant time.Time, id string, primary ZonedTime) (WorldClockEntry, error) {
	offset, err := ResolveOffset(id, instant)
	if err != nil {
		return WorldClockEntry{}, err
	}

	zoned, err := NewZonedTime(instant, id)
	if err != nil {
		return WorldClockEntry{}, err
	}

	return WorldClockEntry{
		ID:            id,
		Label:         DeriveLabel(id),
		Time:          zoned,
		OffsetMinutes: offset,
		DayDelta:      DayDelta(zoned, primary),
	}, nil
}

// logSkips returns a SkipFunc that warns the first time an identifier fails
// and drops to debug level afterwards, so a bad entry does not flood the log
// once per second.
func logSkips(log *slog.Logger) SkipFunc {
	warned := make(map[string]bool)
	return func(id string, err error) {
		level := slog.LevelWarn
		if warned[id] {
			level = slog.LevelDebug
		}
		warned[id] = true
		log.Log(context.Background(), level, config.MsgSkippedZone,
			config.LogKeyZone, id,
			config.LogKeyError, err,
		)
	}
}

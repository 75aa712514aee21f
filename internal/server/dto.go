package server

import (
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/engine"
)

// SnapshotDTO is the JSON shape of a ClockSnapshot. Display strings are
// included so that thin clients need no timezone logic.
type SnapshotDTO struct {
	Instant     string     `json:"instant"`
	Sequence    uint64     `json:"sequence"`
	Primary     PrimaryDTO `json:"primary"`
	Secondaries []EntryDTO `json:"secondaries"`
}

// PrimaryDTO is the main clock.
type PrimaryDTO struct {
	ID            string `json:"id"`
	Time          string `json:"time"`
	Seconds       string `json:"seconds"`
	Date          string `json:"date"`
	Weekday       string `json:"weekday"`
	Offset        string `json:"offset"`
	OffsetMinutes int    `json:"offset_minutes"`
	Abbreviation  string `json:"abbreviation"`
}

// EntryDTO is one world clock row.
type EntryDTO struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	Time          string `json:"time"`
	Date          string `json:"date"`
	Offset        string `json:"offset"`
	OffsetMinutes int    `json:"offset_minutes"`
	DayDelta      int    `json:"day_delta"`
	DayDeltaText  string `json:"day_delta_text,omitempty"`
}

// NewSnapshotDTO renders a snapshot for the wire.
func NewSnapshotDTO(snap *engine.ClockSnapshot) SnapshotDTO {
	p := snap.Primary
	dto := SnapshotDTO{
		Instant:  snap.Instant.Format(config.LayoutISOInstant),
		Sequence: snap.Sequence,
		Primary: PrimaryDTO{
			ID:            p.ID,
			Time:          engine.FormatClock(p),
			Seconds:       engine.FormatSeconds(p),
			Date:          engine.FormatDate(p),
			Weekday:       engine.FormatWeekday(p),
			Offset:        engine.FormatOffset(p.OffsetMinutes()),
			OffsetMinutes: p.OffsetMinutes(),
			Abbreviation:  p.Abbreviation(),
		},
		Secondaries: make([]EntryDTO, 0, len(snap.Secondaries)),
	}
	for _, e := range snap.Secondaries {
		dto.Secondaries = append(dto.Secondaries, EntryDTO{
			ID:            e.ID,
			Label:         engine.Upper(e.Label),
			Time:          engine.FormatClock(e.Time),
			Date:          engine.FormatDate(e.Time),
			Offset:        engine.FormatOffset(e.OffsetMinutes),
			OffsetMinutes: e.OffsetMinutes,
			DayDelta:      e.DayDelta,
			DayDeltaText:  engine.FormatDayDelta(e.DayDelta),
		})
	}
	return dto
}

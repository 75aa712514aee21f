package server

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/engine"
)

// transition is a change of UTC offset within a zone.
type transition struct {
	at         time.Time // first instant with the new offset
	offsetFrom int       // seconds east of UTC before
	offsetTo   int       // seconds east of UTC after
	name       string    // abbreviation after
	dst        bool
}

// zoneTransitions lists the offset changes of loc during year. The time
// package does not expose its transition table, so the year is scanned day
// by day and each change is narrowed down to the second by bisection.
func zoneTransitions(loc *time.Location, year int) []transition {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	var out []transition
	prev := start
	_, prevOff := prev.In(loc).Zone()
	for t := start.Add(24 * time.Hour); !t.After(end); t = t.Add(24 * time.Hour) {
		_, off := t.In(loc).Zone()
		if off != prevOff {
			at := bisect(loc, prev, t, prevOff)
			name, _ := at.In(loc).Zone()
			out = append(out, transition{
				at:         at,
				offsetFrom: prevOff,
				offsetTo:   off,
				name:       name,
				dst:        at.In(loc).IsDST(),
			})
		}
		prev, prevOff = t, off
	}
	return out
}

// bisect returns the first second in (lo, hi] whose offset differs from
// offLo. The offset at lo must be offLo and differ at hi.
func bisect(loc *time.Location, lo, hi time.Time, offLo int) time.Time {
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2).Truncate(time.Second)
		if _, off := mid.In(loc).Zone(); off == offLo {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}

// formatICalOffset renders seconds east of UTC as "+HHMM".
func formatICalOffset(seconds int) string {
	return time.Unix(0, 0).In(time.FixedZone("", seconds)).Format(config.LayoutICalOffset)
}

func setRaw(c *ical.Component, name, value string) {
	p := ical.NewProp(name)
	p.Value = value
	c.Props.Set(p)
}

// newVTimezone builds the VTIMEZONE of id for year. A zone without
// transitions gets a single STANDARD observance.
func newVTimezone(id string, year int) (*ical.Component, error) {
	loc, err := engine.LoadZone(id)
	if err != nil {
		return nil, err
	}

	vtz := ical.NewComponent(config.ICalCompTimezone)
	vtz.Props.SetText(config.PropTZID, id)

	trans := zoneTransitions(loc, year)
	if len(trans) == 0 {
		name, off := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).In(loc).Zone()
		std := ical.NewComponent(config.ICalCompStandard)
		setRaw(std, config.PropDTStart, config.ICalEpochStart)
		setRaw(std, config.PropTZOffsetFrom, formatICalOffset(off))
		setRaw(std, config.PropTZOffsetTo, formatICalOffset(off))
		std.Props.SetText(config.PropTZName, name)
		vtz.Children = append(vtz.Children, std)
		return vtz, nil
	}

	for _, tr := range trans {
		kind := config.ICalCompStandard
		if tr.dst {
			kind = config.ICalCompDaylight
		}
		obs := ical.NewComponent(kind)
		// DTSTART is the local wall time of the onset, in the offset before it.
		onset := tr.at.In(time.FixedZone("", tr.offsetFrom))
		setRaw(obs, config.PropDTStart, onset.Format(config.LayoutICalDateUTC))
		setRaw(obs, config.PropTZOffsetFrom, formatICalOffset(tr.offsetFrom))
		setRaw(obs, config.PropTZOffsetTo, formatICalOffset(tr.offsetTo))
		obs.Props.SetText(config.PropTZName, tr.name)
		vtz.Children = append(vtz.Children, obs)
	}
	return vtz, nil
}

// RenderZones encodes a calendar holding one VTIMEZONE per identifier, in
// order, skipping duplicates.
func RenderZones(ids []string, year int) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		vtz, err := newVTimezone(id, year)
		if err != nil {
			return nil, err
		}
		cal.Children = append(cal.Children, vtz)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), nil
}

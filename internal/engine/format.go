package engine

import (
	"fmt"

	"github.com/tartampluch/go-worldclock/internal/config"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Pad2 renders n zero-padded to two digits.
func Pad2(n int) string {
	return fmt.Sprintf(config.FormatPad2, n)
}

// FormatClock renders "HH:MM".
func FormatClock(z ZonedTime) string {
	return fmt.Sprintf(config.FormatClock, z.Hour(), z.Minute())
}

// FormatSeconds renders "SS".
func FormatSeconds(z ZonedTime) string {
	return Pad2(z.Second())
}

// FormatDate renders "YYYY.MM.DD".
func FormatDate(z ZonedTime) string {
	return fmt.Sprintf(config.FormatDate, z.Year(), z.Month(), z.Day())
}

// FormatWeekday renders the upper-case English weekday ("MONDAY").
func FormatWeekday(z ZonedTime) string {
	return Upper(z.Weekday())
}

// Upper upper-cases display text (labels, weekdays). A fresh Caser is built
// per call because cases.Caser keeps state and is not safe for concurrent use.
func Upper(s string) string {
	return cases.Upper(language.English).String(s)
}

// FormatOffset renders a UTC offset as "UTC±HH". The sign is always shown
// ("UTC+00" for UTC). Offsets that are not whole hours keep their minutes:
// "UTC+05:30", "UTC-03:30". Whole-hour offsets always render as exactly
// "UTC±HH", with no minutes suffix.
func FormatOffset(minutes int) string {
	sign := config.SignPlus
	if minutes < 0 {
		sign = config.SignMinus
		minutes = -minutes
	}
	hours, rest := minutes/config.MinutesPerHour, minutes%config.MinutesPerHour
	if rest != 0 {
		return fmt.Sprintf(config.FormatOffsetMin, sign, hours, rest)
	}
	return fmt.Sprintf(config.FormatOffset, sign, hours)
}

// FormatDayDelta renders a day delta: "" for the same day, "(+1d)" when
// ahead, "(-1d)" when behind.
func FormatDayDelta(delta int) string {
	switch {
	case delta == 0:
		return ""
	case delta > 0:
		return fmt.Sprintf(config.FormatDayAhead, delta)
	default:
		return fmt.Sprintf(config.FormatDayBehind, delta)
	}
}

package ui

import (
	"fmt"
	"log/slog"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/engine"
)

// zoneRow displays one world clock: label and offset on the left, time and
// date on the right.
type zoneRow struct {
	label  *canvas.Text
	offset *canvas.Text
	time   *canvas.Text
	date   *canvas.Text
	box    *fyne.Container
}

func newZoneRow() *zoneRow {
	r := &zoneRow{
		label:  canvas.NewText("", theme.Color(theme.ColorNameForeground)),
		offset: canvas.NewText("", theme.Color(theme.ColorNameDisabled)),
		time:   canvas.NewText("", theme.Color(theme.ColorNameForeground)),
		date:   canvas.NewText("", theme.Color(theme.ColorNameDisabled)),
	}
	r.label.TextStyle = fyne.TextStyle{Bold: true}
	r.time.TextStyle = fyne.TextStyle{Monospace: true}
	r.time.Alignment = fyne.TextAlignTrailing
	r.date.Alignment = fyne.TextAlignTrailing

	r.box = container.NewBorder(nil, nil,
		container.NewVBox(r.label, r.offset),
		container.NewVBox(r.time, r.date),
	)
	return r
}

func (r *zoneRow) set(e engine.WorldClockEntry) {
	r.label.Text = engine.Upper(e.Label)
	r.offset.Text = rowOffsetText(e)
	r.time.Text = engine.FormatClock(e.Time)
	r.date.Text = engine.FormatDate(e.Time)
}

func (r *zoneRow) setScale(scale float32) {
	size := config.BaseRowTextSize * scale
	r.time.TextSize = size
	r.label.TextSize = size * config.CaptionTextRatio
	r.offset.TextSize = size * config.CaptionTextRatio
	r.date.TextSize = size * config.CaptionTextRatio
}

func (r *zoneRow) refresh() {
	r.label.Refresh()
	r.offset.Refresh()
	r.time.Refresh()
	r.date.Refresh()
}

// rowOffsetText renders "UTC+09" or "UTC-05 (-1d)".
func rowOffsetText(e engine.WorldClockEntry) string {
	text := fmt.Sprintf(config.FormatRowOffset, engine.FormatOffset(e.OffsetMinutes), engine.FormatDayDelta(e.DayDelta))
	return strings.TrimSpace(text)
}

// clockView is the content of the clock window. All methods must run on the
// Fyne UI goroutine.
type clockView struct {
	scale float32

	clock   *canvas.Text
	seconds *canvas.Text
	date    *canvas.Text
	weekday *canvas.Text
	primary *fyne.Container

	errorLabel *widget.Label

	rows  []*zoneRow
	list  *fyne.Container
	world *fyne.Container

	content *fyne.Container
}

func newClockView() *clockView {
	v := &clockView{
		scale:   1,
		clock:   canvas.NewText("", theme.Color(theme.ColorNameForeground)),
		seconds: canvas.NewText("", theme.Color(theme.ColorNameDisabled)),
		date:    canvas.NewText("", theme.Color(theme.ColorNameForeground)),
		weekday: canvas.NewText("", theme.Color(theme.ColorNameDisabled)),
	}
	v.clock.TextStyle = fyne.TextStyle{Monospace: true, Bold: true}
	v.seconds.TextStyle = fyne.TextStyle{Monospace: true}
	v.date.Alignment = fyne.TextAlignCenter
	v.weekday.Alignment = fyne.TextAlignCenter

	v.primary = container.NewVBox(
		container.NewCenter(container.NewHBox(v.clock, v.seconds)),
		v.date,
		v.weekday,
	)

	v.errorLabel = widget.NewLabel("")
	v.errorLabel.Wrapping = fyne.TextWrapWord
	v.errorLabel.Alignment = fyne.TextAlignCenter
	v.errorLabel.Importance = widget.DangerImportance
	v.errorLabel.Hide()

	v.list = container.NewVBox()
	v.world = container.NewVBox(widget.NewSeparator(), v.list)
	v.world.Hide()

	v.content = container.NewPadded(container.NewVBox(v.primary, v.errorLabel, v.world))
	v.setScale(1)
	return v
}

// update renders a snapshot. An empty secondary list hides the world clock
// section entirely.
func (v *clockView) update(snap *engine.ClockSnapshot) {
	if snap == nil {
		return
	}

	v.errorLabel.Hide()
	v.primary.Show()

	v.clock.Text = engine.FormatClock(snap.Primary)
	v.seconds.Text = engine.FormatSeconds(snap.Primary)
	v.date.Text = engine.FormatDate(snap.Primary)
	v.weekday.Text = engine.FormatWeekday(snap.Primary)
	v.clock.Refresh()
	v.seconds.Refresh()
	v.date.Refresh()
	v.weekday.Refresh()

	v.resizeRows(len(snap.Secondaries))
	for i, entry := range snap.Secondaries {
		v.rows[i].set(entry)
		v.rows[i].refresh()
	}

	if len(snap.Secondaries) == 0 {
		v.world.Hide()
	} else {
		v.world.Show()
	}
}

// resizeRows keeps exactly n rows, reusing existing ones.
func (v *clockView) resizeRows(n int) {
	if len(v.rows) == n {
		return
	}
	for len(v.rows) < n {
		r := newZoneRow()
		r.setScale(v.scale)
		v.rows = append(v.rows, r)
	}
	v.rows = v.rows[:n]

	objects := make([]fyne.CanvasObject, 0, n)
	for _, r := range v.rows {
		objects = append(objects, r.box)
	}
	v.list.Objects = objects
	v.list.Refresh()
}

// showError replaces the primary clock with a message. Nothing else is shown
// so a failed zone never renders as a zeroed time.
func (v *clockView) showError(msg string) {
	v.primary.Hide()
	v.world.Hide()
	v.errorLabel.SetText(msg)
	v.errorLabel.Show()
}

// setScale applies a clock size multiplier to every text.
func (v *clockView) setScale(scale float32) {
	if scale <= 0 {
		scale = 1
	}
	v.scale = scale

	clockSize := config.BaseClockTextSize * scale
	rowSize := config.BaseRowTextSize * scale
	v.clock.TextSize = clockSize
	v.seconds.TextSize = clockSize * config.SecondsTextRatio
	v.date.TextSize = rowSize * config.DateTextRatio
	v.weekday.TextSize = rowSize * config.CaptionTextRatio
	for _, r := range v.rows {
		r.setScale(scale)
	}
	v.content.Refresh()
}

// display returns the clock view, building it for apps assembled by hand.
func (app *WorldClockApp) display() *clockView {
	if app.view == nil {
		app.view = newClockView()
	}
	return app.view
}

// ShowClockWindow displays the clock. Closing the window hides it; the app
// keeps running in the system tray.
func (app *WorldClockApp) ShowClockWindow() {
	if app.ClockWindow != nil {
		app.ClockWindow.Show()
		app.ClockWindow.RequestFocus()
		return
	}

	slog.Info(config.MsgClockWinOpen, config.LogKeyComponent, config.CompUI)
	w := app.App.NewWindow(app.GetMsg(config.TKeyWinClock))
	app.ClockWindow = w

	w.SetContent(app.display().content)
	w.Resize(fyne.NewSize(config.ClockWindowWidth, config.ClockWindowHeight))
	w.SetCloseIntercept(func() { w.Hide() })
	w.Show()
}

package ui

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/engine"
	"github.com/tartampluch/go-worldclock/internal/zonesource"
)

// contactRow is a ContactZone with its current local time, as displayed.
type contactRow struct {
	zonesource.ContactZone
	local   string
	minutes int // Offset, for sorting by time
}

// contactRows resolves the current local time of every contact zone at now.
func contactRows(zones []zonesource.ContactZone, now time.Time) []contactRow {
	rows := make([]contactRow, 0, len(zones))
	for _, z := range zones {
		zt, err := engine.NewZonedTime(now, z.ID)
		if err != nil {
			continue
		}
		rows = append(rows, contactRow{
			ContactZone: z,
			local:       fmt.Sprintf(config.FormatRowOffset, engine.FormatClock(zt), engine.FormatOffset(zt.OffsetMinutes())),
			minutes:     zt.OffsetMinutes(),
		})
	}
	return rows
}

// sortContactRows orders rows by the given column. Ties fall back to the
// contact name so the order is stable across refreshes.
func sortContactRows(rows []contactRow, col int, asc bool) {
	less := func(a, b contactRow) bool {
		switch {
		case col == config.ColIDZone && a.ID != b.ID:
			return a.ID < b.ID
		case col == config.ColIDTime && a.minutes != b.minutes:
			return a.minutes < b.minutes
		}
		return strings.ToLower(a.Contact) < strings.ToLower(b.Contact)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if asc {
			return less(rows[i], rows[j])
		}
		return less(rows[j], rows[i])
	})
}

// ShowContactsWindow lists the imported contact zones with their current
// time. Only one such window exists at a time.
func (app *WorldClockApp) ShowContactsWindow() {
	if app.contactsWindow != nil {
		app.contactsWindow.RequestFocus()
		return
	}

	app.contactsWindow = app.App.NewWindow(app.GetMsg(config.TKeyWinContacts))
	app.contactsWindow.Resize(fyne.NewSize(config.ContactsWinWidth, config.ContactsWinHeight))

	rows := contactRows(app.Contacts(), app.Clock.Now())

	slog.Info(config.MsgContactsOpen,
		config.LogKeyComponent, config.CompUI,
		config.LogKeyCount, len(rows))

	currentSortCol := config.ColIDContact
	sortAsc := true

	performSort := func() {
		sortContactRows(rows, currentSortCol, sortAsc)
		slog.Debug(config.MsgContactsSorted,
			config.LogKeyComponent, config.CompUI,
			config.LogKeySortCol, currentSortCol,
			config.LogKeySortAsc, sortAsc)
	}
	performSort()

	table := widget.NewTable(
		func() (int, int) {
			return len(rows), config.ColCount
		},
		func() fyne.CanvasObject {
			return widget.NewLabel(config.TablePlaceholder)
		},
		func(id widget.TableCellID, o fyne.CanvasObject) {
			label := o.(*widget.Label)
			if id.Row >= len(rows) {
				return
			}
			r := rows[id.Row]
			switch id.Col {
			case config.ColIDContact:
				label.SetText(r.Contact)
			case config.ColIDZone:
				label.SetText(r.ID)
			case config.ColIDTime:
				label.SetText(r.local)
			}
		},
	)

	var refreshTable func()

	table.ShowHeaderRow = true
	table.CreateHeader = func() fyne.CanvasObject {
		return widget.NewButton(config.TablePlaceholder, func() {})
	}
	table.UpdateHeader = func(id widget.TableCellID, o fyne.CanvasObject) {
		btn := o.(*widget.Button)

		var titleKey string
		switch id.Col {
		case config.ColIDContact:
			titleKey = config.TKeyColContact
		case config.ColIDZone:
			titleKey = config.TKeyColZone
		case config.ColIDTime:
			titleKey = config.TKeyColTime
		}

		text := app.GetMsg(titleKey)
		if id.Col == currentSortCol {
			if sortAsc {
				text += config.SortIconAsc
			} else {
				text += config.SortIconDesc
			}
		}
		btn.SetText(text)

		btn.OnTapped = func() {
			if currentSortCol == id.Col {
				sortAsc = !sortAsc
			} else {
				currentSortCol = id.Col
				sortAsc = true
			}
			refreshTable()
		}
	}

	table.SetColumnWidth(config.ColIDContact, config.ColWidthContact)
	table.SetColumnWidth(config.ColIDZone, config.ColWidthZone)
	table.SetColumnWidth(config.ColIDTime, config.ColWidthTime)

	refreshTable = func() {
		performSort()
		table.Refresh()
	}

	app.contactsWindow.SetContent(container.NewBorder(nil, nil, nil, nil, table))
	app.contactsWindow.SetOnClosed(func() {
		app.contactsWindow = nil
	})
	app.contactsWindow.Show()
}

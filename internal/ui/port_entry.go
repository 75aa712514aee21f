package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/mobile"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-worldclock/internal/config"
)

// PortEntry is an Entry for a TCP port: digits only, at most five of them.
// A digit-only paste can still overflow, so the Validator has the last word.
type PortEntry struct {
	widget.Entry
}

// NewPortEntry creates an empty PortEntry.
func NewPortEntry() *PortEntry {
	entry := &PortEntry{}
	entry.ExtendBaseWidget(entry)
	return entry
}

// TypedRune drops anything that is not a digit or would exceed the longest
// valid port.
func (e *PortEntry) TypedRune(r rune) {
	if r < '0' || r > '9' {
		return
	}
	if len(e.Text) >= config.PortMaxDigits && e.SelectedText() == "" {
		return
	}
	e.Entry.TypedRune(r)
}

// TypedShortcut only lets a paste through when the clipboard holds digits.
func (e *PortEntry) TypedShortcut(s fyne.Shortcut) {
	if paste, ok := s.(*fyne.ShortcutPaste); ok && paste.Clipboard != nil {
		if !isDigits(paste.Clipboard.Content()) {
			return
		}
	}
	e.Entry.TypedShortcut(s)
}

// Keyboard shows a numeric keypad on mobile devices.
func (e *PortEntry) Keyboard() mobile.KeyboardType {
	return mobile.NumberKeyboard
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/engine"
	"github.com/tartampluch/go-worldclock/internal/settings"
	"github.com/zalando/go-keyring"
)

// settingsWidgets holds references to UI elements to simplify data retrieval during save.
type settingsWidgets struct {
	primaryEntry *widget.Entry
	othersEntry  *widget.Entry
	sizeSelect   *widget.Select
	langSelect   *widget.Select
	portEntry    *PortEntry
	ntpEntry     *widget.Entry

	modeSelect *widget.Select
	urlEntry   *widget.Entry
	userEntry  *widget.Entry
	passEntry  *widget.Entry
	pathEntry  *widget.Entry
}

// sizeKeys lists the clock sizes in display order with their translation keys.
var sizeKeys = []struct{ value, key string }{
	{config.SizeSM, config.TKeySizeSM},
	{config.SizeMD, config.TKeySizeMD},
	{config.SizeLG, config.TKeySizeLG},
	{config.SizeXL, config.TKeySizeXL},
}

// ShowSettingsWindow displays the configuration dialog.
func (app *WorldClockApp) ShowSettingsWindow() {
	if app.Window != nil {
		slog.Debug(config.MsgSettingsFocus, config.LogKeyComponent, config.CompUISet)
		app.Window.RequestFocus()
		return
	}

	slog.Info(config.MsgSettingsOpen, config.LogKeyComponent, config.CompUISet)
	w := app.App.NewWindow(app.GetMsg(config.TKeyWinSettings))
	app.Window = w

	current := app.Settings()
	sw := app.newSettingsWidgets(current)

	var refreshLayout func()
	onLayoutChange := func() {
		if refreshLayout != nil {
			refreshLayout()
		}
	}

	zonesCard := app.buildZonesCard(sw)
	generalCard := app.buildGeneralCard(sw)
	sourceCard := app.buildSourceCard(w, sw, current.Contacts.Mode, onLayoutChange)

	btnSave := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnSave), theme.DocumentSaveIcon(), func() {
		if err := sw.validate(); err != nil {
			dialog.ShowError(err, w)
			return
		}
		app.saveSettings(sw, w)
	})
	btnSave.Importance = widget.HighImportance
	btnCancel := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnCancel), theme.CancelIcon(), func() { w.Close() })

	footerLabel := widget.NewLabel(fmt.Sprintf(app.GetMsg(config.TKeyLblFooter), config.Version))
	footerLabel.Alignment = fyne.TextAlignCenter
	footerLabel.TextStyle = fyne.TextStyle{Italic: true}

	paddedContent := container.NewPadded(container.NewVBox(
		zonesCard,
		generalCard,
		sourceCard,
		container.NewGridWithColumns(config.LayoutColumnsDouble, btnCancel, btnSave),
		footerLabel,
	))

	refreshLayout = func() {
		paddedContent.Refresh()
		w.Resize(fyne.NewSize(config.SettingsWindowWidth, paddedContent.MinSize().Height))
	}

	w.SetContent(paddedContent)
	w.SetFixedSize(true)
	w.SetOnClosed(func() { app.Window = nil })

	refreshLayout()
	w.Show()
}

// newSettingsWidgets builds the inputs, pre-filled from s.
func (app *WorldClockApp) newSettingsWidgets(s settings.Settings) *settingsWidgets {
	sw := &settingsWidgets{}

	sw.primaryEntry = widget.NewEntry()
	sw.primaryEntry.SetText(s.Primary)
	sw.primaryEntry.PlaceHolder = config.DefaultPrimaryZone
	sw.primaryEntry.Validator = func(v string) error {
		if _, err := engine.LoadZone(v); err != nil {
			return errors.New(app.localizeZones(config.TKeyErrPrimary, "Zone", strings.TrimSpace(v), config.FallbackPrimaryErr))
		}
		return nil
	}

	sw.othersEntry = widget.NewMultiLineEntry()
	sw.othersEntry.SetText(strings.Join(s.Secondaries, "\n"))
	sw.othersEntry.PlaceHolder = config.PlaceholderZones
	sw.othersEntry.SetMinRowsVisible(config.ZoneListRows)
	sw.othersEntry.Validator = func(v string) error {
		unknown := settings.Settings{Secondaries: splitZones(v)}.UnknownZones()
		if len(unknown) > 0 {
			return errors.New(app.localizeZones(config.TKeyErrZones, "Zones", strings.Join(unknown, config.ZoneListSep), config.FallbackZonesErr))
		}
		return nil
	}

	sizeOptions := make([]string, 0, len(sizeKeys))
	for _, sk := range sizeKeys {
		sizeOptions = append(sizeOptions, app.GetMsg(sk.key))
	}
	sw.sizeSelect = widget.NewSelect(sizeOptions, nil)
	for _, sk := range sizeKeys {
		if sk.value == s.Size {
			sw.sizeSelect.SetSelected(app.GetMsg(sk.key))
		}
	}

	sw.langSelect = widget.NewSelect(app.SupportedLanguages, nil)
	sw.langSelect.SetSelected(s.Language)

	sw.portEntry = NewPortEntry()
	sw.portEntry.SetText(s.Port)
	sw.portEntry.Validator = app.portValidator

	sw.ntpEntry = widget.NewEntry()
	sw.ntpEntry.SetText(s.NTPServer)
	sw.ntpEntry.PlaceHolder = config.PlaceholderNTP

	sw.modeSelect = widget.NewSelect([]string{
		app.GetMsg(config.TKeyModeNone),
		app.GetMsg(config.TKeyModeCardDAV),
		app.GetMsg(config.TKeyModeLocal),
	}, nil)

	sw.urlEntry = widget.NewEntry()
	sw.urlEntry.SetText(s.Contacts.URL)
	sw.urlEntry.PlaceHolder = config.PlaceholderURL

	sw.userEntry = widget.NewEntry()
	sw.userEntry.SetText(s.Contacts.User)

	sw.passEntry = widget.NewPasswordEntry()
	if user := s.Contacts.User; user != "" {
		if pwd, err := keyring.Get(config.KeyringService, user); err == nil {
			sw.passEntry.SetText(pwd)
		}
	}

	sw.pathEntry = widget.NewEntry()
	sw.pathEntry.SetText(s.Contacts.Path)

	return sw
}

// validate runs the validators whose failure must block saving.
func (sw *settingsWidgets) validate() error {
	return errors.Join(
		sw.primaryEntry.Validate(),
		sw.othersEntry.Validate(),
		sw.portEntry.Validate(),
	)
}

// portValidator maps settings.ValidatePort errors to translated messages.
func (app *WorldClockApp) portValidator(v string) error {
	err := settings.ValidatePort(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, settings.ErrPortRequired):
		return errors.New(app.GetMsg(config.TKeyErrPortReq))
	case errors.Is(err, settings.ErrPortNumber):
		return errors.New(app.GetMsg(config.TKeyErrPortNum))
	default:
		return errors.New(app.GetMsg(config.TKeyErrPortRange))
	}
}

// localizeZones renders a zone error message with one template field.
func (app *WorldClockApp) localizeZones(key, field, value, fallback string) string {
	if app.Localizer != nil {
		msg, err := app.Localizer.Localize(&i18n.LocalizeConfig{
			MessageID:    key,
			TemplateData: map[string]interface{}{field: value},
		})
		if err == nil {
			return msg
		}
	}
	return fmt.Sprintf(fallback, value)
}

// buildZonesCard groups the primary zone and the world clock list.
func (app *WorldClockApp) buildZonesCard(sw *settingsWidgets) *widget.Card {
	itemPrimary := widget.NewFormItem(app.GetMsg(config.TKeyLblPrimary), sw.primaryEntry)
	itemPrimary.HintText = app.GetMsg(config.TKeyHelpPrimary)

	itemOthers := widget.NewFormItem(app.GetMsg(config.TKeyLblOthers), sw.othersEntry)
	itemOthers.HintText = app.GetMsg(config.TKeyHelpOthers)

	return widget.NewCard(app.GetMsg(config.TKeyLblZones), "", widget.NewForm(itemPrimary, itemOthers))
}

// buildGeneralCard groups display, language, server and time source options.
func (app *WorldClockApp) buildGeneralCard(sw *settingsWidgets) *widget.Card {
	itemSize := widget.NewFormItem(app.GetMsg(config.TKeyLblSize), sw.sizeSelect)

	itemLang := widget.NewFormItem(app.GetMsg(config.TKeyLblLanguage), sw.langSelect)
	itemLang.HintText = app.GetMsg(config.TKeyHelpLanguage)

	itemPort := widget.NewFormItem(app.GetMsg(config.TKeyLblPort), sw.portEntry)
	itemPort.HintText = app.GetMsg(config.TKeyHelpPort)

	itemNTP := widget.NewFormItem(app.GetMsg(config.TKeyLblNTP), sw.ntpEntry)
	itemNTP.HintText = app.GetMsg(config.TKeyHelpNTP)

	form := widget.NewForm(itemSize, itemLang, itemPort, itemNTP)
	return widget.NewCard(app.GetMsg(config.TKeyLblGeneral), "", form)
}

// buildSourceCard constructs the contact source selection UI.
func (app *WorldClockApp) buildSourceCard(w fyne.Window, sw *settingsWidgets, mode string, onLayoutChange func()) *widget.Card {
	browseBtn := widget.NewButton(app.GetMsg(config.TKeyBtnBrowse), func() {
		d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
			if err == nil && r != nil {
				sw.pathEntry.SetText(r.URI().Path())
				_ = r.Close()
			}
		}, w)
		d.SetFilter(storage.NewExtensionFileFilter([]string{config.ExtVCF, config.ExtVCard}))
		d.Show()
	})

	itemURL := widget.NewFormItem(app.GetMsg(config.TKeyLblURL), sw.urlEntry)
	itemURL.HintText = app.GetMsg(config.TKeyHelpURL)
	webForm := widget.NewForm(
		itemURL,
		widget.NewFormItem(app.GetMsg(config.TKeyLblUser), sw.userEntry),
		widget.NewFormItem(app.GetMsg(config.TKeyLblPass), sw.passEntry),
	)

	localForm := container.NewBorder(nil, nil, nil, browseBtn, sw.pathEntry)

	applyVisibility := func(selected string) {
		webForm.Hide()
		localForm.Hide()
		switch app.modeValue(selected) {
		case config.SourceModeWeb:
			webForm.Show()
		case config.SourceModeLocal:
			localForm.Show()
		}
	}

	sw.modeSelect.OnChanged = func(selected string) {
		applyVisibility(selected)
		if onLayoutChange != nil {
			onLayoutChange()
		}
	}
	sw.modeSelect.SetSelected(app.modeLabel(mode))
	applyVisibility(sw.modeSelect.Selected)

	return widget.NewCard(app.GetMsg(config.TKeyLblSource), "", container.NewVBox(sw.modeSelect, webForm, localForm))
}

func (app *WorldClockApp) modeLabel(mode string) string {
	switch mode {
	case config.SourceModeWeb:
		return app.GetMsg(config.TKeyModeCardDAV)
	case config.SourceModeLocal:
		return app.GetMsg(config.TKeyModeLocal)
	default:
		return app.GetMsg(config.TKeyModeNone)
	}
}

func (app *WorldClockApp) modeValue(label string) string {
	switch label {
	case app.GetMsg(config.TKeyModeCardDAV):
		return config.SourceModeWeb
	case app.GetMsg(config.TKeyModeLocal):
		return config.SourceModeLocal
	default:
		return config.SourceModeNone
	}
}

func (app *WorldClockApp) sizeValue(label string) string {
	for _, sk := range sizeKeys {
		if app.GetMsg(sk.key) == label {
			return sk.value
		}
	}
	return config.DefaultSize
}

// collect reads the widgets back into a configuration.
func (app *WorldClockApp) collect(sw *settingsWidgets) settings.Settings {
	return settings.Settings{
		Primary:     sw.primaryEntry.Text,
		Secondaries: splitZones(sw.othersEntry.Text),
		Size:        app.sizeValue(sw.sizeSelect.Selected),
		Language:    sw.langSelect.Selected,
		Port:        sw.portEntry.Text,
		NTPServer:   sw.ntpEntry.Text,
		Contacts: settings.Contacts{
			Mode: app.modeValue(sw.modeSelect.Selected),
			URL:  sw.urlEntry.Text,
			User: sw.userEntry.Text,
			Path: sw.pathEntry.Text,
		},
	}.Sanitize()
}

// saveSettings persists the configuration. The preference listener restarts
// the engine; contacts are re-imported since the source may have changed.
func (app *WorldClockApp) saveSettings(sw *settingsWidgets, w fyne.Window) {
	slog.Info(config.MsgSettingsSaved, config.LogKeyComponent, config.CompUISet)

	s := app.collect(sw)
	s.Save(app.Preferences)

	if s.Contacts.User != "" && sw.passEntry.Text != "" {
		if err := keyring.Set(config.KeyringService, s.Contacts.User, sw.passEntry.Text); err != nil {
			slog.Error(config.MsgKeyringSaveErr, config.LogKeyError, err, config.LogKeyComponent, config.CompUISet)
		}
	}

	app.UpdateLocalizer()
	app.RefreshTrayMenu()
	go app.importContacts(false)

	w.Close()
}

// splitZones reads one identifier per line, ignoring blank lines.
func splitZones(text string) []string {
	var zones []string
	for _, line := range strings.Split(text, "\n") {
		if id := strings.TrimSpace(line); id != "" {
			zones = append(zones, id)
		}
	}
	return zones
}

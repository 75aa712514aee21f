package ui

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/engine"
	"github.com/tartampluch/go-worldclock/internal/server"
	"github.com/tartampluch/go-worldclock/internal/settings"
	"github.com/tartampluch/go-worldclock/internal/zonesource"
	"github.com/zalando/go-keyring"
)

//go:embed Icon.png
var appIconData []byte

// Signals carried by configChan besides preference changes.
const (
	signalPrefs    = "preferences"
	signalFile     = "config_file"
	signalContacts = "contacts"
)

// WorldClockApp encapsulates the UI state, preferences, and the clock engine
// lifecycle.
type WorldClockApp struct {
	App         fyne.App
	Window      fyne.Window // Settings window, nil when closed
	ClockWindow fyne.Window
	Preferences fyne.Preferences
	I18nBundle  *i18n.Bundle
	Localizer   *i18n.Localizer
	Ctx         context.Context

	Server   *server.SnapshotServer
	Importer *zonesource.Importer
	Clock    engine.Clock // Host clock; tests inject a fixed one

	Tray desktop.App
	Menu *fyne.Menu

	TrayStatusItem   *fyne.MenuItem
	TrayShowItem     *fyne.MenuItem
	TraySettingsItem *fyne.MenuItem
	TrayReloadItem   *fyne.MenuItem
	TrayContactsItem *fyne.MenuItem

	SupportedLanguages []string
	configChan         chan string

	// override replaces the preference store when a YAML file drives the app.
	override atomic.Pointer[settings.Settings]

	engineMu sync.Mutex
	engine   *engine.Engine

	// Contact zones imported from the address book.
	ContactsMut    sync.RWMutex
	ContactZones   []zonesource.ContactZone
	contactsWindow fyne.Window

	view *clockView
}

// NewWorldClockApp constructs the application and wires dependencies.
func NewWorldClockApp(a fyne.App, ctx context.Context, srv *server.SnapshotServer, importer *zonesource.Importer) *WorldClockApp {
	a.SetIcon(fyne.NewStaticResource(config.IconFile, appIconData))

	return &WorldClockApp{
		App:                a,
		Preferences:        a.Preferences(),
		Ctx:                ctx,
		Server:             srv,
		Importer:           importer,
		Clock:              engine.RealClock{},
		SupportedLanguages: config.SupportedLanguages,
		configChan:         make(chan string, config.ChannelBufferSize),
		view:               newClockView(),
	}
}

// Run launches the application services and the main UI loop.
func (app *WorldClockApp) Run() {
	app.SetupI18n()
	app.watchPreferences()

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyPort, app.Server.Port,
			config.LogKeyComponent, config.CompUI)

		if err := app.Server.Start(app.Ctx); err != nil {
			slog.Error(config.ErrServerStartup,
				config.LogKeyError, err,
				config.LogKeyComponent, config.CompUI)

			app.App.SendNotification(fyne.NewNotification(
				config.TitleStartupError,
				fmt.Sprintf(config.MsgPortBusy, app.Server.Port)))
		}
	}()

	if desk, ok := app.App.(desktop.App); ok {
		app.Tray = desk
		app.Tray.SetSystemTrayIcon(app.App.Icon())
		app.setupTrayMenu()
	} else {
		slog.Warn(config.ErrTrayNotSupported,
			config.LogKeyComponent, config.CompUI)
	}

	app.ShowClockWindow()

	go app.importContacts(false)
	go app.clockWorker()
	app.App.Run()
}

// Settings returns the effective configuration: the YAML override when one
// is loaded, the saved preferences otherwise.
func (app *WorldClockApp) Settings() settings.Settings {
	if s := app.override.Load(); s != nil {
		return *s
	}
	return settings.FromPreferences(app.Preferences).Sanitize()
}

// SetOverride makes s the effective configuration and restarts the engine.
// It is used when the app runs from a YAML file that may change on disk.
func (app *WorldClockApp) SetOverride(s settings.Settings) {
	s = s.Sanitize()
	app.override.Store(&s)
	app.signal(signalFile)
}

// watchPreferences turns preference writes into an engine restart.
func (app *WorldClockApp) watchPreferences() {
	app.Preferences.AddChangeListener(func() {
		slog.Debug(config.MsgPrefsChanged, config.LogKeyComponent, config.CompUI)
		app.signal(signalPrefs)
	})
}

// signal wakes the clock worker. A pending signal already covers a new one.
func (app *WorldClockApp) signal(reason string) {
	select {
	case app.configChan <- reason:
	default:
	}
}

// setupTrayMenu constructs the system tray menu. Fyne appends Quit itself.
func (app *WorldClockApp) setupTrayMenu() {
	app.TrayStatusItem = fyne.NewMenuItem(config.FallbackTrayLabel, func() {
		app.ShowClockWindow()
	})

	app.TrayShowItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuShow), func() {
		app.ShowClockWindow()
	})

	app.TrayContactsItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuContacts), func() {
		app.ShowContactsWindow()
	})

	app.TrayReloadItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuReload), func() {
		go app.importContacts(true)
	})

	app.TraySettingsItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuSettings), func() {
		app.ShowSettingsWindow()
	})

	app.Menu = fyne.NewMenu(config.AppName,
		app.TrayStatusItem,
		fyne.NewMenuItemSeparator(),
		app.TrayShowItem,
		app.TrayContactsItem,
		app.TrayReloadItem,
		app.TraySettingsItem,
	)

	if app.Tray != nil {
		app.Tray.SetSystemTrayMenu(app.Menu)
	}
}

// RefreshTrayMenu updates localized labels in the tray menu.
func (app *WorldClockApp) RefreshTrayMenu() {
	if app.Menu == nil {
		return
	}
	app.TrayShowItem.Label = app.GetMsg(config.TKeyMenuShow)
	app.TrayContactsItem.Label = app.GetMsg(config.TKeyMenuContacts)
	app.TrayReloadItem.Label = app.GetMsg(config.TKeyMenuReload)
	app.TraySettingsItem.Label = app.GetMsg(config.TKeyMenuSettings)
	app.Menu.Refresh()
}

// clockWorker owns the engine. Every configuration signal stops the running
// engine and starts a new one with the current zones.
func (app *WorldClockApp) clockWorker() {
	log := slog.With(config.LogKeyComponent, config.CompUI)
	log.Info(config.MsgWorkerStart)

	for {
		stop := app.startEngine()

		select {
		case <-app.Ctx.Done():
			stop()
			log.Info(config.MsgWorkerStop)
			return

		case reason := <-app.configChan:
			log.Info(config.MsgEngineRestart, config.LogKeyKey, reason)
			stop()
			fyne.Do(func() {
				app.UpdateLocalizer()
				app.RefreshTrayMenu()
			})
		}
	}
}

// startEngine builds and starts an engine for the current settings and wires
// its snapshots to the clock view and the HTTP server. The returned function
// tears everything down and waits for the consumers to exit.
func (app *WorldClockApp) startEngine() (stop func()) {
	s := app.Settings()
	zones := zonesource.Merge(s.Secondaries, app.Contacts())

	eng := engine.New(engine.Options{
		Primary:     s.Primary,
		Secondaries: zones,
		Clock:       app.Clock,
	})

	app.engineMu.Lock()
	app.engine = eng
	app.engineMu.Unlock()

	ctx, cancel := context.WithCancel(app.Ctx)
	scale := s.Scale()

	// The previous engine's snapshot describes other zones.
	if app.Server != nil {
		app.Server.Reset()
	}

	if err := eng.Start(ctx); err != nil {
		if app.Server != nil {
			app.Server.Fail(err)
		}
		primary := s.Primary
		fyne.Do(func() {
			app.display().setScale(scale)
			app.display().showError(app.primaryErrorText(primary))
		})
		app.updateTrayStatus(-1)
		return func() {
			cancel()
			eng.Stop()
		}
	}

	views, cancelViews := eng.Subscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fyne.Do(func() { app.display().setScale(scale) })
		for snap := range views {
			fyne.Do(func() { app.display().update(snap) })
		}
	}()

	if app.Server != nil {
		feed, cancelFeed := eng.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancelFeed()
			app.Server.Follow(ctx, feed)
		}()
	}

	app.updateTrayStatus(len(eng.Current().Secondaries))

	return func() {
		cancel()
		eng.Stop()
		cancelViews()
		wg.Wait()
	}
}

// Engine returns the engine currently driving the display.
func (app *WorldClockApp) Engine() *engine.Engine {
	app.engineMu.Lock()
	defer app.engineMu.Unlock()
	return app.engine
}

// Contacts returns a copy of the imported contact zones.
func (app *WorldClockApp) Contacts() []zonesource.ContactZone {
	app.ContactsMut.RLock()
	defer app.ContactsMut.RUnlock()
	return append([]zonesource.ContactZone(nil), app.ContactZones...)
}

// importContacts refreshes the contact zones from the configured address
// book, then restarts the engine so they appear on the clock.
func (app *WorldClockApp) importContacts(manual bool) {
	if app.Importer == nil {
		return
	}
	s := app.Settings()
	if s.Contacts.Mode == config.SourceModeNone {
		return
	}

	zones, err := app.Importer.Import(app.Ctx, app.loadSourceConfig(s))
	if err != nil {
		slog.Error(config.ErrImportFailed,
			config.LogKeyError, err,
			config.LogKeyComponent, config.CompUI)
		if manual {
			app.App.SendNotification(fyne.NewNotification(config.AppName, app.GetMsg(config.TKeyNotifImportErr)))
		}
		return
	}

	app.ContactsMut.Lock()
	app.ContactZones = zones
	app.ContactsMut.Unlock()

	slog.Info(config.MsgImportDone,
		config.LogKeyImported, len(zones),
		config.LogKeyComponent, config.CompUI)

	if manual {
		count := len(zones)
		fyne.Do(func() {
			app.App.SendNotification(fyne.NewNotification(config.AppName, app.importDoneText(count)))
		})
	}
	app.signal(signalContacts)
}

// loadSourceConfig completes the contact source with the keyring password.
func (app *WorldClockApp) loadSourceConfig(s settings.Settings) zonesource.SourceConfig {
	var pass string
	if user := s.Contacts.User; user != "" {
		if p, err := keyring.Get(config.KeyringService, user); err == nil {
			pass = p
		} else {
			slog.Debug(config.MsgPassFail,
				config.LogKeyUser, user,
				config.LogKeyError, err,
				config.LogKeyComponent, config.CompUI)
		}
	}
	return s.Source(pass)
}

// updateTrayStatus shows how many world clocks are displayed; a negative
// count marks a failed engine. Safe to call from any goroutine.
func (app *WorldClockApp) updateTrayStatus(count int) {
	fyne.Do(func() { app.setTrayStatus(count) })
}

func (app *WorldClockApp) setTrayStatus(count int) {
	if app.Menu == nil || app.TrayStatusItem == nil {
		return
	}

	var label string
	switch {
	case count < 0:
		label = config.FallbackTrayError
	case count == 0:
		label = app.GetMsg(config.TKeyTrayStatusZero)
		if label == config.TKeyTrayStatusZero {
			label = config.FallbackTrayLabel
		}
	default:
		label = app.localizeCount(config.TKeyTrayStatus, count)
		if label == "" {
			label = fmt.Sprintf(config.FallbackTrayDefault, count)
		}
	}

	app.TrayStatusItem.Label = label
	app.Menu.Refresh()
}

func (app *WorldClockApp) importDoneText(count int) string {
	if msg := app.localizeCount(config.TKeyNotifImportOK, count); msg != "" {
		return msg
	}
	return fmt.Sprintf(config.FallbackImportOK, count)
}

func (app *WorldClockApp) primaryErrorText(zone string) string {
	return app.localizeZones(config.TKeyErrPrimary, "Zone", zone, config.FallbackPrimaryErr)
}

// localizeCount renders a pluralized message, or "" when it is unavailable.
func (app *WorldClockApp) localizeCount(key string, count int) string {
	if app.Localizer == nil {
		return ""
	}
	msg, err := app.Localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: map[string]interface{}{"Count": count},
		PluralCount:  count,
	})
	if err != nil {
		return ""
	}
	return msg
}

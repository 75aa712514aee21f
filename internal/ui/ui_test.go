package ui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/engine"
	"github.com/tartampluch/go-worldclock/internal/server"
	"github.com/tartampluch/go-worldclock/internal/settings"
	"github.com/tartampluch/go-worldclock/internal/zonesource"
	"github.com/zalando/go-keyring"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockFetcher simulates the zonesource.VCardFetcher interface using testify/mock.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url, user, pass string) (io.ReadCloser, error) {
	args := m.Called(ctx, url, user, pass)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// MockClock always returns the same instant.
type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

// MockTray implements minimal system tray functionality for headless testing.
type MockTray struct {
	Menu *fyne.Menu
}

func (m *MockTray) SetSystemTrayMenu(menu *fyne.Menu) {
	m.Menu = menu
}

func (m *MockTray) SetSystemTrayIcon(icon fyne.Resource) {}
func (m *MockTray) SetSystemTrayWindow(w fyne.Window)    {}
func (m *MockTray) Run()                                 {}
func (m *MockTray) Quit()                                {}

// -----------------------------------------------------------------------------
// Test Setup Helper
// -----------------------------------------------------------------------------

// testInstant is 2024-01-01 23:30 UTC: already Tuesday in Paris and Tokyo,
// still Monday in New York.
var testInstant = time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)

const addressBook = `BEGIN:VCARD
VERSION:3.0
FN:Aiko Tanaka
TZ:Asia/Tokyo
END:VCARD
BEGIN:VCARD
VERSION:3.0
FN:No Zone
END:VCARD
`

// setupTestApp initializes a headless Fyne app with mocked dependencies.
func setupTestApp(t *testing.T) (*WorldClockApp, *MockFetcher, *MockTray) {
	a := test.NewApp()
	keyring.MockInit()

	srv := server.NewSnapshotServer("0")
	fetcher := new(MockFetcher)
	mockTray := &MockTray{}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app := NewWorldClockApp(a, ctx, srv, &zonesource.Importer{Fetcher: fetcher})
	app.Tray = mockTray
	app.Clock = MockClock{CurrentTime: testInstant}

	// Run() is skipped, so load translations by hand.
	app.SetupI18n()

	return app, fetcher, mockTray
}

// onMain reads UI state on the Fyne goroutine.
func onMain(fn func()) {
	fyne.DoAndWait(fn)
}

func trayLabel(app *WorldClockApp) string {
	var label string
	onMain(func() { label = app.TrayStatusItem.Label })
	return label
}

// -----------------------------------------------------------------------------
// Localization Tests
// -----------------------------------------------------------------------------

func TestLocalization_Switching(t *testing.T) {
	app, _, _ := setupTestApp(t)

	app.Preferences.SetString(config.PrefLanguage, "en")
	app.UpdateLocalizer()
	assert.Equal(t, "Settings...", app.GetMsg(config.TKeyMenuSettings))

	app.Preferences.SetString(config.PrefLanguage, "fr")
	app.UpdateLocalizer()
	assert.Equal(t, "Paramètres...", app.GetMsg(config.TKeyMenuSettings))
}

func TestLocalization_UnsupportedFallsBackToEnglish(t *testing.T) {
	app, _, _ := setupTestApp(t)

	app.Preferences.SetString(config.PrefLanguage, "tlh")
	app.UpdateLocalizer()
	assert.Equal(t, "Settings...", app.GetMsg(config.TKeyMenuSettings))
}

func TestLocalization_MissingKeyReturnsKey(t *testing.T) {
	app, _, _ := setupTestApp(t)
	assert.Equal(t, "no_such_key", app.GetMsg("no_such_key"))

	bare := &WorldClockApp{}
	assert.Equal(t, config.TKeyMenuShow, bare.GetMsg(config.TKeyMenuShow), "No localizer yet")
}

func TestSetupI18n_DetectsLanguages(t *testing.T) {
	app, _, _ := setupTestApp(t)
	assert.Equal(t, []string{"en", "fr"}, app.SupportedLanguages)
}

func TestLocaleLang(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"active.en.json", "en", true},
		{"active.pt-BR.json", "pt-BR", true},
		{"active..json", "", false},
		{"translate.fr.json", "", false},
		{"active.fr.toml", "", false},
		{"active.not a tag.json", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := localeLang(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// -----------------------------------------------------------------------------
// Configuration & Preferences Tests
// -----------------------------------------------------------------------------

func TestSettings_FromPreferences(t *testing.T) {
	app, _, _ := setupTestApp(t)

	app.Preferences.SetString(config.PrefPrimaryZone, " Europe/Paris ")
	app.Preferences.SetStringList(config.PrefOtherZones, []string{"Asia/Tokyo", " ", "America/New_York"})
	app.Preferences.SetString(config.PrefClockSize, "XL")

	s := app.Settings()
	assert.Equal(t, "Europe/Paris", s.Primary)
	assert.Equal(t, []string{"Asia/Tokyo", "America/New_York"}, s.Secondaries)
	assert.Equal(t, config.SizeXL, s.Size)
	assert.Equal(t, config.DefaultPort, s.Port)
	assert.Equal(t, config.SourceModeNone, s.Contacts.Mode)
}

func TestSettings_OverrideWins(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.Preferences.SetString(config.PrefPrimaryZone, "Europe/Paris")

	app.SetOverride(settings.Settings{Primary: "Asia/Tokyo", Size: "sm"})

	s := app.Settings()
	assert.Equal(t, "Asia/Tokyo", s.Primary)
	assert.Equal(t, config.SizeSM, s.Size)
	assert.Equal(t, config.DefaultLanguage, s.Language, "Override is sanitized")

	select {
	case reason := <-app.configChan:
		assert.Equal(t, signalFile, reason)
	default:
		t.Fatal("SetOverride must wake the clock worker")
	}
}

func TestConfiguration_WorkerSignal(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.watchPreferences()

	signalReceived := make(chan bool)
	go func() {
		select {
		case reason := <-app.configChan:
			signalReceived <- reason == signalPrefs
		case <-time.After(500 * time.Millisecond):
			signalReceived <- false
		}
	}()

	app.Preferences.SetStringList(config.PrefOtherZones, []string{"Asia/Tokyo"})

	assert.True(t, <-signalReceived, "Changing the zone list should notify the clock worker")
}

func TestSignal_Coalesces(t *testing.T) {
	app, _, _ := setupTestApp(t)

	assert.NotPanics(t, func() {
		app.signal(signalPrefs)
		app.signal(signalContacts)
		app.signal(signalFile)
	}, "signal must never block")

	assert.Equal(t, signalPrefs, <-app.configChan)
	select {
	case extra := <-app.configChan:
		t.Fatalf("pending signal should absorb later ones, got %q", extra)
	default:
	}
}

// -----------------------------------------------------------------------------
// Engine Lifecycle Tests
// -----------------------------------------------------------------------------

func TestStartEngine_RendersAndServes(t *testing.T) {
	app, _, mockTray := setupTestApp(t)
	app.setupTrayMenu()
	app.Preferences.SetString(config.PrefPrimaryZone, "Europe/Paris")
	app.Preferences.SetStringList(config.PrefOtherZones, []string{"Asia/Tokyo", "America/New_York"})

	stop := app.startEngine()
	t.Cleanup(stop)

	eng := app.Engine()
	require.NotNil(t, eng)
	assert.Equal(t, engine.StateRunning, eng.State())
	assert.Equal(t, []string{"Asia/Tokyo", "America/New_York"}, eng.Secondaries())

	assert.Eventually(t, func() bool {
		var text string
		onMain(func() { text = app.display().clock.Text })
		return text == "00:30"
	}, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		app.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, config.RouteRoot, nil))
		return rec.Code == http.StatusOK && bytes.Contains(rec.Body.Bytes(), []byte("America/New_York"))
	}, time.Second, 10*time.Millisecond, "Snapshots must reach the HTTP server")

	assert.Eventually(t, func() bool {
		return trayLabel(app) == "2 world clocks"
	}, time.Second, 10*time.Millisecond)
	assert.NotNil(t, mockTray.Menu)
}

func TestStartEngine_PrimaryFailure(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.setupTrayMenu()
	app.Preferences.SetString(config.PrefLanguage, "en")
	app.UpdateLocalizer()
	app.Preferences.SetString(config.PrefPrimaryZone, "Nowhere/Land")

	stop := app.startEngine()
	t.Cleanup(stop)

	assert.Equal(t, engine.StateFailed, app.Engine().State())

	assert.Eventually(t, func() bool {
		var visible bool
		var text string
		onMain(func() {
			visible = app.display().errorLabel.Visible() && !app.display().primary.Visible()
			text = app.display().errorLabel.Text
		})
		return visible && text == `Cannot display time for zone "Nowhere/Land"`
	}, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return trayLabel(app) == config.FallbackTrayError
	}, time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	app.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, config.RouteRoot, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), config.ErrPrimaryZone)
}

func TestStartEngine_PrimaryFailureAfterGoodZone(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.setupTrayMenu()
	app.Preferences.SetString(config.PrefPrimaryZone, "Europe/Paris")

	stop := app.startEngine()
	serve := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		app.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, config.RouteRoot, nil))
		return rec
	}
	require.Eventually(t, func() bool { return serve().Code == http.StatusOK }, time.Second, 10*time.Millisecond)
	stop()

	app.Preferences.SetString(config.PrefPrimaryZone, "Nowhere/Land")
	stop = app.startEngine()
	t.Cleanup(stop)

	rec := serve()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), config.ErrPrimaryZone)
	assert.NotContains(t, rec.Body.String(), "Europe/Paris", "The previous zone's time must not be served")
}

func TestStartEngine_StopEndsConsumers(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.Preferences.SetString(config.PrefPrimaryZone, "UTC")

	stop := app.startEngine()
	eng := app.Engine()

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop must return once the consumers exit")
	}
	assert.Equal(t, engine.StateStopped, eng.State())
}

func TestClockWorker_RestartsOnChange(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.setupTrayMenu()
	app.Preferences.SetString(config.PrefPrimaryZone, "UTC")

	ctx, cancel := context.WithCancel(app.Ctx)
	app.Ctx = ctx
	done := make(chan struct{})
	go func() {
		app.clockWorker()
		close(done)
	}()

	require.Eventually(t, func() bool { return app.Engine() != nil }, time.Second, 10*time.Millisecond)
	first := app.Engine()

	app.Preferences.SetStringList(config.PrefOtherZones, []string{"Asia/Tokyo"})
	app.signal(signalPrefs)

	require.Eventually(t, func() bool {
		eng := app.Engine()
		return eng != first && eng.State() == engine.StateRunning
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Asia/Tokyo"}, app.Engine().Secondaries())
	assert.Equal(t, engine.StateStopped, first.State(), "The old engine must be stopped")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker must exit when the context is cancelled")
	}
	assert.Equal(t, engine.StateStopped, app.Engine().State())
}

// -----------------------------------------------------------------------------
// Contact Import Tests
// -----------------------------------------------------------------------------

func TestImportContacts_Success(t *testing.T) {
	app, fetcher, _ := setupTestApp(t)

	fetcher.On("Fetch", mock.Anything, "https://dav.test/book", "", "").
		Return(io.NopCloser(bytes.NewBufferString(addressBook)), nil)

	app.Preferences.SetString(config.PrefSourceMode, config.SourceModeWeb)
	app.Preferences.SetString(config.PrefCardDAVURL, "https://dav.test/book")

	app.importContacts(true)
	fetcher.AssertExpectations(t)

	assert.Equal(t, []zonesource.ContactZone{{ID: "Asia/Tokyo", Contact: "Aiko Tanaka"}}, app.Contacts())
	assert.Equal(t, signalContacts, <-app.configChan, "Imported zones must restart the engine")

	// The next engine shows configured zones first, then contact zones.
	app.Preferences.SetStringList(config.PrefOtherZones, []string{"America/New_York", "Asia/Tokyo"})
	stop := app.startEngine()
	t.Cleanup(stop)
	assert.Equal(t, []string{"America/New_York", "Asia/Tokyo"}, app.Engine().Secondaries())
}

func TestImportContacts_UsesKeyringPassword(t *testing.T) {
	app, fetcher, _ := setupTestApp(t)
	require.NoError(t, keyring.Set(config.KeyringService, "alice", "s3cret"))

	fetcher.On("Fetch", mock.Anything, "https://dav.test/book", "alice", "s3cret").
		Return(io.NopCloser(bytes.NewBufferString(addressBook)), nil)

	app.Preferences.SetString(config.PrefSourceMode, config.SourceModeWeb)
	app.Preferences.SetString(config.PrefCardDAVURL, "https://dav.test/book")
	app.Preferences.SetString(config.PrefUsername, "alice")

	app.importContacts(false)
	fetcher.AssertExpectations(t)
	assert.Len(t, app.Contacts(), 1)
}

func TestImportContacts_FailureKeepsPrevious(t *testing.T) {
	app, fetcher, _ := setupTestApp(t)
	app.ContactZones = []zonesource.ContactZone{{ID: "Europe/Paris", Contact: "Lucie"}}

	fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	app.Preferences.SetString(config.PrefSourceMode, config.SourceModeWeb)
	app.Preferences.SetString(config.PrefCardDAVURL, "https://dav.test/book")

	app.importContacts(true)
	fetcher.AssertExpectations(t)

	assert.Equal(t, []zonesource.ContactZone{{ID: "Europe/Paris", Contact: "Lucie"}}, app.Contacts())
	select {
	case reason := <-app.configChan:
		t.Fatalf("a failed import must not restart the engine, got %q", reason)
	default:
	}
}

func TestImportContacts_ModeNone(t *testing.T) {
	app, fetcher, _ := setupTestApp(t)
	app.importContacts(true)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, app.Contacts())
}

func TestContacts_ReturnsCopy(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.ContactZones = []zonesource.ContactZone{{ID: "Asia/Tokyo", Contact: "Aiko"}}

	got := app.Contacts()
	got[0].ID = "Bad/Zone"
	assert.Equal(t, "Asia/Tokyo", app.ContactZones[0].ID)
}

// -----------------------------------------------------------------------------
// Tray Tests
// -----------------------------------------------------------------------------

func TestTrayStatus_Logic(t *testing.T) {
	app, _, mockTray := setupTestApp(t)
	app.setupTrayMenu()

	app.Preferences.SetString(config.PrefLanguage, "en")
	app.UpdateLocalizer()

	app.setTrayStatus(-1)
	assert.Equal(t, config.FallbackTrayError, app.TrayStatusItem.Label)

	app.setTrayStatus(0)
	assert.Equal(t, "No world clocks", app.TrayStatusItem.Label)

	app.setTrayStatus(1)
	assert.Equal(t, "1 world clock", app.TrayStatusItem.Label)

	app.setTrayStatus(10)
	assert.Equal(t, "10 world clocks", app.TrayStatusItem.Label)

	assert.Same(t, app.Menu, mockTray.Menu)
}

func TestTrayStatus_NoLocalizer(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.setupTrayMenu()
	app.Localizer = nil

	app.setTrayStatus(3)
	assert.Equal(t, "Go World Clock (3 zones)", app.TrayStatusItem.Label)

	app.setTrayStatus(0)
	assert.Equal(t, config.FallbackTrayLabel, app.TrayStatusItem.Label)
}

func TestRefreshTrayMenu_Language(t *testing.T) {
	app, _, _ := setupTestApp(t)
	app.setupTrayMenu()
	assert.Equal(t, "Show Clock", app.TrayShowItem.Label)

	app.Preferences.SetString(config.PrefLanguage, "fr")
	app.UpdateLocalizer()
	app.RefreshTrayMenu()

	assert.Equal(t, "Afficher l'horloge", app.TrayShowItem.Label)
	assert.Equal(t, "Paramètres...", app.TraySettingsItem.Label)
	assert.Equal(t, "Recharger les fuseaux des contacts", app.TrayReloadItem.Label)
}

func TestImportDoneText(t *testing.T) {
	app, _, _ := setupTestApp(t)
	assert.Equal(t, "1 contact timezone imported", app.importDoneText(1))
	assert.Equal(t, "4 contact timezones imported", app.importDoneText(4))

	app.Localizer = nil
	assert.Equal(t, "4 contact zones imported", app.importDoneText(4))
}

package ui

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/settings"
	"github.com/zalando/go-keyring"
)

func TestSettingsWidgets_Prefilled(t *testing.T) {
	app, _, _ := setupTestApp(t)
	require.NoError(t, keyring.Set(config.KeyringService, "alice", "s3cret"))

	sw := app.newSettingsWidgets(settings.Settings{
		Primary:     "Europe/Paris",
		Secondaries: []string{"Asia/Tokyo", "America/New_York"},
		Size:        config.SizeXL,
		Language:    "fr",
		Port:        "18090",
		NTPServer:   "time.cloudflare.com",
		Contacts:    settings.Contacts{Mode: config.SourceModeWeb, URL: "https://dav.test", User: "alice"},
	})

	assert.Equal(t, "Europe/Paris", sw.primaryEntry.Text)
	assert.Equal(t, "Asia/Tokyo\nAmerica/New_York", sw.othersEntry.Text)
	assert.Equal(t, "Extra large", sw.sizeSelect.Selected)
	assert.Equal(t, "fr", sw.langSelect.Selected)
	assert.Equal(t, "18090", sw.portEntry.Text)
	assert.Equal(t, "time.cloudflare.com", sw.ntpEntry.Text)
	assert.Equal(t, "https://dav.test", sw.urlEntry.Text)
	assert.Equal(t, "s3cret", sw.passEntry.Text, "Password comes from the keyring")
}

func TestSettingsWidgets_Collect(t *testing.T) {
	app, _, _ := setupTestApp(t)
	sw := app.newSettingsWidgets(settings.Default())
	w := app.App.NewWindow("test")
	app.buildSourceCard(w, sw, config.SourceModeNone, nil)

	sw.primaryEntry.SetText(" Asia/Tokyo ")
	sw.othersEntry.SetText("Europe/Paris\n\n  UTC  \nEurope/Paris\n")
	sw.sizeSelect.SetSelected("Small")
	sw.portEntry.SetText("18100")
	sw.modeSelect.SetSelected("Local vCard file")
	sw.pathEntry.SetText("/tmp/book.vcf")

	s := app.collect(sw)
	assert.Equal(t, "Asia/Tokyo", s.Primary)
	assert.Equal(t, []string{"Europe/Paris", "UTC", "Europe/Paris"}, s.Secondaries, "Configured duplicates are kept")
	assert.Equal(t, config.SizeSM, s.Size)
	assert.Equal(t, "18100", s.Port)
	assert.Equal(t, config.SourceModeLocal, s.Contacts.Mode)
	assert.Equal(t, "/tmp/book.vcf", s.Contacts.Path)
}

func TestSaveSettings_WritesPreferences(t *testing.T) {
	app, fetcher, _ := setupTestApp(t)
	// Saving re-imports contacts in the background.
	fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(io.NopCloser(strings.NewReader(addressBook)), nil).Maybe()

	app.setupTrayMenu()
	app.ShowSettingsWindow()
	w := app.Window
	require.NotNil(t, w)

	sw := app.newSettingsWidgets(app.Settings())
	app.buildSourceCard(w, sw, config.SourceModeNone, nil)
	sw.primaryEntry.SetText("Europe/Paris")
	sw.othersEntry.SetText("Asia/Tokyo\nAmerica/New_York")
	sw.langSelect.SetSelected("fr")
	sw.modeSelect.SetSelected("CardDAV / web address book")
	sw.urlEntry.SetText("https://dav.test/book")
	sw.userEntry.SetText("bob")
	sw.passEntry.SetText("hunter2")

	app.saveSettings(sw, w)

	assert.Equal(t, "Europe/Paris", app.Preferences.String(config.PrefPrimaryZone))
	assert.Equal(t, []string{"Asia/Tokyo", "America/New_York"}, app.Preferences.StringList(config.PrefOtherZones))
	assert.Equal(t, config.SourceModeWeb, app.Preferences.String(config.PrefSourceMode))
	assert.Equal(t, "bob", app.Preferences.String(config.PrefUsername))

	pwd, err := keyring.Get(config.KeyringService, "bob")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pwd)

	assert.Equal(t, "Paramètres...", app.TraySettingsItem.Label, "Language applies immediately")
	assert.Nil(t, app.Window, "Saving closes the window")
}

func TestShowSettingsWindow_Singleton(t *testing.T) {
	app, _, _ := setupTestApp(t)

	app.ShowSettingsWindow()
	w := app.Window
	require.NotNil(t, w)

	app.ShowSettingsWindow()
	assert.Same(t, w, app.Window)

	w.Close()
	assert.Nil(t, app.Window)
}

func TestPortValidator(t *testing.T) {
	app, _, _ := setupTestApp(t)

	tests := []struct {
		input string
		want  string
	}{
		{"8080", ""},
		{"", "A port is required."},
		{"80a", "The port must be a number."},
		{"0", "The port must be between 1 and 65535."},
		{"70000", "The port must be between 1 and 65535."},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := app.portValidator(tt.input)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestZoneValidators(t *testing.T) {
	app, _, _ := setupTestApp(t)
	sw := app.newSettingsWidgets(settings.Default())

	sw.primaryEntry.SetText("Europe/Paris")
	assert.NoError(t, sw.primaryEntry.Validate())

	sw.primaryEntry.SetText("Nowhere/Land")
	err := sw.primaryEntry.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nowhere/Land")

	sw.othersEntry.SetText("Asia/Tokyo\nMars/Olympus\nBad/Zone")
	err = sw.othersEntry.Validate()
	require.Error(t, err)
	assert.Equal(t, "Unknown timezones: Mars/Olympus, Bad/Zone", err.Error())

	sw.othersEntry.SetText("")
	assert.NoError(t, sw.othersEntry.Validate(), "An empty list is valid")

	sw.primaryEntry.SetText("UTC")
	sw.portEntry.SetText("")
	err = sw.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port", "validate reports the port error")
}

func TestModeAndSizeMapping(t *testing.T) {
	app, _, _ := setupTestApp(t)

	for _, mode := range []string{config.SourceModeNone, config.SourceModeWeb, config.SourceModeLocal} {
		assert.Equal(t, mode, app.modeValue(app.modeLabel(mode)))
	}
	assert.Equal(t, config.SourceModeNone, app.modeValue("garbage"))

	for _, size := range []string{config.SizeSM, config.SizeMD, config.SizeLG, config.SizeXL} {
		assert.Equal(t, size, app.sizeValue(app.GetMsg("size_"+size)))
	}
	assert.Equal(t, config.DefaultSize, app.sizeValue(""))
}

func TestSplitZones(t *testing.T) {
	assert.Nil(t, splitZones(""))
	assert.Nil(t, splitZones("\n  \n"))
	assert.Equal(t, []string{"Asia/Tokyo", "UTC"}, splitZones(" Asia/Tokyo \r\n\nUTC"))
}

package ui

import (
	"embed"
	"encoding/json"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-worldclock/internal/config"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// SetupI18n loads every embedded "active.<lang>.json" locale and records the
// languages found.
func (app *WorldClockApp) SetupI18n() {
	log := slog.With(config.LogKeyComponent, config.CompI18n)

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc(config.LocaleFormat, json.Unmarshal)

	entries, err := localeFS.ReadDir(config.LocalesDir)
	if err != nil {
		log.Error(config.ErrLocalesAccess, config.LogKeyError, err)
		return
	}

	var detected []string
	for _, entry := range entries {
		name := entry.Name()
		lang, ok := localeLang(name)
		if !ok {
			log.Warn(config.MsgLocaleBadName, config.LogKeyFile, name)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, path.Join(config.LocalesDir, name)); err != nil {
			log.Error(config.ErrLocaleLoad, config.LogKeyFile, name, config.LogKeyError, err)
			continue
		}
		log.Debug(config.MsgLocaleLoaded, config.LogKeyLang, lang, config.LogKeyFile, name)
		detected = append(detected, lang)
	}

	slices.Sort(detected)
	app.SupportedLanguages = detected
	app.I18nBundle = bundle
	app.UpdateLocalizer()
}

// localeLang extracts the language tag from a locale file name and checks
// that it is a well-formed BCP 47 tag.
func localeLang(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, config.LocalePrefix)
	if !ok {
		return "", false
	}
	lang, ok := strings.CutSuffix(rest, config.LocaleExt)
	if !ok || lang == "" {
		return "", false
	}
	if _, err := language.Parse(lang); err != nil {
		return "", false
	}
	return lang, true
}

// UpdateLocalizer refreshes the translator from the effective language.
// Call it on the UI goroutine.
func (app *WorldClockApp) UpdateLocalizer() {
	if app.I18nBundle == nil {
		return
	}
	app.Localizer = i18n.NewLocalizer(app.I18nBundle, app.Settings().Language, config.DefaultLanguage)
}

// GetMsg translates a key, returning the key itself when no translation exists.
func (app *WorldClockApp) GetMsg(key string) string {
	if app.Localizer == nil {
		return key
	}
	msg, err := app.Localizer.Localize(&i18n.LocalizeConfig{MessageID: key})
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
			config.LogKeyError, err,
		)
		return key
	}
	return msg
}

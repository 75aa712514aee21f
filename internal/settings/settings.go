// Package settings holds the world clock configuration: which zones to show,
// how large, in which language, and where contact zones come from.
// It can be loaded from a YAML file or from the Fyne preference store.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/engine"
	"github.com/tartampluch/go-worldclock/internal/zonesource"
	"gopkg.in/yaml.v3"
)

// Port validation errors. The UI maps them to translated messages.
var (
	ErrPortRequired = errors.New(config.ErrPortRequired)
	ErrPortNumber   = errors.New(config.ErrPortNumber)
	ErrPortRange    = errors.New(config.ErrPortRange)
)

// Contacts describes the address book scanned for contact timezones.
// The password is never stored here; it lives in the system keyring.
type Contacts struct {
	Mode string `yaml:"mode"`
	URL  string `yaml:"url,omitempty"`
	User string `yaml:"user,omitempty"`
	Path string `yaml:"path,omitempty"`
}

// Settings is the complete clock configuration.
type Settings struct {
	Primary     string   `yaml:"primary"`
	Secondaries []string `yaml:"others"`
	Size        string   `yaml:"size,omitempty"`
	Language    string   `yaml:"language,omitempty"`
	Port        string   `yaml:"port,omitempty"`
	Contacts    Contacts `yaml:"contacts,omitempty"`
	NTPServer   string   `yaml:"ntp_server,omitempty"`
}

// Default returns the configuration used on first run.
func Default() Settings {
	return Settings{
		Primary:  config.DefaultPrimaryZone,
		Size:     config.DefaultSize,
		Language: config.DefaultLanguage,
		Port:     config.DefaultPort,
		Contacts: Contacts{Mode: config.SourceModeNone},
	}
}

// LoadFile reads a YAML configuration. Missing keys keep their zero value;
// call Sanitize to apply defaults.
func LoadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", config.ErrConfigRead, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document. Unknown keys are rejected so that typos
// ("other" instead of "others") surface instead of silently dropping zones.
func Parse(data []byte) (Settings, error) {
	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return s, nil
		}
		return Settings{}, fmt.Errorf("%s: %w", config.ErrConfigParse, err)
	}
	return s, nil
}

// WriteFile stores the configuration as YAML.
func (s Settings) WriteFile(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrConfigParse, err)
	}
	return os.WriteFile(path, data, config.FilePermUserRW)
}

// FromPreferences reads the configuration saved by the settings window.
func FromPreferences(p fyne.Preferences) Settings {
	return Settings{
		Primary:     p.StringWithFallback(config.PrefPrimaryZone, config.DefaultPrimaryZone),
		Secondaries: p.StringList(config.PrefOtherZones),
		Size:        p.StringWithFallback(config.PrefClockSize, config.DefaultSize),
		Language:    p.StringWithFallback(config.PrefLanguage, config.DefaultLanguage),
		Port:        p.StringWithFallback(config.PrefServerPort, config.DefaultPort),
		Contacts: Contacts{
			Mode: p.StringWithFallback(config.PrefSourceMode, config.SourceModeNone),
			URL:  p.String(config.PrefCardDAVURL),
			User: p.String(config.PrefUsername),
			Path: p.String(config.PrefLocalPath),
		},
		NTPServer: p.String(config.PrefNTPServer),
	}
}

// Save writes the configuration to the preference store.
func (s Settings) Save(p fyne.Preferences) {
	p.SetString(config.PrefPrimaryZone, s.Primary)
	p.SetStringList(config.PrefOtherZones, s.Secondaries)
	p.SetString(config.PrefClockSize, s.Size)
	p.SetString(config.PrefLanguage, s.Language)
	p.SetString(config.PrefServerPort, s.Port)
	p.SetString(config.PrefSourceMode, s.Contacts.Mode)
	p.SetString(config.PrefCardDAVURL, s.Contacts.URL)
	p.SetString(config.PrefUsername, s.Contacts.User)
	p.SetString(config.PrefLocalPath, s.Contacts.Path)
	p.SetString(config.PrefNTPServer, s.NTPServer)
}

// Sanitize returns a copy with defaults applied: a blank primary becomes
// UTC, an unknown size becomes "lg", an unsupported language becomes "en".
// Zone identifiers are trimmed; blank secondaries are dropped. Unknown
// secondaries are kept, the engine omits them at display time.
func (s Settings) Sanitize() Settings {
	out := s
	out.Primary = strings.TrimSpace(s.Primary)
	if out.Primary == "" {
		out.Primary = config.DefaultPrimaryZone
	}

	out.Secondaries = make([]string, 0, len(s.Secondaries))
	for _, id := range s.Secondaries {
		if id = strings.TrimSpace(id); id != "" {
			out.Secondaries = append(out.Secondaries, id)
		}
	}

	out.Size = ParseSize(s.Size)
	if !slices.Contains(config.SupportedLanguages, out.Language) {
		out.Language = config.DefaultLanguage
	}
	if out.Port == "" {
		out.Port = config.DefaultPort
	}
	out.NTPServer = strings.TrimSpace(s.NTPServer)
	if out.Contacts.Mode == "" {
		out.Contacts.Mode = config.SourceModeNone
	}
	return out
}

// Validate expects a sanitized value. It reports every zone the timezone
// database cannot resolve, joined with errors.Join. Each joined error is an *engine.ZoneError, and the
// primary failure (if any) is also wrapped with ErrPrimaryZone.
func (s Settings) Validate() error {
	var errs []error
	if _, err := engine.LoadZone(s.Primary); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", config.ErrPrimaryZone, err))
	}
	for _, id := range s.Secondaries {
		if _, err := engine.LoadZone(id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := ValidatePort(s.Port); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", config.ErrConfigInvalid, err)
	}
	return nil
}

// UnknownZones lists the secondaries that cannot be resolved, in order.
func (s Settings) UnknownZones() []string {
	var bad []string
	for _, id := range s.Secondaries {
		if _, err := engine.LoadZone(id); err != nil {
			bad = append(bad, id)
		}
	}
	return bad
}

// Source builds the importer configuration. The password comes from the
// keyring and is supplied by the caller.
func (s Settings) Source(password string) zonesource.SourceConfig {
	return zonesource.SourceConfig{
		Mode:      s.Contacts.Mode,
		LocalPath: s.Contacts.Path,
		WebURL:    s.Contacts.URL,
		WebUser:   s.Contacts.User,
		WebPass:   password,
	}
}

// Scale returns the text multiplier of the configured size.
func (s Settings) Scale() float32 {
	return config.SizeScales[ParseSize(s.Size)]
}

// ParseSize normalizes a size name ("SM", " xl ") and falls back to the
// default size for anything unknown.
func ParseSize(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if _, ok := config.SizeScales[v]; ok {
		return v
	}
	return config.DefaultSize
}

// ValidatePort checks a listening port given as text.
func ValidatePort(v string) error {
	if v == "" {
		return ErrPortRequired
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return ErrPortNumber
	}
	if port < config.MinPort || port > config.MaxPort {
		return ErrPortRange
	}
	return nil
}

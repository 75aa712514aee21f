package zonesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/engine"
)

// ErrUnsupportedTZ is returned for TZ values that cannot be mapped to a
// timezone identifier (URIs, fractional offsets, unknown names).
var ErrUnsupportedTZ = errors.New(config.ErrTZUnsupported)

// SourceConfig contains all parameters required to import contact zones.
type SourceConfig struct {
	Mode      string // config.SourceModeNone, config.SourceModeLocal or config.SourceModeWeb
	LocalPath string // Absolute path to the .vcf file
	WebURL    string // CardDAV or WebDAV URL
	WebUser   string // HTTP Basic Auth Username
	WebPass   string // HTTP Basic Auth Password
}

// Importer reads an address book and extracts the timezones of its contacts.
type Importer struct {
	Fetcher VCardFetcher // Interface for network abstraction.
}

// Import executes the fetching and parsing pipeline.
// It returns one ContactZone per distinct timezone, in file order; the first
// contact referencing a zone wins. Mode "none" imports nothing.
func (im *Importer) Import(ctx context.Context, cfg SourceConfig) ([]ContactZone, error) {
	if cfg.Mode == config.SourceModeNone || cfg.Mode == "" {
		return nil, nil
	}

	start := time.Now()
	log := slog.With(
		config.LogKeyComponent, config.CompImporter,
		config.LogKeyMode, cfg.Mode,
	)
	log.InfoContext(ctx, config.MsgImportStart)

	reader, err := im.acquireStream(ctx, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w", config.ErrImportFailed, err)
	}
	defer func() { _ = reader.Close() }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	zones, err := im.decode(ctx, reader, log)
	if err == nil {
		log.Debug("Import finished", config.LogKeyDuration, time.Since(start).Milliseconds())
	}
	return zones, err
}

// acquireStream opens the appropriate data source based on configuration.
func (im *Importer) acquireStream(ctx context.Context, cfg SourceConfig) (io.ReadCloser, error) {
	switch cfg.Mode {
	case config.SourceModeLocal:
		if cfg.LocalPath == "" {
			return nil, errors.New(config.ErrLocalPathEmpty)
		}
		return os.Open(cfg.LocalPath)
	case config.SourceModeWeb:
		if cfg.WebURL == "" {
			return nil, errors.New(config.ErrWebURLEmpty)
		}
		if im.Fetcher == nil {
			return nil, errors.New(config.ErrFetcherMissing)
		}
		return im.Fetcher.Fetch(ctx, cfg.WebURL, cfg.WebUser, cfg.WebPass)
	default:
		return nil, fmt.Errorf("%s: %q", config.ErrModeUnsupport, cfg.Mode)
	}
}

// decode walks the vCard stream card by card. Malformed cards are skipped so
// that one broken entry does not hide the rest of the address book.
func (im *Importer) decode(ctx context.Context, r io.Reader, log *slog.Logger) ([]ContactZone, error) {
	decoder := vcard.NewDecoder(r)
	stats := struct{ processed, skipped int }{0, 0}
	seen := make(map[string]bool)
	var zones []ContactZone

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn(config.MsgSkippedCard, config.LogKeyError, err)
			// A truncated stream cannot yield more cards.
			if errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			continue
		}

		stats.processed++
		tz := card.Get(config.VCardTZ)
		if tz == nil || strings.TrimSpace(tz.Value) == "" {
			continue
		}

		name := contactName(card)
		id, err := ParseTZ(tz)
		if err != nil {
			stats.skipped++
			log.Warn(config.MsgSkippedTZ,
				config.LogKeyName, name,
				config.LogKeyValue, tz.Value,
				config.LogKeyError, err)
			continue
		}

		if seen[id] {
			log.Debug(config.MsgDuplicateZone,
				config.LogKeyZone, id,
				config.LogKeyName, name)
			continue
		}
		seen[id] = true
		zones = append(zones, ContactZone{ID: id, Contact: name})
	}

	log.Info(config.MsgImportDone,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyTotal, stats.processed),
			slog.Int(config.LogKeyFound, len(zones)),
			slog.Int(config.LogKeySkipped, stats.skipped),
		),
	)
	return zones, nil
}

// contactName applies the naming strategy: FN (Formatted) > N (Structured) > Fallback.
func contactName(card vcard.Card) string {
	if fn := card.Get(config.VCardFN); fn != nil && fn.Value != "" {
		return fn.Value
	}
	if n := card.Get(config.VCardN); n != nil && n.Value != "" {
		return n.Value
	}
	return config.FallbackName
}

// ParseTZ maps a vCard TZ property to a timezone identifier the engine can
// resolve. Accepted forms:
//
//	TZ:Europe/Paris
//	TZ;VALUE=text:America/New_York
//	TZ;VALUE=utc-offset:-0500
//	TZ:-05:00; EST; Raleigh/North America   (vCard 3.0)
//
// Offsets become Etc/GMT zones and must be whole hours.
func ParseTZ(field *vcard.Field) (string, error) {
	if field == nil {
		return "", ErrUnsupportedTZ
	}
	if strings.EqualFold(paramValue(field.Params, config.ParamValue), config.ValueParamURI) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTZ, field.Value)
	}

	value, _, _ := strings.Cut(field.Value, config.TZComponentSep)
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrUnsupportedTZ
	}

	if isOffset(value) {
		return offsetZone(value)
	}

	if _, err := engine.LoadZone(value); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedTZ, err)
	}
	return value, nil
}

// paramValue looks a parameter up regardless of the case used by the producer.
func paramValue(params vcard.Params, name string) string {
	for k, v := range params {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func isOffset(v string) bool {
	if len(v) < 2 || (v[0] != '+' && v[0] != '-') {
		return false
	}
	for _, r := range v[1:] {
		if (r < '0' || r > '9') && r != ':' {
			return false
		}
	}
	return true
}

// offsetZone converts "±HH", "±HHMM" or "±HH:MM" into the matching Etc/GMT
// zone. POSIX inverts the sign: UTC-05:00 is "Etc/GMT+5".
func offsetZone(v string) (string, error) {
	negative := v[0] == '-'
	digits := strings.ReplaceAll(v[1:], ":", "")

	var hoursPart, minutesPart string
	switch len(digits) {
	case 1, 2:
		hoursPart = digits
	case 4:
		hoursPart, minutesPart = digits[:2], digits[2:]
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTZ, v)
	}

	hours, err := strconv.Atoi(hoursPart)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTZ, v)
	}
	if minutesPart != "" && minutesPart != "00" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTZ, v)
	}
	if negative {
		hours = -hours
	}
	if hours < config.MinOffsetHours || hours > config.MaxOffsetHours {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTZ, v)
	}

	if hours == 0 {
		return config.ZoneUTC, nil
	}
	// Etc/GMT+5 is five hours behind UTC.
	return fmt.Sprintf("%s%+d", config.EtcZonePrefix, -hours), nil
}

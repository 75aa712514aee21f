package engine

import (
	"strings"

	"github.com/tartampluch/go-worldclock/internal/config"
)

// DeriveLabel turns a zone identifier into a short display label.
//
//	"Asia/Tokyo"      -> "Tokyo"
//	"Region/Sub/City" -> "City"
//	"UTC"             -> "UTC"
//	""                -> "UNKNOWN"
//
// Empty segments (leading, doubled or trailing separators) are skipped.
func DeriveLabel(id string) string {
	if strings.TrimSpace(id) == "" {
		return config.LabelUnknown
	}
	if !strings.Contains(id, config.ZoneSeparator) {
		return id
	}

	segments := strings.Split(id, config.ZoneSeparator)
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(segments[i]); seg != "" {
			return seg
		}
	}

	// Separators only ("/", "//"): nothing better to show than the raw value.
	return id
}

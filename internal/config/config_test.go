package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tartampluch/go-worldclock/internal/config"
)

// TestConstants_Integrity ensures critical constants are not empty or malformed.
// This prevents accidental deletion of keys required for runtime or UI logic.
func TestConstants_Integrity(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"AppName", config.AppName},
		{"AppID", config.AppID},
		{"Version", config.Version},
		{"UserAgent", config.UserAgent},
		{"ICalVersion", config.ICalVersion},
		{"ICalProdid", config.ICalProdid},
		{"DefaultPrimaryZone", config.DefaultPrimaryZone},
		{"DefaultPort", config.DefaultPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEmpty(t, tt.value, "Critical constant %s should not be empty", tt.name)
		})
	}
}

// TestDefaults_Sanity checks that default values make sense logically.
func TestDefaults_Sanity(t *testing.T) {
	assert.Equal(t, time.Second, config.TickInterval, "The clock shows seconds, so it must tick every second")
	assert.Equal(t, "UTC", config.DefaultPrimaryZone)
	assert.Contains(t, config.SupportedLanguages, config.DefaultLanguage)
	assert.Contains(t, config.SizeScales, config.DefaultSize)
}

// TestSizeScales_Ordered ensures each size is larger than the previous one.
func TestSizeScales_Ordered(t *testing.T) {
	sizes := []string{config.SizeSM, config.SizeMD, config.SizeLG, config.SizeXL}
	for i := 1; i < len(sizes); i++ {
		assert.Greaterf(t, config.SizeScales[sizes[i]], config.SizeScales[sizes[i-1]],
			"%s must be larger than %s", sizes[i], sizes[i-1])
	}
}

// TestUserAgent_Format ensures the UA string follows the standard format.
func TestUserAgent_Format(t *testing.T) {
	assert.True(t, strings.HasPrefix(config.UserAgent, "Go-WorldClock/"), "UserAgent must start with AppName/")
}

// TestTimeoutsAndLimits ensures that operational constraints are reasonable.
func TestTimeoutsAndLimits(t *testing.T) {
	t.Parallel()

	// Timeouts
	assert.Greater(t, config.HTTPTimeout, 0*time.Second, "HTTPTimeout must be positive")
	assert.LessOrEqual(t, config.HTTPTimeout, 2*time.Minute, "HTTPTimeout should not be excessively long")
	assert.Greater(t, config.ShutdownTimeout, 0*time.Second, "ShutdownTimeout must be positive")

	// NTP backoff doubles from the initial value and never exceeds the sync interval.
	assert.Less(t, config.NTPBackoffInitial, config.NTPBackoffMax)
	assert.LessOrEqual(t, config.NTPBackoffMax, config.NTPSyncInterval)

	// Limits
	assert.Greater(t, config.MaxHTTPResponseSize, 0, "MaxHTTPResponseSize must be positive")
	assert.Less(t, int64(config.MaxHTTPResponseSize), int64(1*1024*1024*1024), "MaxHTTPResponseSize should stay under 1GB to protect RAM")
	assert.Less(t, config.MinPort, config.MaxPort)
}

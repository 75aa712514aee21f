package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-WorldClock/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Go World Clock"
	AppID             = "com.github.tartampluch.go-worldclock"
	KeyringService    = "com.github.tartampluch.go-worldclock"
	CommandName       = "go-worldclock"
	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "app.log"
	IconFile          = "Icon.png"

	// Log rotation (lumberjack).
	LogMaxSizeMB   = 5
	LogMaxBackups  = 3
	LogMaxAgeDays  = 28
	LogCompression = true
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	// Used for sensitive files like logs.
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	// Used for creating secure cache directories.
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion      = "version"
	FlagDebug        = "debug"
	FlagConfig       = "config"
	FlagCount        = "count"
	FlagNTP          = "ntp"
	FlagDescNTP      = "NTP server used by the desktop app to measure host clock drift (empty disables the check)"
	FlagDescVersion  = "Show application version and exit"
	FlagDescDebug    = "Enable debug logging to stdout"
	FlagDescConfig   = "Path to a YAML clock configuration (overrides saved preferences)"
	FlagDescCount    = "Stop after printing this many ticks (0 runs until interrupted)"
	MsgVersionOutput = "%s version %s (%s/%s)\n"

	CmdShortRoot     = "Desktop world clock"
	CmdUseSnapshot   = "snapshot"
	CmdShortSnapshot = "Print the current time in every configured zone and exit"
	CmdUseWatch      = "watch"
	CmdShortWatch    = "Print a line per tick for every configured zone"
)

// -----------------------------------------------------------------------------
// Clock Engine
// -----------------------------------------------------------------------------

const (
	// TickInterval is the cadence of snapshot rebuilds.
	TickInterval = time.Second

	// DefaultPrimaryZone is used when no primary zone is configured.
	DefaultPrimaryZone = "UTC"

	// ZoneUTC is the identifier of Coordinated Universal Time.
	ZoneUTC = "UTC"

	// LabelUnknown is displayed for empty or malformed zone identifiers.
	LabelUnknown = "UNKNOWN"

	// ZoneSeparator splits region/city identifiers.
	ZoneSeparator = "/"

	MinutesPerHour = 60
	SecondsPerMin  = 60
	HoursPerDay    = 24
)

// -----------------------------------------------------------------------------
// Display Formats
// -----------------------------------------------------------------------------

const (
	FormatPad2        = "%02d"
	FormatClock       = "%02d:%02d"
	FormatDate        = "%04d.%02d.%02d"
	FormatOffset      = "UTC%s%02d"
	FormatOffsetMin   = "UTC%s%02d:%02d"
	FormatDayAhead    = "(+%dd)"
	FormatDayBehind   = "(%dd)"
	SignPlus          = "+"
	SignMinus         = "-"
	FormatWatchLine   = "%s %s:%s %s %s"
	FormatWatchEntry  = "  %-16s %s %-9s %s %s"
	FormatRowOffset   = "%s %s"
	LayoutISOInstant  = time.RFC3339
	LayoutICalOffset  = "-0700"
	LayoutICalDateUTC = "20060102T150405"
)

// -----------------------------------------------------------------------------
// Clock Sizes
// -----------------------------------------------------------------------------

const (
	SizeSM      = "sm"
	SizeMD      = "md"
	SizeLG      = "lg"
	SizeXL      = "xl"
	DefaultSize = SizeLG
)

// -----------------------------------------------------------------------------
// UI Constants & Preferences
// -----------------------------------------------------------------------------

const (
	SettingsWindowWidth = 520
	ClockWindowWidth    = 420
	ClockWindowHeight   = 360

	// Preference Keys
	PrefPrimaryZone = "primary_zone"
	PrefOtherZones  = "other_zones"
	PrefClockSize   = "clock_size"
	PrefLanguage    = "language"
	PrefServerPort  = "server_port"
	PrefSourceMode  = "contacts_mode"
	PrefCardDAVURL  = "carddav_url"
	PrefUsername    = "username"
	PrefLocalPath   = "local_path"
	PrefLastRun     = "last_run_version"
	PrefNTPServer   = "ntp_server"

	// Text size (points) of the main clock digits at the "lg" size.
	BaseClockTextSize = 64
	// Text size (points) of a world clock time at the "lg" size.
	BaseRowTextSize = 28
	// Seconds, date and world clock captions are drawn relative to the
	// text they accompany.
	SecondsTextRatio = 0.5
	CaptionTextRatio = 0.55
	DateTextRatio    = 0.7
)

// Embedded locale files are named "active.<lang>.json".
const (
	LocalesDir   = "locales"
	LocalePrefix = "active."
	LocaleExt    = ".json"
	LocaleFormat = "json"
)

// SupportedLanguages defines the list of available UI languages (ISO 639-1).
var SupportedLanguages = []string{"en", "fr"}

// SizeScales maps a clock size to the multiplier applied to base text sizes.
var SizeScales = map[string]float32{
	SizeSM: 0.75,
	SizeMD: 0.9,
	SizeLG: 1.0,
	SizeXL: 1.25,
}

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyWinClock       = "win_clock_title"
	TKeyWinSettings    = "win_settings_title"
	TKeyMenuShow       = "menu_show_clock"
	TKeyMenuSettings   = "menu_settings"
	TKeyMenuReload     = "menu_reload_contacts"
	TKeyTrayStatus     = "tray_status" // Requires Count > 0
	TKeyTrayStatusZero = "tray_status_zero"
	TKeyLblPrimary     = "lbl_primary_zone"
	TKeyHelpPrimary    = "help_primary_zone"
	TKeyLblOthers      = "lbl_other_zones"
	TKeyHelpOthers     = "help_other_zones"
	TKeyLblSize        = "lbl_clock_size"
	TKeyLblLanguage    = "lbl_language"
	TKeyHelpLanguage   = "help_language"
	TKeyLblPort        = "lbl_server_port"
	TKeyHelpPort       = "help_port"
	TKeyLblGeneral     = "lbl_general"
	TKeyLblZones       = "lbl_zones"
	TKeyLblSource      = "lbl_source"
	TKeyModeNone       = "mode_none"
	TKeyModeCardDAV    = "mode_carddav"
	TKeyModeLocal      = "mode_local"
	TKeyLblURL         = "lbl_url"
	TKeyHelpURL        = "help_carddav_url"
	TKeyLblUser        = "lbl_user"
	TKeyLblPass        = "lbl_pass"
	TKeyBtnBrowse      = "btn_browse"
	TKeyBtnSave        = "btn_save"
	TKeyBtnCancel      = "btn_cancel"
	TKeyLblFooter      = "lbl_footer"
	TKeyErrPrimary     = "err_primary_zone" // Requires Zone
	TKeyErrZones       = "err_other_zones"  // Requires Zones
	TKeyErrPortReq     = "err_port_required"
	TKeyErrPortNum     = "err_port_number"
	TKeyErrPortRange   = "err_port_range"
	TKeyNotifImportErr = "notif_err_import"
	TKeyNotifImportOK  = "notif_import_done" // Requires Count
	TKeyLblNTP         = "lbl_ntp_server"
	TKeyHelpNTP        = "help_ntp_server"
	TKeySizeSM         = "size_sm"
	TKeySizeMD         = "size_md"
	TKeySizeLG         = "size_lg"
	TKeySizeXL         = "size_xl"
	TKeyWinContacts    = "win_contacts_title"
	TKeyMenuContacts   = "menu_contact_zones"
	TKeyColContact     = "col_contact"
	TKeyColZone        = "col_zone"
	TKeyColTime        = "col_time"
)

// -----------------------------------------------------------------------------
// Contact Zone Source
// -----------------------------------------------------------------------------

const (
	SourceModeNone  = "none"
	SourceModeWeb   = "web"
	SourceModeLocal = "local"

	VCardTZ = "TZ"
	VCardFN = "FN"
	VCardN  = "N"

	ValueParamURI = "uri"
	ParamValue    = "VALUE"

	// vCard 3.0 allows "-05:00; EST; Raleigh/North America" style compounds.
	TZComponentSep = ";"

	// Offset range covered by the Etc/GMT zones of the tz database.
	MinOffsetHours = -12
	MaxOffsetHours = 14

	// EtcZonePrefix builds fixed-offset IANA zones; the sign is POSIX-inverted.
	EtcZonePrefix = "Etc/GMT"

	FallbackName = "Unknown"

	ExtVCF   = ".vcf"
	ExtVCard = ".vcard"

	PlaceholderURL   = "https://dav.example.com/addressbooks/me/"
	PlaceholderZones = "Asia/Tokyo\nAmerica/New_York"
	PlaceholderNTP   = "pool.ntp.org"

	// ZoneListSep joins identifiers in messages.
	ZoneListSep = ", "
)

// -----------------------------------------------------------------------------
// Default Values & Limits
// -----------------------------------------------------------------------------

const (
	DefaultPort     = "18081"
	DefaultLanguage = "en"
	MinPort         = 1
	MaxPort         = 65535
)

// -----------------------------------------------------------------------------
// Standards: iCalendar
// -----------------------------------------------------------------------------

const (
	ICalVersion      = "2.0"
	ICalProdid       = "-//Go World Clock//Zones//EN"
	ICalCalName      = "World Clock Zones"
	ICalScale        = "GREGORIAN"
	ICalCompTimezone = "VTIMEZONE"
	ICalCompStandard = "STANDARD"
	ICalCompDaylight = "DAYLIGHT"

	PropVersion      = "VERSION"
	PropProdid       = "PRODID"
	PropXWRCalName   = "X-WR-CALNAME"
	PropCalScale     = "CALSCALE"
	PropTZID         = "TZID"
	PropTZName       = "TZNAME"
	PropTZOffsetFrom = "TZOFFSETFROM"
	PropTZOffsetTo   = "TZOFFSETTO"
	PropDTStart      = "DTSTART"

	// ICalEpochStart is the DTSTART used for zones without transitions.
	ICalEpochStart = "19700101T000000"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	WSWriteTimeout      = 5 * time.Second
	WSPongTimeout       = 60 * time.Second
	WSPingInterval      = 30 * time.Second
	WSReadLimit         = 512
	WSCloseReasonMax    = 123 // control frame payload minus the status code
	RetryAfterSeconds   = "1"
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 64 * 1024 * 1024 // 64MB
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	RouteRoot           = "/"
	RouteZones          = "/zones.ics"
	RouteStream         = "/ws"
	AddrSeparator       = ":"

	// ConfigReloadDelay coalesces bursts of file system events.
	ConfigReloadDelay = 200 * time.Millisecond
)

// -----------------------------------------------------------------------------
// Network Time
// -----------------------------------------------------------------------------

const (
	NTPSyncInterval   = 10 * time.Minute
	NTPBackoffInitial = 5 * time.Second
	NTPBackoffMax     = 5 * time.Minute
	NTPQueryTimeout   = 5 * time.Second

	// NTPDriftWarn is the host clock drift above which a warning is logged.
	NTPDriftWarn = 2 * time.Second

	MetricNTPOffset   = "worldclock_ntp_offset_seconds"
	MetricNTPLastSync = "worldclock_ntp_last_sync_unix"
	MetricNTPHealthy  = "worldclock_ntp_healthy"
	HelpNTPOffset     = "Measured host clock drift; positive means the host is behind"
	HelpNTPLastSync   = "Last successful NTP check as a Unix timestamp"
	HelpNTPHealthy    = "1 if the last NTP query succeeded, otherwise 0"
)

// -----------------------------------------------------------------------------
// Server Metrics
// -----------------------------------------------------------------------------

const (
	MetricNamespace    = "worldclock"
	MetricUpdates      = "snapshot_updates_total"
	MetricWSClients    = "websocket_clients"
	MetricHTTPRequests = "http_requests_total"
	HelpUpdates        = "Snapshots published to the server"
	HelpWSClients      = "Connected websocket clients"
	HelpHTTPRequests   = "HTTP requests by route and status code"
	LabelRoute         = "route"
	LabelCode          = "code"
	RouteMetrics       = "/metrics"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType  = "Content-Type"
	HeaderCacheControl = "Cache-Control"
	HeaderETag         = "ETag"
	HeaderRetryAfter   = "Retry-After"
	HeaderAllow        = "Allow"
	HeaderXContentType = "X-Content-Type-Options"
	HeaderUserAgent    = "User-Agent"
	HeaderIfNoneMatch  = "If-None-Match"
	HeaderAccept       = "Accept"

	MimeJSON            = "application/json; charset=utf-8"
	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeVCard           = "text/vcard"
	MimeNoSniff         = "nosniff"
	CacheControlNoStore = "no-store"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrUnknownZone      = "unknown timezone"
	ErrPrimaryZone      = "primary timezone cannot be resolved"
	ErrEngineStarted    = "clock engine already started"
	ErrEngineStopped    = "clock engine stopped"
	ErrLocalPathEmpty   = "configuration error: local path is empty"
	ErrWebURLEmpty      = "configuration error: web URL is empty"
	ErrFetcherMissing   = "internal error: network fetcher is not initialized"
	ErrModeUnsupport    = "configuration error: unsupported source mode"
	ErrConfigRead       = "failed to read clock configuration"
	ErrConfigParse      = "failed to parse clock configuration"
	ErrConfigInvalid    = "invalid clock configuration"
	ErrConfigWatch      = "failed to watch clock configuration"
	ErrServerStartup    = "server startup failed"
	ErrServerShutdown   = "server shutdown failed"
	ErrPortRequired     = "server port is required"
	ErrPortNumber       = "server port must be a number"
	ErrPortRange        = "server port must be between 1 and 65535"
	ErrInvalidURL       = "invalid URL structure"
	ErrProtocol         = "unsupported protocol scheme (http/https only)"
	ErrICalEncode       = "failed to encode iCalendar data"
	ErrJSONEncode       = "failed to encode snapshot"
	ErrLogFile          = "failed to open log file"
	ErrCacheDir         = "could not determine user cache dir"
	ErrCreateDir        = "could not create app cache dir"
	ErrAppFailed        = "application failed unexpectedly"
	ErrWriteResp        = "failed to write response body"
	ErrWSUpgrade        = "websocket upgrade failed"
	ErrWSWrite          = "websocket write failed"
	ErrMetricsRegister  = "failed to register metrics collector"
	ErrLocalesAccess    = "failed to access embedded locales"
	ErrLocaleLoad       = "failed to load locale file"
	ErrTrayNotSupported = "system tray not supported on this platform/driver"
	ErrImportFailed     = "contact zone import failed"
	ErrTZUnsupported    = "unsupported vCard TZ value"
	ErrFetchRequest     = "failed to create request"
	ErrFetchNetwork     = "network error during fetch"
	ErrFetchStatus      = "server returned unexpected status"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Clock initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
	HTTPMsgInternalErr  = "Internal Server Error"
)

// -----------------------------------------------------------------------------
// Fallbacks & Messages
// -----------------------------------------------------------------------------

const (
	FallbackTrayLabel   = "Go World Clock"
	FallbackTrayDefault = "Go World Clock (%d zones)"
	FallbackPrimaryErr  = "Cannot display time for zone %q"
	FallbackTrayError   = "Go World Clock (error)"
	FallbackZonesErr    = "Unknown timezones: %s"
	FallbackImportOK    = "%d contact zones imported"
	TitleStartupError   = "Startup Error"
	MsgPortBusy         = "Port %s is busy or unavailable."

	MsgAppStarting    = "Starting application"
	MsgAppStop        = "Application stopped gracefully"
	MsgCtxCancel      = "Context cancelled, shutting down UI"
	MsgEngineStart    = "Clock engine started"
	MsgEngineStop     = "Clock engine stopped"
	MsgEngineRestart  = "Restarting clock engine with new zones"
	MsgSkippedZone    = "Skipping unresolvable secondary timezone"
	MsgSnapshotBuilt  = "Snapshot published"
	MsgSkippedCard    = "Skipping malformed vCard"
	MsgSkippedTZ      = "Skipping contact with unsupported timezone"
	MsgDuplicateZone  = "Zone already imported from another contact"
	MsgFetchStart     = "Initiating vCard download"
	MsgFetchStatus    = "Server returned error status"
	MsgFetchOK        = "vCards downloading"
	MsgImportDone     = "Contact zones imported"
	MsgImportStart    = "Importing contact zones"
	MsgServerListen   = "HTTP server listening"
	MsgServerStop     = "Shutting down HTTP server..."
	MsgCacheUpdated   = "Snapshot cache updated"
	MsgCacheFailed    = "Serving engine failure"
	MsgZonesRendered  = "Timezone definitions rendered"
	MsgWSConnected    = "Websocket client connected"
	MsgWSClosed       = "Websocket client disconnected"
	MsgConfigLoaded   = "Clock configuration loaded"
	MsgConfigChanged  = "Clock configuration changed"
	MsgLocaleBadName  = "Skipping malformed locale filename"
	MsgLocaleLoaded   = "Locale loaded successfully"
	MsgTransMissing   = "Missing translation key"
	MsgPassFail       = "Password retrieval failed (might be empty)"
	MsgLogWarning     = "Warning: %s at %s: %v\n"
	MsgPrefsChanged   = "Preferences changed"
	MsgSettingsSaved  = "Saving preferences"
	MsgSettingsOpen   = "Opening settings window"
	MsgSettingsFocus  = "Settings window already open, requesting focus"
	MsgClockWinOpen   = "Opening clock window"
	MsgContactsOpen   = "Opening contact zones window"
	MsgContactsSorted = "Contact zones sorted"
	MsgWorkerStart    = "Clock worker started"
	MsgWorkerStop     = "Clock worker stopped"
	MsgKeyringSaveErr = "Failed to save credentials to keyring"
	MsgNTPSynced      = "Host clock drift measured"
	MsgNTPDrift       = "Host clock drifts from network time"
	MsgNTPFailed      = "NTP query failed, keeping previous measurement"
	MsgNTPEnabled     = "Host clock drift check enabled"
	MsgOverride       = "Clock configuration file overrides preferences"
	MsgWatchStop      = "Headless watch finished"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyPort      = "port"
	LogKeyMode      = "mode"
	LogKeyZone      = "zone"
	LogKeyPrimary   = "primary"
	LogKeyZones     = "zones"
	LogKeyInterval  = "interval"
	LogKeySequence  = "sequence"
	LogKeyUser      = "user"
	LogKeyTotal     = "total_cards"
	LogKeyFound     = "zones_found"
	LogKeySkipped   = "skipped"
	LogKeySizeBytes = "size_bytes"
	LogKeyValue     = "value"
	LogKeyStats     = "stats"
	LogKeyCount     = "count"
	LogKeyName      = "name"
	LogKeyRemote    = "remote"
	LogKeyDuration  = "duration_ms"
	LogKeyServer    = "server"
	LogKeyOffset    = "offset"
	LogKeyBackoff   = "backoff"
	LogKeyClient    = "client"
	LogKeySortCol   = "sort_col"
	LogKeySortAsc   = "sort_asc"
	LogKeyImported  = "imported"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompUI       = "ui"
	CompUISet    = "ui_settings"
	CompEngine   = "engine"
	CompServer   = "server"
	CompFetcher  = "fetcher"
	CompImporter = "importer"
	CompSettings = "settings"
	CompMain     = "main"
	CompI18n     = "i18n"
	CompCLI      = "cli"
	CompNTP      = "ntp"
)

// -----------------------------------------------------------------------------
// UI Layout Constants
// -----------------------------------------------------------------------------

const (
	LayoutColumnsDouble = 2
	ZoneListRows        = 6

	// PortMaxDigits bounds what the port entry accepts while typing.
	PortMaxDigits = 5

	ContactsWinWidth  = 560
	ContactsWinHeight = 420

	ColIDContact    = 0
	ColIDZone       = 1
	ColIDTime       = 2
	ColCount        = 3
	ColWidthContact = 220
	ColWidthZone    = 200
	ColWidthTime    = 110

	TablePlaceholder = "Placeholder Text"
	SortIconAsc      = " ▲"
	SortIconDesc     = " ▼"
)

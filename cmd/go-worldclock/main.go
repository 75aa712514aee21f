package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	_ "time/tzdata" // Zone database embedded so hosts without one still resolve every zone.

	"fyne.io/fyne/v2/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/engine"
	"github.com/tartampluch/go-worldclock/internal/server"
	"github.com/tartampluch/go-worldclock/internal/settings"
	"github.com/tartampluch/go-worldclock/internal/timesource"
	"github.com/tartampluch/go-worldclock/internal/ui"
	"github.com/tartampluch/go-worldclock/internal/zonesource"
	"gopkg.in/natefinch/lumberjack.v2"
)

// options holds the persistent flags shared by every command.
type options struct {
	debug      bool
	configPath string
	ntpServer  string
	count      int

	logCloser io.Closer
}

// main is the application entry point.
// It delegates execution to runMain to ensure that deferred function calls
// (like closing log files) are executed before the process terminates.
// os.Exit() does not run defers, so we must return an integer code first.
func main() {
	os.Exit(runMain(os.Args[1:]))
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
// Returns config.ExitCodeSuccess on success, config.ExitCodeError on failure.
func runMain(args []string) int {
	opts := &options{}
	defer opts.closeLog()

	// Create a root context that cancels on SIGINT (Ctrl+C) or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCmd(opts)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}
	return config.ExitCodeSuccess
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:          config.CommandName,
		Short:        config.CmdShortRoot,
		Version:      config.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// The desktop app logs to stdout; headless commands keep stdout
			// for their own output.
			console := cmd.ErrOrStderr()
			if !cmd.HasParent() {
				console = cmd.OutOrStdout()
			}
			opts.logCloser = setupLogging(opts.debug, console)
			logStartupInfo()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := runGUI(cmd.Context(), opts)
			if err == nil {
				slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
			}
			return err
		},
	}

	cmd.SetVersionTemplate(fmt.Sprintf(config.MsgVersionOutput,
		config.AppName, config.Version, runtime.GOOS, runtime.GOARCH))

	cmd.Flags().Bool(config.FlagVersion, false, config.FlagDescVersion)
	cmd.PersistentFlags().BoolVar(&opts.debug, config.FlagDebug, false, config.FlagDescDebug)
	cmd.PersistentFlags().StringVar(&opts.configPath, config.FlagConfig, "", config.FlagDescConfig)
	cmd.PersistentFlags().StringVar(&opts.ntpServer, config.FlagNTP, "", config.FlagDescNTP)

	cmd.AddCommand(newSnapshotCmd(opts), newWatchCmd(opts))
	return cmd
}

// runGUI initializes the Fyne application, wires dependencies, and starts the UI loop.
func runGUI(ctx context.Context, opts *options) error {
	a := app.NewWithID(config.AppID)

	// Record the version for potential migration logic in future updates.
	a.Preferences().SetString(config.PrefLastRun, config.Version)

	// A configuration file, when given, replaces the saved preferences.
	s := settings.FromPreferences(a.Preferences()).Sanitize()
	var override *settings.Settings
	if opts.configPath != "" {
		fileSettings, err := loadConfig(opts.configPath)
		if err != nil {
			return err
		}
		override = &fileSettings
		s = fileSettings
	}

	srv := server.NewSnapshotServer(s.Port, startDriftMonitor(ctx, opts.ntp(s))...)
	importer := &zonesource.Importer{Fetcher: zonesource.NewHTTPFetcher()}

	gui := ui.NewWorldClockApp(a, ctx, srv, importer)

	if override != nil {
		slog.Info(config.MsgOverride,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyFile, opts.configPath)
		gui.SetOverride(*override)

		err := settings.Watch(ctx, opts.configPath, func(s settings.Settings, err error) {
			if err != nil {
				slog.Warn(config.ErrConfigRead,
					config.LogKeyComponent, config.CompMain,
					config.LogKeyError, err)
				return
			}
			gui.SetOverride(s)
		})
		if err != nil {
			// The file was loaded once; live reload is a convenience.
			slog.Warn(config.ErrConfigWatch,
				config.LogKeyComponent, config.CompMain,
				config.LogKeyError, err)
		}
	}

	// Lifecycle Bridge:
	// Watch for context cancellation to quit the UI gracefully.
	go func() {
		<-ctx.Done()
		slog.Info(config.MsgCtxCancel, config.LogKeyComponent, config.CompMain)
		a.Quit()
	}()

	// Start the Application (blocks until the app quits).
	gui.Run()

	return nil
}

// ntp returns the NTP server to use: the flag wins over the configuration.
func (opts *options) ntp(s settings.Settings) string {
	if opts.ntpServer != "" {
		return opts.ntpServer
	}
	return s.NTPServer
}

func (opts *options) closeLog() {
	if opts.logCloser != nil {
		_ = opts.logCloser.Close() // Best effort close
	}
}

// loadConfig reads a YAML clock configuration and applies the defaults.
// Unknown secondaries are only reported: the engine omits them at display
// time. An unresolvable primary or a bad port is an error.
func loadConfig(path string) (settings.Settings, error) {
	s, err := settings.LoadFile(path)
	if err != nil {
		return settings.Settings{}, err
	}
	s = s.Sanitize()

	if _, err := engine.LoadZone(s.Primary); err != nil {
		return settings.Settings{}, fmt.Errorf("%s: %w", config.ErrPrimaryZone, err)
	}
	if err := settings.ValidatePort(s.Port); err != nil {
		return settings.Settings{}, fmt.Errorf("%s: %w", config.ErrConfigInvalid, err)
	}
	if bad := s.UnknownZones(); len(bad) > 0 {
		slog.Warn(config.MsgSkippedZone,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyZones, bad)
	}

	slog.Info(config.MsgConfigLoaded,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyFile, path,
		config.LogKeyPrimary, s.Primary,
		config.LogKeyZones, len(s.Secondaries))
	return s, nil
}

// startDriftMonitor checks the host clock against ntpServer in the
// background until ctx ends, and returns its metrics. The displayed time is
// never corrected. An empty server disables the check.
func startDriftMonitor(ctx context.Context, ntpServer string) []prometheus.Collector {
	if ntpServer == "" {
		return nil
	}
	slog.Info(config.MsgNTPEnabled,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyServer, ntpServer)
	m := timesource.NewMonitor(timesource.Options{Server: ntpServer})
	go m.Run(ctx)
	return []prometheus.Collector{m.Collector()}
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging configures the default slog logger: JSON to console plus a
// rotated file in the user's cache directory when one is available.
func setupLogging(debugMode bool, console io.Writer) io.Closer {
	writers := []io.Writer{console}

	var logFile *lumberjack.Logger
	if logPath, err := getLogFilePath(); err == nil {
		logFile = &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    config.LogMaxSizeMB,
			MaxBackups: config.LogMaxBackups,
			MaxAge:     config.LogMaxAgeDays,
			Compress:   config.LogCompression,
		}
		writers = append(writers, logFile)
	} else {
		fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, config.LogFileName, err)
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts))
	slog.SetDefault(logger)

	if logFile == nil {
		return nil
	}
	return logFile
}

// getLogFilePath determines the platform-specific cache directory for logs.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)

	// Ensure the directory exists with restricted permissions (700).
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}

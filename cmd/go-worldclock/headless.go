package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/engine"
	"github.com/tartampluch/go-worldclock/internal/settings"
	"github.com/tartampluch/go-worldclock/internal/zonesource"
	"github.com/zalando/go-keyring"
)

const zoneArgs = " [primary [secondary...]]"

func newSnapshotCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   config.CmdUseSnapshot + zoneArgs,
		Short: config.CmdShortSnapshot,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := headlessSettings(opts, args)
			if err != nil {
				return err
			}
			snap, err := engine.BuildSnapshot(time.Now(), s.Primary, contactZones(cmd.Context(), s), logSkipped)
			if err != nil {
				return err
			}
			return writeSnapshot(cmd.OutOrStdout(), snap)
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   config.CmdUseWatch + zoneArgs,
		Short: config.CmdShortWatch,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := headlessSettings(opts, args)
			if err != nil {
				return err
			}
			return watchClock(cmd.Context(), cmd.OutOrStdout(), engine.Options{
				Primary:     s.Primary,
				Secondaries: contactZones(cmd.Context(), s),
			}, opts.count)
		},
	}
	cmd.Flags().IntVar(&opts.count, config.FlagCount, 0, config.FlagDescCount)
	return cmd
}

// headlessSettings returns the --config file, or the defaults. Positional
// arguments replace the zones: the first one is the primary.
func headlessSettings(opts *options, args []string) (settings.Settings, error) {
	s := settings.Default()
	if opts.configPath != "" {
		var err error
		if s, err = loadConfig(opts.configPath); err != nil {
			return settings.Settings{}, err
		}
	}
	if len(args) > 0 {
		s.Primary = args[0]
		s.Secondaries = args[1:]
	}
	return s.Sanitize(), nil
}

// contactZones appends the zones imported from the configured address book
// to the configured secondaries. A failed import keeps the configured list.
func contactZones(ctx context.Context, s settings.Settings) []string {
	if s.Contacts.Mode == config.SourceModeNone {
		return s.Secondaries
	}

	var pass string
	if user := s.Contacts.User; user != "" {
		p, err := keyring.Get(config.KeyringService, user)
		if err != nil {
			slog.Debug(config.MsgPassFail,
				config.LogKeyUser, user,
				config.LogKeyError, err,
				config.LogKeyComponent, config.CompCLI)
		}
		pass = p
	}

	im := &zonesource.Importer{Fetcher: zonesource.NewHTTPFetcher()}
	zones, err := im.Import(ctx, s.Source(pass))
	if err != nil {
		slog.Warn(config.ErrImportFailed,
			config.LogKeyComponent, config.CompCLI,
			config.LogKeyError, err)
		return s.Secondaries
	}
	return zonesource.Merge(s.Secondaries, zones)
}

// watchClock prints every published snapshot until ctx is cancelled or,
// when count is positive, count snapshots have been printed.
func watchClock(ctx context.Context, w io.Writer, opts engine.Options, count int) error {
	eng := engine.New(opts)
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Stop()

	snaps, cancel := eng.Subscribe()
	defer cancel()

	for printed := 0; count <= 0 || printed < count; printed++ {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snaps:
			if !ok {
				return eng.Err()
			}
			if err := writeSnapshot(w, snap); err != nil {
				return err
			}
		}
	}

	slog.Debug(config.MsgWatchStop,
		config.LogKeyComponent, config.CompCLI,
		config.LogKeyCount, count)
	return nil
}

// writeSnapshot prints the primary clock on one line, then one indented
// line per world clock.
func writeSnapshot(w io.Writer, snap *engine.ClockSnapshot) error {
	p := snap.Primary
	if _, err := fmt.Fprintln(w, fmt.Sprintf(config.FormatWatchLine,
		engine.Upper(engine.DeriveLabel(p.ID)),
		engine.FormatClock(p),
		engine.FormatSeconds(p),
		engine.FormatDate(p),
		engine.FormatWeekday(p),
	)); err != nil {
		return err
	}

	for _, e := range snap.Secondaries {
		line := fmt.Sprintf(config.FormatWatchEntry,
			engine.Upper(e.Label),
			engine.FormatClock(e.Time),
			engine.FormatOffset(e.OffsetMinutes),
			engine.FormatDate(e.Time),
			engine.FormatDayDelta(e.DayDelta),
		)
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

func logSkipped(id string, err error) {
	slog.Warn(config.MsgSkippedZone,
		config.LogKeyComponent, config.CompCLI,
		config.LogKeyZone, id,
		config.LogKeyError, err)
}

package settings

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tartampluch/go-worldclock/internal/config"
)

// Watch reloads the YAML file at path whenever it changes and hands the
// result to onChange (sanitized, or the load error). Bursts of events are
// coalesced into a single reload.
//
// The parent directory is watched rather than the file itself, so editors
// that replace the file on save are handled. Watch returns once the watcher
// is installed; it stops when ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(Settings, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrConfigWatch, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("%s: %w", config.ErrConfigWatch, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("%s: %w", config.ErrConfigWatch, err)
	}

	log := slog.With(
		config.LogKeyComponent, config.CompSettings,
		config.LogKeyFile, abs,
	)

	go func() {
		defer func() { _ = watcher.Close() }()

		// Buffered channel with non-blocking sends: at most one reload is pending.
		reload := make(chan struct{}, config.ChannelBufferSize)
		var debounce *time.Timer
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				log.Debug(config.MsgConfigChanged, config.LogKeyValue, ev.Op.String())
				if debounce == nil {
					debounce = time.AfterFunc(config.ConfigReloadDelay, func() {
						select {
						case reload <- struct{}{}:
						default:
						}
					})
				} else {
					debounce.Reset(config.ConfigReloadDelay)
				}

			case <-reload:
				s, err := LoadFile(abs)
				if err != nil {
					log.Warn(config.ErrConfigRead, config.LogKeyError, err)
					onChange(Settings{}, err)
					continue
				}
				s = s.Sanitize()
				log.Info(config.MsgConfigLoaded,
					config.LogKeyPrimary, s.Primary,
					config.LogKeyZones, len(s.Secondaries),
				)
				onChange(s, nil)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn(config.ErrConfigWatch, config.LogKeyError, err)
			}
		}
	}()

	return nil
}

// Package timesource checks the host clock against network time.
//
// The displayed time always comes from the host clock. The measured drift
// is only reported, in the logs and as Prometheus gauges.
package timesource

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/tartampluch/go-worldclock/internal/config"
)

// QueryFunc measures the offset between the host clock and server.
type QueryFunc func(server string) (time.Duration, error)

// Query asks an NTP server for the host clock offset.
func Query(server string) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: config.NTPQueryTimeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Options configures a Monitor. Zero values select production defaults.
type Options struct {
	Server   string
	Interval time.Duration    // Defaults to config.NTPSyncInterval.
	Query    QueryFunc        // Defaults to Query.
	HostNow  func() time.Time // Defaults to time.Now.
	Logger   *slog.Logger     // Defaults to slog.Default().
}

// Monitor periodically measures how far the host clock is from an NTP
// server. Failed queries keep the previous measurement and back off
// exponentially.
type Monitor struct {
	server   string
	interval time.Duration
	query    QueryFunc
	hostNow  func() time.Time
	log      *slog.Logger

	mu       sync.Mutex
	offset   time.Duration
	lastSync time.Time
	lastErr  error
	backoff  time.Duration
}

// NewMonitor creates an idle monitor; call Run or Check to measure.
func NewMonitor(opts Options) *Monitor {
	m := &Monitor{
		server:   opts.Server,
		interval: opts.Interval,
		query:    opts.Query,
		hostNow:  opts.HostNow,
		log:      opts.Logger,
	}
	if m.interval <= 0 {
		m.interval = config.NTPSyncInterval
	}
	if m.query == nil {
		m.query = Query
	}
	if m.hostNow == nil {
		m.hostNow = time.Now
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	m.log = m.log.With(
		config.LogKeyComponent, config.CompNTP,
		config.LogKeyServer, m.server,
	)
	return m
}

// Run measures immediately, then again after every interval (or backoff
// delay) until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(m.Check())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Check runs one query and returns the delay before the next one.
func (m *Monitor) Check() time.Duration {
	offset, err := m.query(m.server)
	now := m.hostNow()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.lastErr = err
		if m.backoff == 0 {
			m.backoff = config.NTPBackoffInitial
		} else {
			m.backoff = min(m.backoff*2, config.NTPBackoffMax)
		}
		m.log.Warn(config.MsgNTPFailed,
			config.LogKeyError, err,
			config.LogKeyBackoff, m.backoff,
		)
		return m.backoff
	}

	m.offset = offset
	m.lastSync = now
	m.lastErr = nil
	m.backoff = 0

	if offset.Abs() > config.NTPDriftWarn {
		m.log.Warn(config.MsgNTPDrift, config.LogKeyOffset, offset)
	} else {
		m.log.Debug(config.MsgNTPSynced, config.LogKeyOffset, offset)
	}
	return m.interval
}

// Health reports whether the last query succeeded, with the last measured drift.
func (m *Monitor) Health() (healthy bool, offset time.Duration, lastSync time.Time, lastErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr == nil && !m.lastSync.IsZero(), m.offset, m.lastSync, m.lastErr
}

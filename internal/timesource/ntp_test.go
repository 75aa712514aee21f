package timesource_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/timesource"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeServer struct {
	mu      sync.Mutex
	offsets []time.Duration
	errs    []error
	calls   int
}

func (s *fakeServer) Query(server string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return 0, s.errs[i]
	}
	if i < len(s.offsets) {
		return s.offsets[i], nil
	}
	return s.offsets[len(s.offsets)-1], nil
}

func (s *fakeServer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func hostAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestMonitor_IdleUntilChecked(t *testing.T) {
	srv := &fakeServer{offsets: []time.Duration{time.Second}}
	m := timesource.NewMonitor(timesource.Options{Server: "pool.ntp.org", Query: srv.Query})

	healthy, offset, lastSync, err := m.Health()
	assert.False(t, healthy)
	assert.Zero(t, offset)
	assert.True(t, lastSync.IsZero())
	assert.NoError(t, err)
	assert.Equal(t, 0, srv.Calls())
}

func TestMonitor_Check(t *testing.T) {
	srv := &fakeServer{offsets: []time.Duration{1500 * time.Millisecond}}
	m := timesource.NewMonitor(timesource.Options{
		Server:   "pool.ntp.org",
		Interval: time.Minute,
		Query:    srv.Query,
		HostNow:  hostAt(epoch),
	})

	assert.Equal(t, time.Minute, m.Check(), "Success schedules the next check after the interval")

	healthy, offset, lastSync, err := m.Health()
	assert.True(t, healthy)
	assert.Equal(t, 1500*time.Millisecond, offset)
	assert.Equal(t, epoch, lastSync)
	assert.NoError(t, err)
}

func TestMonitor_FailureKeepsLastMeasurement(t *testing.T) {
	boom := errors.New("i/o timeout")
	srv := &fakeServer{errs: []error{nil, boom}, offsets: []time.Duration{-3 * time.Second}}
	m := timesource.NewMonitor(timesource.Options{Server: "pool.ntp.org", Query: srv.Query, HostNow: hostAt(epoch)})

	m.Check()
	assert.Equal(t, config.NTPBackoffInitial, m.Check())

	healthy, offset, lastSync, err := m.Health()
	assert.False(t, healthy)
	assert.Equal(t, -3*time.Second, offset)
	assert.Equal(t, epoch, lastSync)
	assert.ErrorIs(t, err, boom)
}

func TestMonitor_BackoffGrows(t *testing.T) {
	boom := errors.New("refused")
	srv := &fakeServer{errs: []error{boom, boom, boom, nil}, offsets: []time.Duration{0}}
	m := timesource.NewMonitor(timesource.Options{Server: "unreachable.example", Query: srv.Query})

	assert.Equal(t, config.NTPBackoffInitial, m.Check())
	assert.Equal(t, 2*config.NTPBackoffInitial, m.Check())
	assert.Equal(t, 4*config.NTPBackoffInitial, m.Check())

	assert.Equal(t, config.NTPSyncInterval, m.Check(), "Success resets the backoff")
}

func TestMonitor_BackoffCapped(t *testing.T) {
	boom := errors.New("refused")
	errs := make([]error, 20)
	for i := range errs {
		errs[i] = boom
	}
	srv := &fakeServer{errs: errs, offsets: []time.Duration{0}}
	m := timesource.NewMonitor(timesource.Options{Server: "unreachable.example", Query: srv.Query})

	var last time.Duration
	for range errs {
		last = m.Check()
	}
	assert.Equal(t, config.NTPBackoffMax, last)
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	srv := &fakeServer{offsets: []time.Duration{time.Second}}
	m := timesource.NewMonitor(timesource.Options{
		Server:   "pool.ntp.org",
		Interval: 5 * time.Millisecond,
		Query:    srv.Query,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return srv.Calls() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestMonitor_Collector(t *testing.T) {
	srv := &fakeServer{offsets: []time.Duration{-250 * time.Millisecond}}
	m := timesource.NewMonitor(timesource.Options{Server: "pool.ntp.org", Query: srv.Query, HostNow: hostAt(epoch)})
	m.Check()

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(m.Collector()))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		require.Len(t, mf.GetMetric(), 1)
		values[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
	}

	assert.Equal(t, map[string]float64{
		config.MetricNTPOffset:   -0.25,
		config.MetricNTPLastSync: float64(epoch.Unix()),
		config.MetricNTPHealthy:  1,
	}, values)
}

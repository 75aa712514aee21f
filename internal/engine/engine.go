package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tartampluch/go-worldclock/internal/config"
)

// Lifecycle errors returned by Start.
var (
	ErrAlreadyStarted = errors.New(config.ErrEngineStarted)
	ErrStopped        = errors.New(config.ErrEngineStopped)
)

// State is the lifecycle position of an Engine.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures an Engine. Zero values select production defaults.
type Options struct {
	Primary     string
	Secondaries []string

	Clock    Clock         // Defaults to RealClock.
	Interval time.Duration // Defaults to config.TickInterval.
	Logger   *slog.Logger  // Defaults to slog.Default().
}

// Engine owns the ticking clock: it samples the time once per tick, derives
// a ClockSnapshot for the configured zones and publishes it atomically.
//
// Readers either poll Current or receive snapshots from Subscribe. A
// subscription channel holds at most one pending snapshot; a slow reader
// only ever sees the latest one.
type Engine struct {
	primary     string
	secondaries []string
	clock       Clock
	interval    time.Duration
	log         *slog.Logger
	skip        SkipFunc

	// current uses atomic.Pointer for lock-free reads from the UI and the
	// HTTP handlers. Snapshots are never modified after being stored.
	current atomic.Pointer[ClockSnapshot]

	mu       sync.Mutex
	state    State
	err      error
	sequence uint64
	subs     map[chan *ClockSnapshot]struct{}
	stopCh   chan struct{}
	done     chan struct{}
}

// New creates an idle engine. The secondary list is copied.
func New(opts Options) *Engine {
	e := &Engine{
		primary:     opts.Primary,
		secondaries: append([]string(nil), opts.Secondaries...),
		clock:       opts.Clock,
		interval:    opts.Interval,
		log:         opts.Logger,
		subs:        make(map[chan *ClockSnapshot]struct{}),
	}
	if e.clock == nil {
		e.clock = RealClock{}
	}
	if e.interval <= 0 {
		e.interval = config.TickInterval
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.log = e.log.With(config.LogKeyComponent, config.CompEngine)
	e.skip = logSkips(e.log)
	return e
}

// Start publishes the first snapshot synchronously, then keeps ticking until
// Stop is called or ctx is cancelled.
//
// If the primary zone cannot be resolved the engine moves to StateFailed,
// publishes nothing and returns an error matching ErrUnknownTimezone.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrStopped
	case StateFailed:
		return e.err
	}

	snap, err := e.build()
	if err != nil {
		e.failLocked(err)
		return e.err
	}

	e.state = StateRunning
	e.publishLocked(snap)

	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})
	go e.loop(ctx, e.stopCh, e.done)

	e.log.Info(config.MsgEngineStart,
		config.LogKeyPrimary, e.primary,
		config.LogKeyZones, len(e.secondaries),
		config.LogKeyInterval, e.interval,
	)
	return nil
}

// Stop cancels the tick cadence and waits for the tick goroutine to exit.
// No snapshot is published once Stop returns. Stopping twice is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	switch e.state {
	case StateRunning:
		e.state = StateStopped
		close(e.stopCh)
		done := e.done
		e.mu.Unlock()
		<-done
		e.log.Info(config.MsgEngineStop)
		return
	case StateIdle:
		e.state = StateStopped
		e.closeSubsLocked()
	}
	e.mu.Unlock()
}

// Current returns the latest snapshot, or nil before the first one.
func (e *Engine) Current() *ClockSnapshot {
	return e.current.Load()
}

// Subscribe registers an observer. The channel immediately carries the
// current snapshot if there is one, and is closed when the engine stops or
// fails, or when cancel is called.
func (e *Engine) Subscribe() (<-chan *ClockSnapshot, func()) {
	ch := make(chan *ClockSnapshot, config.ChannelBufferSize)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateStopped || e.state == StateFailed {
		close(ch)
		return ch, func() {}
	}

	if snap := e.current.Load(); snap != nil {
		ch <- snap
	}
	e.subs[ch] = struct{}{}

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// State reports the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the fatal error of a failed engine.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Primary returns the configured primary identifier.
func (e *Engine) Primary() string { return e.primary }

// Secondaries returns a copy of the configured secondary identifiers.
func (e *Engine) Secondaries() []string {
	return append([]string(nil), e.secondaries...)
}

// loop drives the tick cadence. time.Ticker drops ticks for a slow
// receiver, so a late rebuild never queues a backlog.
func (e *Engine) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer e.finish()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if !e.tick() {
				return
			}
		}
	}
}

// tick rebuilds and publishes one snapshot. It reports false when the
// engine must not tick again.
func (e *Engine) tick() bool {
	snap, err := e.build()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return false
	}
	if err != nil {
		e.failLocked(err)
		return false
	}
	e.publishLocked(snap)
	return true
}

func (e *Engine) build() (*ClockSnapshot, error) {
	return BuildSnapshot(e.clock.Now(), e.primary, e.secondaries, e.skip)
}

// publishLocked numbers and stores snap, then hands it to every subscriber
// without blocking: a pending stale snapshot is replaced by the new one.
func (e *Engine) publishLocked(snap *ClockSnapshot) {
	e.sequence++
	snap.Sequence = e.sequence
	e.current.Store(snap)

	for ch := range e.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}

	e.log.Debug(config.MsgSnapshotBuilt,
		config.LogKeySequence, snap.Sequence,
		config.LogKeyCount, len(snap.Secondaries),
	)
}

func (e *Engine) failLocked(err error) {
	e.state = StateFailed
	e.err = fmt.Errorf("%s: %w", config.ErrPrimaryZone, err)
	e.closeSubsLocked()
	e.log.Error(config.ErrPrimaryZone,
		config.LogKeyPrimary, e.primary,
		config.LogKeyError, err,
	)
}

// finish runs when the tick goroutine exits, whatever the reason.
func (e *Engine) finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		e.state = StateStopped
	}
	e.closeSubsLocked()
}

func (e *Engine) closeSubsLocked() {
	for ch := range e.subs {
		close(ch)
		delete(e.subs, ch)
	}
}

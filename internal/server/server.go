package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tartampluch/go-worldclock/internal/config"
	"github.com/tartampluch/go-worldclock/internal/engine"
)

// cacheItem stores the rendered snapshot and its metadata for HTTP caching.
// A failed item carries err instead of a snapshot.
type cacheItem struct {
	snap *engine.ClockSnapshot
	data []byte
	etag string
	err  error
}

// zonesItem caches the rendered VTIMEZONE calendar for one zone list and year.
type zonesItem struct {
	key  string
	data []byte
	etag string
}

// SnapshotServer serves the latest clock snapshot on localhost: as JSON,
// as a websocket stream, and the displayed zones as iCalendar VTIMEZONEs.
type SnapshotServer struct {
	// cache uses atomic.Pointer for lock-free reads. The engine replaces the
	// whole item once per tick while clients only read.
	cache atomic.Pointer[cacheItem]
	zones atomic.Pointer[zonesItem]
	Port  string

	hub       *hub
	metrics   *metrics
	upgrader  websocket.Upgrader
	closing   chan struct{}
	closeOnce sync.Once
}

// NewSnapshotServer creates a server. Extra collectors (the NTP clock) are
// exposed on the metrics endpoint.
func NewSnapshotServer(port string, collectors ...prometheus.Collector) *SnapshotServer {
	return &SnapshotServer{
		Port:    port,
		hub:     newHub(),
		metrics: newMetrics(collectors...),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: config.WSWriteTimeout,
		},
		closing: make(chan struct{}),
	}
}

// Handler returns the routing table. Start serves it; tests may mount it on
// an httptest server.
func (s *SnapshotServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(config.RouteRoot, s.metrics.instrument(config.RouteRoot, s.handleSnapshotRequest))
	mux.HandleFunc(config.RouteZones, s.metrics.instrument(config.RouteZones, s.handleZonesRequest))
	mux.HandleFunc(config.RouteStream, s.handleStream)
	mux.Handle(config.RouteMetrics, s.metrics.handler())
	return mux
}

// Start initializes the HTTP server and blocks until the context is cancelled.
// Websocket streams are closed on shutdown.
func (s *SnapshotServer) Start(ctx context.Context) error {
	if s.Port == "" {
		return errors.New(config.ErrPortRequired)
	}

	srv := &http.Server{
		Addr:         config.LocalhostBindAddr + config.AddrSeparator + s.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}
	// Hijacked websocket connections are not tracked by Shutdown.
	srv.RegisterOnShutdown(s.close)

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		s.close()
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

func (s *SnapshotServer) close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// Update atomically replaces the served snapshot and pushes it to websocket
// clients. A nil snapshot is ignored.
func (s *SnapshotServer) Update(snap *engine.ClockSnapshot) {
	if snap == nil {
		return
	}

	data, err := json.Marshal(NewSnapshotDTO(snap))
	if err != nil {
		slog.Error(config.ErrJSONEncode,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		return
	}

	item := &cacheItem{snap: snap, data: data, etag: etagOf(data)}

	// Atomic store ensures that any concurrent reader sees either the old or
	// the new complete item, never a partial state.
	s.cache.Store(item)
	s.metrics.updates.Inc()
	s.hub.broadcast(item)

	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeySequence, snap.Sequence,
		config.LogKeySizeBytes, len(data),
	)
}

// Fail replaces the served snapshot with err: "/" and "/zones.ics" answer
// 503 with the error text and websocket clients receive a close frame.
// It stays in effect until the next Update or Reset.
func (s *SnapshotServer) Fail(err error) {
	if err == nil {
		return
	}
	item := &cacheItem{err: err}
	s.cache.Store(item)
	s.hub.broadcast(item)

	slog.Warn(config.MsgCacheFailed,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyError, err,
	)
}

// Reset drops the served snapshot. Requests answer 503 "initializing" until
// the next Update.
func (s *SnapshotServer) Reset() {
	s.cache.Store(nil)
}

// Follow feeds every snapshot received on snaps into Update until the
// channel is closed or ctx is cancelled.
func (s *SnapshotServer) Follow(ctx context.Context, snaps <-chan *engine.ClockSnapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			s.Update(snap)
		}
	}
}

// Clients reports the number of connected websocket clients.
func (s *SnapshotServer) Clients() int {
	return s.hub.len()
}

func etagOf(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:]))
}

// checkMethod enforces GET/HEAD. It reports false after answering 405.
func checkMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// loadReady returns the cached snapshot, or answers 503 when the engine has
// not published yet or has failed.
func (s *SnapshotServer) loadReady(w http.ResponseWriter) *cacheItem {
	item := s.cache.Load()
	switch {
	case item == nil:
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return nil
	case item.err != nil:
		w.Header().Set(config.HeaderCacheControl, config.CacheControlNoStore)
		http.Error(w, item.err.Error(), http.StatusServiceUnavailable)
		return nil
	}
	return item
}

// serveCached writes data with caching headers, honouring If-None-Match.
func serveCached(w http.ResponseWriter, r *http.Request, contentType, cacheControl, etag string, data []byte) {
	w.Header().Set(config.HeaderContentType, contentType)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, cacheControl)
	w.Header().Set(config.HeaderETag, etag)

	if match := r.Header.Get(config.HeaderIfNoneMatch); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if r.Method == http.MethodGet {
		if _, err := w.Write(data); err != nil {
			slog.Error(config.ErrWriteResp,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
	}
}

// handleSnapshotRequest serves the current snapshot as JSON.
func (s *SnapshotServer) handleSnapshotRequest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != config.RouteRoot {
		http.NotFound(w, r)
		return
	}
	if !checkMethod(w, r) {
		return
	}
	item := s.loadReady(w)
	if item == nil {
		return
	}
	serveCached(w, r, config.MimeJSON, config.CacheControlNoStore, item.etag, item.data)
}

// handleZonesRequest serves a VTIMEZONE for the primary and every displayed
// secondary zone, built for the year of the current snapshot.
func (s *SnapshotServer) handleZonesRequest(w http.ResponseWriter, r *http.Request) {
	if !checkMethod(w, r) {
		return
	}
	item := s.loadReady(w)
	if item == nil {
		return
	}

	zi, err := s.renderZones(item.snap)
	if err != nil {
		slog.Error(config.ErrICalEncode,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgInternalErr, http.StatusInternalServerError)
		return
	}
	serveCached(w, r, config.MimeTextCalendar, config.CacheControlPrivate, zi.etag, zi.data)
}

// renderZones returns the cached calendar when the zone list and year are
// unchanged since the last request.
func (s *SnapshotServer) renderZones(snap *engine.ClockSnapshot) (*zonesItem, error) {
	ids := make([]string, 0, len(snap.Secondaries)+1)
	ids = append(ids, snap.Primary.ID)
	for _, e := range snap.Secondaries {
		ids = append(ids, e.ID)
	}
	year := snap.Primary.Year()
	key := strconv.Itoa(year) + config.AddrSeparator + strings.Join(ids, config.TZComponentSep)

	if zi := s.zones.Load(); zi != nil && zi.key == key {
		return zi, nil
	}

	data, err := RenderZones(ids, year)
	if err != nil {
		return nil, err
	}
	zi := &zonesItem{key: key, data: data, etag: etagOf(data)}
	s.zones.Store(zi)

	slog.Debug(config.MsgZonesRendered,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyZones, len(ids),
		config.LogKeySizeBytes, len(data),
	)
	return zi, nil
}

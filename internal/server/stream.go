package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tartampluch/go-worldclock/internal/config"
)

// wsClient is one websocket subscriber. send holds at most one pending
// message; a slow client only ever receives the latest snapshot.
type wsClient struct {
	id   string
	send chan *cacheItem
}

// hub tracks connected websocket clients.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// broadcast hands item to every client without blocking, replacing any
// pending stale item.
func (h *hub) broadcast(item *cacheItem) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- item:
			continue
		default:
		}
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- item:
		default:
		}
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// closeReason fits err into the payload of a close frame.
func closeReason(err error) string {
	reason := err.Error()
	if len(reason) > config.WSCloseReasonMax {
		reason = reason[:config.WSCloseReasonMax]
	}
	return reason
}

// handleStream upgrades to a websocket and pushes every published snapshot.
// The current snapshot, if any, is sent immediately. A failed engine closes
// the stream with CloseInternalServerErr.
func (s *SnapshotServer) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		slog.Warn(config.ErrWSUpgrade,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		return
	}
	defer func() { _ = conn.Close() }()

	client := &wsClient{
		id:   uuid.NewString(),
		send: make(chan *cacheItem, config.ChannelBufferSize),
	}
	log := slog.With(
		config.LogKeyComponent, config.CompServer,
		config.LogKeyClient, client.id,
		config.LogKeyRemote, r.RemoteAddr,
	)

	if item := s.cache.Load(); item != nil {
		client.send <- item
	}
	s.hub.add(client)
	s.metrics.wsClients.Inc()
	log.Info(config.MsgWSConnected)
	defer func() {
		s.hub.remove(client)
		s.metrics.wsClients.Dec()
		log.Info(config.MsgWSClosed)
	}()

	// The read side only processes control frames; it ends when the peer
	// goes away or stops answering pings.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadLimit(config.WSReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(config.WSPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(config.WSPongTimeout))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(config.WSPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(config.WSWriteTimeout))
			return

		case <-readDone:
			return

		case item := <-client.send:
			if item.err != nil {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseInternalServerErr, closeReason(item.err)),
					time.Now().Add(config.WSWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(config.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, item.data); err != nil {
				log.Debug(config.ErrWSWrite, config.LogKeyError, err)
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(config.WSWriteTimeout)); err != nil {
				log.Debug(config.ErrWSWrite, config.LogKeyError, err)
				return
			}
		}
	}
}

// Package web serves the operator surface: a websocket feed of pipeline
// events, a health endpoint and the metrics endpoint.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	prom "github.com/groundlink-io/groundlink/pkg/observability/prometheus"
)

// clientBuffer is the per-client send queue. A client that falls this far
// behind starts losing messages rather than stalling the pipeline.
const clientBuffer = 64

// Feed broadcasts pipeline events to connected websocket clients.
type Feed struct {
	log     *slog.Logger
	metrics *prom.Metrics

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

// NewFeed creates an event feed. metrics may be nil.
func NewFeed(log *slog.Logger, metrics *prom.Metrics) *Feed {
	if log == nil {
		log = slog.Default()
	}
	return &Feed{
		log:     log,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// HandleWS upgrades the request and streams feed events until the client
// disconnects.
func (f *Feed) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Error("websocket upgrade failed", "error", err)
		return
	}

	send := make(chan []byte, clientBuffer)

	f.mu.Lock()
	f.clients[conn] = send
	n := len(f.clients)
	f.mu.Unlock()
	f.metrics.SetFeedClients(n)
	f.log.Info("feed client connected", "remote", conn.RemoteAddr(), "clients", n)

	go f.writeLoop(conn, send)
	go f.readLoop(conn)
}

// writeLoop drains the client's send queue. It exits when removeClient
// closes the queue.
func (f *Feed) writeLoop(conn *websocket.Conn, send chan []byte) {
	for msg := range send {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			f.removeClient(conn)
			return
		}
	}
}

// readLoop discards inbound frames; the feed is one-way. Its real job is
// noticing the close handshake.
func (f *Feed) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.log.Debug("feed client read error", "error", err)
			}
			f.removeClient(conn)
			return
		}
	}
}

func (f *Feed) removeClient(conn *websocket.Conn) {
	f.mu.Lock()
	send, ok := f.clients[conn]
	delete(f.clients, conn)
	n := len(f.clients)
	f.mu.Unlock()

	if ok {
		close(send)
		conn.Close()
		f.metrics.SetFeedClients(n)
		f.log.Info("feed client disconnected", "clients", n)
	}
}

// Publish encodes v as JSON and queues it on every client. Slow clients
// lose the message instead of blocking the caller.
func (f *Feed) Publish(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		f.log.Error("failed to encode feed event", "error", err)
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, send := range f.clients {
		select {
		case send <- data:
		default:
			f.metrics.IncFeedDropped()
		}
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Close disconnects every client.
func (f *Feed) Close() {
	f.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(f.clients))
	for conn := range f.clients {
		conns = append(conns, conn)
	}
	f.mu.Unlock()

	for _, conn := range conns {
		f.removeClient(conn)
	}
}

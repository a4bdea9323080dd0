// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 2 * time.Second
	clientSend = 16 // queued messages per client before drops
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketHub broadcasts JSON payloads to every connected client. It is
// an http.Handler for the upgrade endpoint and a Transport for the frame
// loop. Slow clients drop messages rather than stall the broadcaster.
type WebSocketHub struct {
	upgrader    websocket.Upgrader
	minInterval time.Duration
	onClients   func(delta int)
	now         func() time.Time

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    time.Time
	closed  bool
	dropped uint64

	wg sync.WaitGroup
}

// HubOption configures a WebSocketHub.
type HubOption func(*WebSocketHub)

// WithMinInterval drops Sends that arrive sooner than d after the last
// broadcast.
func WithMinInterval(d time.Duration) HubOption {
	return func(h *WebSocketHub) { h.minInterval = d }
}

// WithClientHook is told about every connect (+1) and disconnect (-1).
func WithClientHook(fn func(delta int)) HubOption {
	return func(h *WebSocketHub) { h.onClients = fn }
}

// NewWebSocketHub returns a hub with no clients.
func NewWebSocketHub(opts ...HubOption) *WebSocketHub {
	h := &WebSocketHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local overlays and dashboards connect from file:// and other ports
			},
		},
		clients: make(map[*wsClient]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the connection and registers the client.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		tLog.Warnf("websocket upgrade: %v", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, clientSend)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.wg.Add(2)
	h.mu.Unlock()

	h.delta(1)
	tLog.Infof("websocket client %s connected, total: %d", conn.RemoteAddr(), total)
	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards client messages and detects disconnects.
func (h *WebSocketHub) readPump(c *wsClient) {
	defer h.wg.Done()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(c)
}

func (h *WebSocketHub) writePump(c *wsClient) {
	defer h.wg.Done()
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			tLog.Debugf("websocket write to %s: %v", c.conn.RemoteAddr(), err)
			h.drop(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
}

// drop unregisters c once; its send channel is closed under the lock so
// Send never writes to a closed channel.
func (h *WebSocketHub) drop(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	total := len(h.clients)
	h.mu.Unlock()

	h.delta(-1)
	tLog.Infof("websocket client %s disconnected, total: %d", c.conn.RemoteAddr(), total)
}

func (h *WebSocketHub) delta(d int) {
	if h.onClients != nil {
		h.onClients(d)
	}
}

// Send marshals data once and queues it for every client.
func (h *WebSocketHub) Send(data any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if len(h.clients) == 0 {
		return nil
	}
	now := h.now()
	if h.minInterval > 0 && !h.last.IsZero() && now.Sub(h.last) < h.minInterval {
		return nil
	}
	h.last = now

	msg, err := json.Marshal(data)
	if err != nil {
		return err
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped++
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *WebSocketHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of messages discarded for slow clients.
func (h *WebSocketHub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close disconnects every client and waits for their goroutines.
func (h *WebSocketHub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	n := len(h.clients)
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if n > 0 {
		h.delta(-n)
	}
	h.wg.Wait()
	tLog.Infof("websocket hub closed")
	return nil
}

var (
	_ Transport    = (*WebSocketHub)(nil)
	_ http.Handler = (*WebSocketHub)(nil)
)

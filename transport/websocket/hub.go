package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log15 "github.com/inconshreveable/log15/v3"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Full snapshots ride this
	// connection, so it is roomier than a chat socket would need.
	maxMessageSize = 64 * 1024

	// Per-connection outbound buffer. A peer that stops draining it is
	// dropped rather than allowed to block the room.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Handler consumes inbound traffic from the hub.
type Handler interface {
	HandleMessage(connectionID string, data []byte)
	HandleDisconnect(connectionID string)
}

// Frame is the server-to-client message shape.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client is one WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	// mu orders enqueues against the shutdown close of send. Without it a
	// sender caught between the hub's table read and the channel send can hit
	// a just-closed channel and take the process down.
	mu     sync.Mutex
	closed bool
}

// ID returns the server-assigned connection id.
func (c *Client) ID() string { return c.id }

// enqueue queues one outbound payload. It reports false when the client is
// already shut down or its buffer is full; in the latter case the caller
// drops the client.
func (c *Client) enqueue(payload []byte) (queued, full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, false
	}
	select {
	case c.send <- payload:
		return true, false
	default:
		return false, true
	}
}

// shutdown closes the send channel exactly once. Safe to call concurrently
// with enqueue and with itself.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Hub owns every live connection, keyed by connection id. It is the
// coordinator's connection registry (IsLive) and outbound sender (Send) at
// the same time: liveness is simply presence in the table.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	handler Handler
	log     log15.Logger
}

// NewHub creates a hub with no connections.
func NewHub(logger log15.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		log:     logger,
	}
}

// SetHandler wires the inbound consumer. It must be called before ServeWS.
func (h *Hub) SetHandler(handler Handler) { h.handler = handler }

// ServeWS upgrades an HTTP request, assigns the connection its id and starts
// the read and write pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "err", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		id:   uuid.NewString(),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	h.log.Debug("connection opened", "conn", client.id)

	go client.writePump()
	go client.readPump()
}

// IsLive reports whether a connection is still in the table. This is the
// point-in-time probe behind authority handover; the answer is never cached.
func (h *Hub) IsLive(connectionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connectionID]
	return ok
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send marshals one event frame and queues it for a connection. A missing
// connection is a no-op; a full send buffer drops the connection instead of
// blocking the caller.
func (h *Hub) Send(connectionID, event string, data any) {
	payload, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		h.log.Error("marshal outbound frame", "event", event, "err", err)
		return
	}

	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if _, full := client.enqueue(payload); full {
		h.drop(client)
	}
}

// drop removes a client from the table and tells the handler. Safe to call
// more than once for the same client; only the first call does anything.
func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.id)
	h.mu.Unlock()

	client.shutdown()
	h.log.Debug("connection closed", "conn", client.id)
	if h.handler != nil {
		h.handler.HandleDisconnect(client.id)
	}
}

// readPump pumps messages from the WebSocket connection to the handler.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read error", "conn", c.id, "err", err)
			}
			break
		}
		if c.hub.handler != nil {
			c.hub.handler.HandleMessage(c.id, message)
		}
	}
}

// writePump pumps messages from the send channel to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped this connection.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

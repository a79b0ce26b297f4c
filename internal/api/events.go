// Package api — WebSocket hub for real-time engine event broadcasting.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Event types broadcast to WebSocket clients.
const (
	EventPositionOpened = "position_opened"
	EventPositionClosed = "position_closed"
	EventRebalanced     = "rebalanced"
)

// Event is a JSON message sent to WebSocket clients.
type Event struct {
	Type       string `json:"type"`
	Strategy   string `json:"strategy,omitempty"`
	MarketID   string `json:"market_id,omitempty"`
	PositionID string `json:"position_id,omitempty"`
	Side       string `json:"side,omitempty"`
	Quantity   string `json:"quantity,omitempty"`
	Price      string `json:"price,omitempty"`
	PnL        string `json:"pnl,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Payload    any    `json:"payload,omitempty"`
}

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingInterval  = 30 * time.Second
	clientBacklog = 32
)

// client is one WebSocket subscriber. Its writer goroutine is the only
// thing that touches conn for writes; the hub only sees the send channel.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub fans engine events out to WebSocket clients. The client set
// is owned by the Run goroutine; there is no shared-map locking.
type EventHub struct {
	clients    map[*client]struct{}
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
}

// NewEventHub creates a new WebSocket event hub.
func NewEventHub() *EventHub {
	return &EventHub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run services the hub until ctx is cancelled, then disconnects every
// client. Must be called in a goroutine before HandleWS is routed.
func (h *EventHub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			slog.Info("ws client connected", "total", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Client is not draining its backlog; evict it.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Broadcast sends an event to all connected clients. Drops the event if
// the hub's buffer is full to avoid blocking the trading loop.
func (h *EventHub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *EventHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBacklog)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

// writePump delivers broadcasts and keepalive pings on the single writer
// goroutine the connection requires. A closed send channel means the hub
// evicted the client or shut down.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump discards inbound frames, refreshes the read deadline on pongs
// and detects disconnects.
func (c *client) readPump(h *EventHub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

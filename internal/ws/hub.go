// Package ws fans ingestion and reply events out to connected operator
// sessions over WebSocket. Delivery is at-most-once per socket: a
// disconnected session simply misses the push and catches up on its next
// fetch.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client wraps one WebSocket connection. writeMu serializes writes:
// gorilla/websocket allows at most one concurrent writer per connection,
// and broadcasts can arrive from parallel account syncs.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// Hub manages the set of active sessions and broadcasts events to all of
// them. Broadcast failures are logged and the failing socket is dropped;
// they never propagate to the caller of the triggering write.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	maxConns int
	logger   *zap.Logger
}

// NewHub creates a Hub with a global connection limit.
func NewHub(maxConns int, logger *zap.Logger) *Hub {
	if maxConns <= 0 {
		maxConns = 64
	}
	return &Hub{
		clients:  make(map[*Client]struct{}),
		maxConns: maxConns,
		logger:   logger,
	}
}

// Register adds a connection to the hub. If the connection limit is
// exceeded, the new connection is closed and nil is returned.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) >= h.maxConns {
		h.logger.Warn("ws: connection limit exceeded, rejecting session",
			zap.Int("max_conns", h.maxConns))
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections"),
			time.Time{},
		)
		_ = conn.Close()
		return nil
	}

	client := &Client{conn: conn}
	h.clients[client] = struct{}{}
	return client
}

// Unregister removes a client from the hub and closes its connection.
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	_ = client.conn.Close()
}

// Broadcast sends an event frame to every connected session. Write errors
// unregister the failing client; nothing is retried.
func (h *Hub) Broadcast(eventType string, payload any) {
	frame, err := json.Marshal(Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("ws: failed to marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(websocket.TextMessage, frame); err != nil {
			h.logger.Warn("ws: failed to write event, dropping session",
				zap.String("type", eventType), zap.Error(err))
			go h.Unregister(client)
		}
	}
}

// ActiveConnections returns the number of connected sessions.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/ws"
)

// WebSocketHandler handles the /api/v1/ws endpoint for realtime updates.
// Authentication happens upstream at the reverse proxy; by the time a
// request reaches this process it is trusted.
type WebSocketHandler struct {
	hub    *ws.Hub
	logger *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(hub *ws.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// This server sits behind a reverse proxy in a trusted environment.
		return true
	},
}

// Handle upgrades the HTTP connection to a WebSocket and registers it
// with the Hub.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := h.hub.Register(conn)
	if client == nil {
		h.logger.Warn("connection rejected, max connections exceeded")
		return
	}

	go h.readLoop(client)
}

// readLoop keeps the connection open and detects disconnects. Inbound
// frames are discarded: the socket is push-only.
func (h *WebSocketHandler) readLoop(client *ws.Client) {
	defer h.hub.Unregister(client)

	for {
		if _, _, err := client.Conn().ReadMessage(); err != nil {
			return
		}
	}
}

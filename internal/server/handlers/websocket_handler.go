package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/socket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler serves the live tracker feed.
type WebSocketHandler struct {
	hub    *socket.Hub
	logger *zap.Logger
}

// NewWebSocketHandler constructs the feed handler.
func NewWebSocketHandler(hub *socket.Hub, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{hub: hub, logger: logger}
}

// ServeWs upgrades the request and streams tracker events until the client
// goes away or stops answering pings. The optional routeId query narrows the
// feed to one route.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	routeID := strings.TrimSpace(c.Query("routeId"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	h.hub.Serve(uuid.NewString(), routeID, conn)
}

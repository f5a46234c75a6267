package socket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	// Events queued per subscriber before it counts as too slow and is dropped.
	sendBuffer = 32
)

// Event is the envelope pushed to feed subscribers.
type Event struct {
	Type    string `json:"type"`
	RouteID string `json:"routeId,omitempty"`
	Data    any    `json:"data"`
}

type client struct {
	id      string
	conn    *websocket.Conn
	routeID string
	send    chan []byte
}

// Hub keeps the live feed subscribers and fans events out to them. Each
// subscriber has its own writer goroutine, so Publish never blocks on a socket.
type Hub struct {
	clients    map[string]*client
	mu         sync.RWMutex
	logger     *zap.Logger
	pingPeriod time.Duration
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*client),
		logger:     logger,
		pingPeriod: pingPeriod,
	}
}

// Serve registers conn and reads from it until the peer goes away or stops
// answering pings, then unregisters and closes it.
func (h *Hub) Serve(id, routeID string, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	h.Register(id, routeID, conn)
	defer func() {
		h.Unregister(id)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("feed subscriber closed unexpectedly", zap.String("subscriber", id), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// Register adds a subscriber and starts its writer. An empty routeID
// subscribes to every route. A subscriber already registered under id is replaced.
func (h *Hub) Register(id, routeID string, conn *websocket.Conn) {
	c := &client{id: id, conn: conn, routeID: routeID, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if old, ok := h.clients[id]; ok {
		close(old.send)
	}
	h.clients[id] = c
	h.mu.Unlock()

	go h.writePump(c)
	h.logger.Debug("feed subscriber registered", zap.String("subscriber", id), zap.String("route_id", routeID))
}

// Unregister removes a subscriber. Its writer sends a close frame and exits;
// closing the connection is left to the caller.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.send)
		h.logger.Debug("feed subscriber unregistered", zap.String("subscriber", id))
	}
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues an event for every subscriber of routeID and for the
// unfiltered subscribers. Subscribers whose queue is full are dropped.
func (h *Hub) Publish(eventType, routeID string, data any) {
	payload, err := json.Marshal(Event{Type: eventType, RouteID: routeID, Data: data})
	if err != nil {
		h.logger.Error("failed to encode feed event", zap.String("type", eventType), zap.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for _, c := range h.clients {
		if c.routeID != "" && c.routeID != routeID {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("feed subscriber too slow, dropping", zap.String("subscriber", c.id))
		h.drop(c)
	}
}

// drop unregisters c unless its id has since been taken by a newer connection.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
		close(c.send)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Warn("feed write failed", zap.String("subscriber", c.id), zap.Error(err))
				h.drop(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("feed ping failed", zap.String("subscriber", c.id), zap.Error(err))
				h.drop(c)
				return
			}
		}
	}
}

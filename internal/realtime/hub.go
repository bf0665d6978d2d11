package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60

	// EventInvalidate tells dashboards to refetch the named table.
	EventInvalidate = "invalidate"
)

// Hub keeps one room of WebSocket connections per client account.
type Hub struct {
	rooms  map[uuid.UUID]map[string]*Conn
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{rooms: make(map[uuid.UUID]map[string]*Conn), logger: logger}
}

// Register adds a connection to its client's room.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	if h.rooms[c.ClientID] == nil {
		h.rooms[c.ClientID] = make(map[string]*Conn)
	}
	h.rooms[c.ClientID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("dashboard connected", zap.String("conn_id", c.ID), zap.String("client_id", c.ClientID.String()))
}

// Unregister removes a connection, drops empty rooms and closes the send channel so writePump exits.
// Unregistering twice is a no-op.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	room := h.rooms[c.ClientID]
	if _, ok := room[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(room, c.ID)
	if len(room) == 0 {
		delete(h.rooms, c.ClientID)
	}
	close(c.send)
	h.mu.Unlock()
	h.logger.Debug("dashboard disconnected", zap.String("conn_id", c.ID), zap.String("client_id", c.ClientID.String()))
}

// RoomSize returns the number of open connections for a client.
func (h *Hub) RoomSize(clientID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[clientID])
}

// Broadcast sends an event to every connection of a client. Full buffers drop the message;
// the dashboard converges on its next refetch.
func (h *Hub) Broadcast(clientID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[clientID] {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// OnChange is the feed listener forwarding changes as invalidate events.
func (h *Hub) OnChange(ch Change) {
	h.Broadcast(ch.ClientID, EventInvalidate, ch)
}

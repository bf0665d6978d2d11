package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the REST surface; the token gates the socket
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is one dashboard WebSocket connection.
type Conn struct {
	ID       string
	ClientID uuid.UUID
	UserID   uuid.UUID
	hub      *Hub
	conn     *websocket.Conn
	send     chan WSMessage
}

// SessionFunc resolves a bearer token into a session.
type SessionFunc func(token string) (*auth.Session, error)

// MemberLookup loads the roster entry behind a sub-user login.
type MemberLookup interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.SubUser, error)
}

// ServeWs upgrades GET /ws?token=...&client_id=... into a change-feed connection.
// Sub-users must still be active members of the client.
func ServeWs(hub *Hub, logger *zap.Logger, sessionFor SessionFunc, members MemberLookup) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		token := c.Query("token")
		clientID, err := uuid.Parse(c.Query("client_id"))
		if token == "" || err != nil {
			response.BadRequest(c, "token and client_id required")
			return
		}
		sess, err := sessionFor(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		if !sess.CanAccessClient(sess.TenantID, clientID) {
			response.Forbidden(c, "not authorized for this client")
			return
		}
		if sess.Role == models.RoleSubUser {
			su, err := members.GetByUserID(c.Request.Context(), sess.UserID)
			if err != nil || su.ClientID != clientID || su.Status != models.SubUserActive {
				response.Forbidden(c, "team membership is not active")
				return
			}
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		conn := &Conn{
			ID:       uuid.NewString(),
			ClientID: clientID,
			UserID:   sess.UserID,
			hub:      hub,
			conn:     ws,
			send:     make(chan WSMessage, 64),
		}
		hub.Register(conn)
		go conn.writePump()
		conn.readPump()
	}
}

// readPump only keeps the connection alive; the feed is one-way.
func (c *Conn) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		if msg.Event == "ping" {
			select {
			case c.send <- WSMessage{Event: "pong"}:
			default:
			}
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

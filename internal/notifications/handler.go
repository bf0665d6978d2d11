package notifications

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/clients"
	"github.com/aura-portal/backend/internal/middleware"
	"github.com/aura-portal/backend/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Handler serves badges, notifications and messages.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// MessageRequest is the body for POST /clients/:id/messages.
type MessageRequest struct {
	Body string `json:"body" binding:"required,max=5000"`
}

func limit(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || n < 1 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// Badges handles GET /clients/:id/badges.
func (h *Handler) Badges(c *gin.Context) {
	client := clients.FromContext(c)
	response.OK(c, h.svc.Badges(c.Request.Context(), middleware.Session(c), client.ID))
}

// List handles GET /clients/:id/notifications?unread=true&limit=.
func (h *Handler) List(c *gin.Context) {
	client := clients.FromContext(c)
	list, err := h.svc.List(c.Request.Context(), middleware.Session(c), client.ID, c.Query("unread") == "true", limit(c))
	if err != nil {
		h.logger.Error("list notifications", zap.String("client_id", client.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load notifications")
		return
	}
	response.OK(c, list)
}

// MarkRead handles POST /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), middleware.Session(c), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		h.logger.Error("mark notification read", zap.String("notification_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to update notification")
		return
	}
	response.NoContent(c)
}

// MarkAllRead handles POST /clients/:id/notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	client := clients.FromContext(c)
	n, err := h.svc.MarkAllRead(c.Request.Context(), middleware.Session(c), client.ID)
	if err != nil {
		h.logger.Error("mark notifications read", zap.String("client_id", client.ID.String()), zap.Error(err))
		response.Internal(c, "failed to update notifications")
		return
	}
	response.OK(c, gin.H{"updated": n})
}

// Messages handles GET /clients/:id/messages.
func (h *Handler) Messages(c *gin.Context) {
	client := clients.FromContext(c)
	list, err := h.svc.Messages(c.Request.Context(), client.ID, limit(c))
	if err != nil {
		h.logger.Error("list messages", zap.String("client_id", client.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load messages")
		return
	}
	response.OK(c, list)
}

// SendMessage handles POST /clients/:id/messages.
func (h *Handler) SendMessage(c *gin.Context) {
	client := clients.FromContext(c)
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.SendMessage(c.Request.Context(), middleware.Session(c), client.ID, req.Body)
	if errors.Is(err, ErrEmptyMessage) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("send message", zap.String("client_id", client.ID.String()), zap.Error(err))
		response.Internal(c, "failed to send message")
		return
	}
	response.Created(c, m)
}

// MarkMessagesRead handles POST /clients/:id/messages/read.
func (h *Handler) MarkMessagesRead(c *gin.Context) {
	client := clients.FromContext(c)
	n, err := h.svc.MarkMessagesRead(c.Request.Context(), middleware.Session(c), client.ID)
	if err != nil {
		h.logger.Error("mark messages read", zap.String("client_id", client.ID.String()), zap.Error(err))
		response.Internal(c, "failed to update messages")
		return
	}
	response.OK(c, gin.H{"updated": n})
}

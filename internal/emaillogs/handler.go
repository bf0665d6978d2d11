package emaillogs

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/clients"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListByClient handles GET /clients/:id/email-logs?status=&limit=. Agency only (enforced by route middleware).
func (h *Handler) ListByClient(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", models.EmailLogStatusPending, models.EmailLogStatusSent, models.EmailLogStatusFailed:
	default:
		response.BadRequest(c, "invalid status")
		return
	}
	limit := defaultLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = min(n, maxLimit)
	}
	client := clients.FromContext(c)
	logs, err := h.repo.ListByClient(c.Request.Context(), client.ID, status, limit)
	if err != nil {
		h.logger.Error("list email logs", zap.String("client_id", client.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}

package packages

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/clients"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/realtime"
	"github.com/aura-portal/backend/pkg/response"
)

// ChangePublisher announces row changes on the realtime feed.
type ChangePublisher interface {
	Publish(ctx context.Context, table string, clientID, rowID uuid.UUID)
}

// Handler serves package usage endpoints.
type Handler struct {
	repo   *Repository
	feed   ChangePublisher
	logger *zap.Logger
}

// NewHandler creates a packages handler.
func NewHandler(repo *Repository, feed ChangePublisher, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, feed: feed, logger: logger}
}

// ItemRequest is one deliverable type allocation.
type ItemRequest struct {
	DeliverableType string `json:"deliverable_type" binding:"required,max=64"`
	Allocated       int    `json:"allocated" binding:"gte=0"`
}

// UpsertRequest is the body for PUT /clients/:id/package.
type UpsertRequest struct {
	Name         string        `json:"name" binding:"required,max=255"`
	MaxRevisions int           `json:"max_revisions" binding:"gte=0"`
	Items        []ItemRequest `json:"items" binding:"dive"`
}

// Get handles GET /clients/:id/package.
func (h *Handler) Get(c *gin.Context) {
	client := clients.FromContext(c)
	pkg, err := h.repo.GetUsage(c.Request.Context(), client.ID)
	if errors.Is(err, ErrNoPackage) {
		response.NotFound(c, "no package configured")
		return
	}
	if err != nil {
		h.logger.Error("get package usage", zap.String("client_id", client.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load package")
		return
	}
	response.OK(c, pkg)
}

// Upsert handles PUT /clients/:id/package (agency only).
func (h *Handler) Upsert(c *gin.Context) {
	client := clients.FromContext(c)
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	items := make([]models.PackageItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, models.PackageItem{DeliverableType: it.DeliverableType, Allocated: it.Allocated})
	}
	pkg, err := h.repo.Upsert(c.Request.Context(), UpsertParams{
		ClientID: client.ID, Name: req.Name, MaxRevisions: req.MaxRevisions, Items: items,
	})
	if err != nil {
		h.logger.Error("upsert package", zap.String("client_id", client.ID.String()), zap.Error(err))
		response.Internal(c, "failed to save package")
		return
	}
	h.feed.Publish(c.Request.Context(), realtime.TablePackageItems, client.ID, pkg.ID)
	response.OK(c, pkg)
}

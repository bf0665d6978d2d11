package clients

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/response"
	"github.com/aura-portal/backend/pkg/utils"
)

// Handler handles client HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a clients handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreateRequest is the body for POST /clients.
type CreateRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Company  string `json:"company" binding:"max=255"`
	Email    string `json:"email" binding:"omitempty,email"`
	Currency string `json:"currency" binding:"omitempty,len=3"`
}

// UpdateStatusRequest is the body for PATCH /clients/:id.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active paused archived"`
}

// Create handles POST /clients (agency only).
func (h *Handler) Create(c *gin.Context) {
	sess := c.MustGet(auth.ContextSession).(*auth.Session)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "USD"
	}
	client := &models.Client{
		TenantID: sess.TenantID,
		Name:     strings.TrimSpace(req.Name),
		Company:  strings.TrimSpace(req.Company),
		Email:    utils.NormalizeEmail(req.Email),
		Status:   models.ClientStatusActive,
	}
	if err := h.repo.Create(c.Request.Context(), client, currency); err != nil {
		h.logger.Error("create client", zap.Error(err))
		response.Internal(c, "failed to create client")
		return
	}
	response.Created(c, client)
}

// List handles GET /clients. Agency staff see the tenant; client logins see their own account.
func (h *Handler) List(c *gin.Context) {
	sess := c.MustGet(auth.ContextSession).(*auth.Session)
	if !sess.IsAgency() {
		if sess.ClientID == nil {
			response.OK(c, []models.Client{})
			return
		}
		client, err := h.repo.GetByID(c.Request.Context(), sess.TenantID, *sess.ClientID)
		if err != nil {
			response.OK(c, []models.Client{})
			return
		}
		response.OK(c, []models.Client{*client})
		return
	}
	list, err := h.repo.List(c.Request.Context(), sess.TenantID)
	if err != nil {
		h.logger.Error("list clients", zap.Error(err))
		response.Internal(c, "failed to load clients")
		return
	}
	response.OK(c, list)
}

// Get handles GET /clients/:id. Access is enforced by RequireClientAccess.
func (h *Handler) Get(c *gin.Context) {
	response.OK(c, FromContext(c))
}

// UpdateStatus handles PATCH /clients/:id (agency only).
func (h *Handler) UpdateStatus(c *gin.Context) {
	sess := c.MustGet(auth.ContextSession).(*auth.Session)
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	client, err := h.repo.UpdateStatus(c.Request.Context(), sess.TenantID, FromContext(c).ID, req.Status)
	if err != nil {
		h.logger.Error("update client status", zap.Error(err))
		response.Internal(c, "failed to update client")
		return
	}
	response.OK(c, client)
}

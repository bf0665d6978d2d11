package subusers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/clients"
	"github.com/aura-portal/backend/internal/middleware"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/permissions"
	"github.com/aura-portal/backend/internal/validation"
	"github.com/aura-portal/backend/pkg/response"
)

// Handler serves team management endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a sub-users handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateRequest is the body for POST /clients/:id/sub-users.
type CreateRequest struct {
	Name        string          `json:"name" binding:"required,max=255"`
	Email       string          `json:"email" binding:"required,email"`
	Phone       string          `json:"phone" binding:"max=64"`
	Role        string          `json:"role" binding:"required,subuser_role"`
	Permissions map[string]bool `json:"permissions" binding:"omitempty,permission_keys"`
}

// UpdateRequest is the body for PATCH /clients/:id/sub-users/:subUserId.
type UpdateRequest struct {
	Role        *string         `json:"role" binding:"omitempty,subuser_role"`
	Status      *string         `json:"status" binding:"omitempty,subuser_status"`
	Permissions map[string]bool `json:"permissions" binding:"omitempty,permission_keys"`
}

// AcceptRequest is the body for POST /invites/:token/accept.
type AcceptRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

// PermissionsResponse is returned by GET /me/permissions.
type PermissionsResponse struct {
	Role        models.Role              `json:"role"`
	SubUserRole models.SubUserRole       `json:"sub_user_role,omitempty"`
	Status      models.SubUserStatus     `json:"status,omitempty"`
	Permissions map[permissions.Key]bool `json:"permissions"`
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrNotInvited):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInviteExpired), errors.Is(err, ErrInviteInvalid):
		response.Unprocessable(c, err.Error())
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidPermission),
		errors.Is(err, ErrNameRequired), errors.Is(err, ErrWeakPassword):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(op, zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func subUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("subUserId"))
	if err != nil {
		response.BadRequest(c, "invalid sub-user id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /clients/:id/sub-users.
func (h *Handler) List(c *gin.Context) {
	client := clients.FromContext(c)
	list, err := h.svc.List(c.Request.Context(), client.ID)
	if err != nil {
		h.fail(c, err, "list team")
		return
	}
	response.OK(c, list)
}

// Create handles POST /clients/:id/sub-users.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	su, err := h.svc.Create(c.Request.Context(), middleware.Session(c), clients.FromContext(c), CreateParams{
		Name: req.Name, Email: req.Email, Phone: req.Phone, Role: req.Role, Permissions: req.Permissions,
	})
	if err != nil {
		h.fail(c, err, "invite team member")
		return
	}
	response.Created(c, su)
}

// Update handles PATCH /clients/:id/sub-users/:subUserId.
func (h *Handler) Update(c *gin.Context) {
	id, ok := subUserID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	su, err := h.svc.Update(c.Request.Context(), clients.FromContext(c).ID, id, Patch{
		Role: req.Role, Status: req.Status, Permissions: req.Permissions,
	})
	if err != nil {
		h.fail(c, err, "update team member")
		return
	}
	response.OK(c, su)
}

// Remove handles DELETE /clients/:id/sub-users/:subUserId.
func (h *Handler) Remove(c *gin.Context) {
	id, ok := subUserID(c)
	if !ok {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), clients.FromContext(c).ID, id); err != nil {
		h.fail(c, err, "remove team member")
		return
	}
	response.NoContent(c)
}

// ResendInvite handles POST /clients/:id/sub-users/:subUserId/resend-invite.
func (h *Handler) ResendInvite(c *gin.Context) {
	id, ok := subUserID(c)
	if !ok {
		return
	}
	su, err := h.svc.ResendInvite(c.Request.Context(), clients.FromContext(c), id)
	if err != nil {
		h.fail(c, err, "resend invite")
		return
	}
	response.OK(c, su)
}

// AcceptInvite handles POST /invites/:token/accept (public).
func (h *Handler) AcceptInvite(c *gin.Context) {
	var req AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	su, err := h.svc.AcceptInvite(c.Request.Context(), c.Param("token"), req.Password)
	if err != nil {
		h.fail(c, err, "accept invite")
		return
	}
	response.OK(c, su)
}

// MyPermissions handles GET /me/permissions. Runs after middleware.Permissions.
func (h *Handler) MyPermissions(c *gin.Context) {
	sess := middleware.Session(c)
	out := PermissionsResponse{Role: sess.Role, Permissions: map[permissions.Key]bool{}}
	if v, ok := c.Get(middleware.ContextPermissions); ok {
		out.Permissions = v.(map[permissions.Key]bool)
	}
	if v, ok := c.Get(middleware.ContextSubUser); ok {
		su := v.(*models.SubUser)
		out.SubUserRole = su.Role
		out.Status = su.Status
	}
	response.OK(c, out)
}

package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/response"
	"github.com/aura-portal/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register (agency admin creates a login).
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=admin staff client"`
	ClientID string `json:"client_id"` // required for role client
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	ClientID string `json:"client_id"` // picks the client when one email has several sub-user logins
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// ClientLookup resolves a client inside a tenant.
type ClientLookup interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Client, error)
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo    *Repository
	jwt     *JWTService
	clients ClientLookup
	logger  *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, clients ClientLookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, clients: clients, logger: logger}
}

// Register handles POST /auth/register. Admin only; the new login joins the admin's tenant.
func (h *Handler) Register(c *gin.Context) {
	sess := c.MustGet(ContextSession).(*Session)
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	role, _ := models.ParseRole(req.Role)

	var clientID *uuid.UUID
	if role == models.RoleClient {
		id, err := uuid.Parse(req.ClientID)
		if err != nil {
			response.BadRequest(c, "invalid client_id")
			return
		}
		if _, err := h.clients.GetByID(c.Request.Context(), sess.TenantID, id); err != nil {
			response.NotFound(c, "client not found")
			return
		}
		clientID = &id
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), CreateUserParams{
		TenantID:     sess.TenantID,
		Email:        utils.NormalizeEmail(req.Email),
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         role,
		ClientID:     clientID,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			response.Conflict(c, "email already registered")
			return
		}
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}
	response.Created(c, user.ToPublic())
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	var clientID *uuid.UUID
	if req.ClientID != "" {
		id, err := uuid.Parse(req.ClientID)
		if err != nil {
			response.BadRequest(c, "invalid client_id")
			return
		}
		clientID = &id
	}

	candidates, err := h.repo.ListByEmail(c.Request.Context(), utils.NormalizeEmail(req.Email), clientID)
	if err != nil {
		h.logger.Error("login lookup", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	user, err := MatchLogin(candidates, req.Password)
	if errors.Is(err, ErrAmbiguousLogin) {
		response.Conflict(c, "email belongs to several client accounts; pass client_id")
		return
	}
	if err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	sess := c.MustGet(ContextSession).(*Session)
	user, err := h.repo.GetByID(c.Request.Context(), sess.UserID)
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, user.ToPublic())
}

// List handles GET /users (agency admin). Returns the tenant's logins.
func (h *Handler) List(c *gin.Context) {
	sess := c.MustGet(ContextSession).(*Session)
	list, err := h.repo.ListByTenant(c.Request.Context(), sess.TenantID)
	if err != nil {
		h.logger.Error("list users", zap.Error(err))
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}

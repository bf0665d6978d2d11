package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/permissions"
	"github.com/aura-portal/backend/pkg/response"
)

const (
	// ContextPermissions holds the caller's effective map[permissions.Key]bool.
	ContextPermissions = "permissions"
	// ContextSubUser holds the *models.SubUser for sub-user sessions.
	ContextSubUser = "sub_user"
)

// SubUserLookup loads the roster entry behind a sub-user login and records activity.
type SubUserLookup interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.SubUser, error)
	Touch(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// Permissions resolves the caller's capabilities once per request.
// Agency staff and client owners hold every capability; sub-users get their
// role preset merged with overrides and must be active.
func Permissions(lookup SubUserLookup, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		sess := c.MustGet(auth.ContextSession).(*auth.Session)
		if sess.Role != models.RoleSubUser {
			c.Set(ContextPermissions, permissions.All())
			c.Next()
			return
		}
		su, err := lookup.GetByUserID(c.Request.Context(), sess.UserID)
		if err != nil || su == nil {
			response.Forbidden(c, "team membership not found")
			c.Abort()
			return
		}
		if su.Status != models.SubUserActive {
			response.Forbidden(c, "team membership is "+string(su.Status))
			c.Abort()
			return
		}
		if err := lookup.Touch(c.Request.Context(), sess.UserID, time.Now().UTC()); err != nil {
			logger.Warn("touch sub-user", zap.String("user_id", sess.UserID.String()), zap.Error(err))
		}
		c.Set(ContextSubUser, su)
		c.Set(ContextPermissions, permissions.Effective(su))
		c.Next()
	}
}

// HasPermission reports whether the resolved capabilities include key.
func HasPermission(c *gin.Context, key permissions.Key) bool {
	v, ok := c.Get(ContextPermissions)
	if !ok {
		return false
	}
	return v.(map[permissions.Key]bool)[key]
}

// RequirePermission rejects callers lacking key. Must run after Permissions.
func RequirePermission(key permissions.Key) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasPermission(c, key) {
			response.Forbidden(c, "missing permission "+string(key))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireTeamAdmin allows agency staff, client owners and sub-users with the admin role.
func RequireTeamAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := c.MustGet(auth.ContextSession).(*auth.Session)
		if sess.Role != models.RoleSubUser {
			c.Next()
			return
		}
		if v, ok := c.Get(ContextSubUser); ok && v.(*models.SubUser).Role == models.SubUserAdmin {
			c.Next()
			return
		}
		response.Forbidden(c, "team administration requires the admin role")
		c.Abort()
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		v, ok := c.Get(auth.ContextSession)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		sess := v.(*auth.Session)
		if _, ok := allowed[sess.Role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAgency allows agency admins and staff.
func RequireAgency() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin, models.RoleStaff)
}

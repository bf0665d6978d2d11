package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/pkg/response"
)

// JWT returns a middleware that validates the bearer token and stores the *auth.Session in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		sess, err := jwtService.Session(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(auth.ContextSession, sess)
		c.Next()
	}
}

// Session returns the caller's session. Only valid behind JWT.
func Session(c *gin.Context) *auth.Session {
	return c.MustGet(auth.ContextSession).(*auth.Session)
}

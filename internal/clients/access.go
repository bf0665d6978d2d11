package clients

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/response"
)

// ContextClient is the context key for the *models.Client resolved from :id.
const ContextClient = "client"

// Getter loads a client inside a tenant.
type Getter interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Client, error)
}

// RequireClientAccess resolves :id to a client of the caller's tenant and rejects
// callers who may not see it. Call after JWT.
func RequireClientAccess(repo Getter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid client id")
			c.Abort()
			return
		}
		sess := c.MustGet(auth.ContextSession).(*auth.Session)
		if !sess.CanAccessClient(sess.TenantID, clientID) {
			response.Forbidden(c, "not authorized for this client")
			c.Abort()
			return
		}
		client, err := repo.GetByID(c.Request.Context(), sess.TenantID, clientID)
		if err != nil || client == nil {
			response.NotFound(c, "client not found")
			c.Abort()
			return
		}
		c.Set(ContextClient, client)
		c.Next()
	}
}

// FromContext returns the client resolved by RequireClientAccess.
func FromContext(c *gin.Context) *models.Client {
	return c.MustGet(ContextClient).(*models.Client)
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/permissions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLookup struct {
	subUser *models.SubUser
	touched int
}

func (f *fakeLookup) GetByUserID(_ context.Context, _ uuid.UUID) (*models.SubUser, error) {
	if f.subUser == nil {
		return nil, errors.New("not found")
	}
	return f.subUser, nil
}

func (f *fakeLookup) Touch(_ context.Context, _ uuid.UUID, _ time.Time) error {
	f.touched++
	return nil
}

func withSession(sess *auth.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auth.ContextSession, sess)
		c.Next()
	}
}

func ok(c *gin.Context) { c.Status(http.StatusOK) }

func serve(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	token, err := svc.Generate(&models.User{ID: uuid.New(), TenantID: uuid.New(), Role: models.RoleStaff})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/x", JWT(svc), func(c *gin.Context) {
		assert.Equal(t, models.RoleStaff, Session(c).Role)
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/x", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/x", map[string]string{"Authorization": "Token abc"}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/x", map[string]string{"Authorization": "Bearer junk"}).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", map[string]string{"Authorization": "Bearer " + token}).Code)
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.GET("/staff", withSession(&auth.Session{Role: models.RoleStaff}), RequireAgency(), ok)
	r.GET("/client", withSession(&auth.Session{Role: models.RoleClient}), RequireAgency(), ok)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/staff", nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/client", nil).Code)
}

func TestPermissionsForSubUsers(t *testing.T) {
	viewer := &fakeLookup{subUser: &models.SubUser{Role: models.SubUserViewer, Status: models.SubUserActive}}
	invited := &fakeLookup{subUser: &models.SubUser{Role: models.SubUserAdmin, Status: models.SubUserInvited}}
	sub := &auth.Session{UserID: uuid.New(), Role: models.RoleSubUser}

	r := gin.New()
	r.GET("/view", withSession(sub), Permissions(viewer, nil), RequirePermission(permissions.ViewTasks), ok)
	r.GET("/approve", withSession(sub), Permissions(viewer, nil), RequirePermission(permissions.ApproveDeliverables), ok)
	r.GET("/team", withSession(sub), Permissions(viewer, nil), RequireTeamAdmin(), ok)
	r.GET("/invited", withSession(sub), Permissions(invited, nil), RequirePermission(permissions.ViewTasks), ok)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/view", nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/approve", nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/team", nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/invited", nil).Code)
	assert.Equal(t, 3, viewer.touched)
}

func TestPermissionsOverrideGrantsAccess(t *testing.T) {
	lookup := &fakeLookup{subUser: &models.SubUser{
		Role:        models.SubUserViewer,
		Status:      models.SubUserActive,
		Permissions: map[string]bool{"can_approve_deliverables": true},
	}}
	r := gin.New()
	r.GET("/approve", withSession(&auth.Session{Role: models.RoleSubUser}), Permissions(lookup, nil), RequirePermission(permissions.ApproveDeliverables), ok)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/approve", nil).Code)
}

func TestPermissionsForOwners(t *testing.T) {
	r := gin.New()
	r.GET("/billing", withSession(&auth.Session{Role: models.RoleClient}), Permissions(&fakeLookup{}, nil), RequirePermission(permissions.ManageBilling), RequireTeamAdmin(), ok)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/billing", nil).Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))

	now = now.Add(time.Hour)
	rl.Allow("10.0.0.3")
	assert.Len(t, rl.visitors, 1)
}

func TestRateLimiterMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/x", NewRateLimiter(0.001, 1).Middleware(), ok)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/x", nil).Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://localhost:3000"))
	r.GET("/x", ok)

	w := serve(r, http.MethodOptions, "/x", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/x", map[string]string{"Origin": "http://evil.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

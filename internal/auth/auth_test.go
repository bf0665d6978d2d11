package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/utils"
)

func TestGenerateAndSession(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	clientID := uuid.New()
	user := &models.User{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Email:    "owner@acme.io",
		FullName: "Acme Owner",
		Role:     models.RoleClient,
		ClientID: &clientID,
	}

	token, err := svc.Generate(user)
	require.NoError(t, err)

	sess, err := svc.Session(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.UserID)
	assert.Equal(t, user.TenantID, sess.TenantID)
	assert.Equal(t, models.RoleClient, sess.Role)
	require.NotNil(t, sess.ClientID)
	assert.Equal(t, clientID, *sess.ClientID)
}

func TestValidateRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	other := NewJWTService("other-secret", 1)

	token, err := other.Generate(&models.User{ID: uuid.New(), Role: models.RoleStaff})
	require.NoError(t, err)
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: uuid.New(),
		Role:   string(models.RoleStaff),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	raw, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionRejectsUnknownRole(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	token, err := svc.Generate(&models.User{ID: uuid.New(), Role: "audience"})
	require.NoError(t, err)
	_, err = svc.Session(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCanAccessClient(t *testing.T) {
	tenant, clientA, clientB := uuid.New(), uuid.New(), uuid.New()

	staff := &Session{TenantID: tenant, Role: models.RoleStaff}
	assert.True(t, staff.CanAccessClient(tenant, clientA))
	assert.False(t, staff.CanAccessClient(uuid.New(), clientA))

	owner := &Session{TenantID: tenant, Role: models.RoleClient, ClientID: &clientA}
	assert.True(t, owner.CanAccessClient(tenant, clientA))
	assert.False(t, owner.CanAccessClient(tenant, clientB))

	orphan := &Session{TenantID: tenant, Role: models.RoleSubUser}
	assert.False(t, orphan.CanAccessClient(tenant, clientA))
}

func TestActorFallsBackToEmail(t *testing.T) {
	s := &Session{UserID: uuid.New(), Email: "sam@acme.io", Role: models.RoleSubUser}
	a := s.Actor()
	assert.Equal(t, "sam@acme.io", a.Name)
	assert.Equal(t, models.ActorSubUser, a.Type)
}

func TestMatchLogin(t *testing.T) {
	hash := func(pw string) string {
		h, err := utils.HashPassword(pw)
		require.NoError(t, err)
		return h
	}
	acme, globex := uuid.New(), uuid.New()
	logins := []models.User{
		{ID: uuid.New(), Email: "kim@example.com", Password: hash("acme-pass"), Role: models.RoleSubUser, ClientID: &acme},
		{ID: uuid.New(), Email: "kim@example.com", Password: hash("globex-pass"), Role: models.RoleSubUser, ClientID: &globex},
	}

	u, err := MatchLogin(logins, "globex-pass")
	require.NoError(t, err)
	assert.Equal(t, logins[1].ID, u.ID)

	_, err = MatchLogin(logins, "wrong")
	assert.ErrorIs(t, err, ErrUserNotFound)

	logins[1].Password = logins[0].Password
	_, err = MatchLogin(logins, "acme-pass")
	assert.ErrorIs(t, err, ErrAmbiguousLogin)

	u, err = MatchLogin(logins[1:], "acme-pass")
	require.NoError(t, err)
	assert.Equal(t, globex, *u.ClientID)
}

package auth

import (
	"github.com/google/uuid"

	"github.com/aura-portal/backend/internal/models"
)

// ContextSession is the gin context key holding the *Session set by the JWT middleware.
const ContextSession = "session"

// Session is the authenticated caller, passed explicitly to services.
type Session struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Email    string
	Name     string
	Role     models.Role
	ClientID *uuid.UUID // set for client owners and sub-users
}

// IsAgency reports whether the caller is agency staff.
func (s *Session) IsAgency() bool {
	return s.Role.IsAgency()
}

// CanAccessClient reports whether the caller may see the client's portal.
// Agency staff see every client in their tenant; client logins see only their own.
func (s *Session) CanAccessClient(tenantID, clientID uuid.UUID) bool {
	if s.TenantID != tenantID {
		return false
	}
	if s.IsAgency() {
		return true
	}
	return s.ClientID != nil && *s.ClientID == clientID
}

// Actor returns the identity recorded on comments, reactions and approvals.
func (s *Session) Actor() models.Actor {
	name := s.Name
	if name == "" {
		name = s.Email
	}
	return models.Actor{ID: s.UserID, Type: models.ActorTypeFor(s.Role), Name: name}
}

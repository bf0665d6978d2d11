package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a login's role in the portal.
type Role string

const (
	RoleAdmin   Role = "admin"    // agency administrator
	RoleStaff   Role = "staff"    // agency team member
	RoleClient  Role = "client"   // client account owner
	RoleSubUser Role = "sub_user" // secondary login under a client
)

// IsAgency reports whether the role belongs to agency staff.
func (r Role) IsAgency() bool {
	return r == RoleAdmin || r == RoleStaff
}

// ParseRole validates a role string.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleAdmin, RoleStaff, RoleClient, RoleSubUser:
		return r, true
	}
	return "", false
}

// User represents a portal login.
type User struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	Email     string     `json:"email"`
	Password  string     `json:"-"`
	FullName  string     `json:"full_name"`
	Role      Role       `json:"role"`
	ClientID  *uuid.UUID `json:"client_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      Role       `json:"role"`
	ClientID  *uuid.UUID `json:"client_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		ClientID:  u.ClientID,
		CreatedAt: u.CreatedAt,
	}
}

// ActorType tags who performed a workflow action.
type ActorType string

const (
	ActorAgency  ActorType = "agency"
	ActorClient  ActorType = "client"
	ActorSubUser ActorType = "sub_user"
)

// Actor identifies the person behind a comment, reaction or review decision.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Type ActorType `json:"type"`
	Name string    `json:"name"`
}

// ActorTypeFor maps a login role to the actor type recorded on posts.
func ActorTypeFor(r Role) ActorType {
	switch r {
	case RoleClient:
		return ActorClient
	case RoleSubUser:
		return ActorSubUser
	default:
		return ActorAgency
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// SubUserRole is the preset a sub-user's default permissions come from.
type SubUserRole string

const (
	SubUserViewer         SubUserRole = "viewer"
	SubUserApprover       SubUserRole = "approver"
	SubUserBillingManager SubUserRole = "billing_manager"
	SubUserAdmin          SubUserRole = "admin"
)

// SubUserRoles lists the fixed roles.
var SubUserRoles = []SubUserRole{SubUserViewer, SubUserApprover, SubUserBillingManager, SubUserAdmin}

// ParseSubUserRole validates a role string.
func ParseSubUserRole(s string) (SubUserRole, bool) {
	for _, r := range SubUserRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// SubUserStatus is a sub-user's roster state.
type SubUserStatus string

const (
	SubUserActive   SubUserStatus = "active"
	SubUserInactive SubUserStatus = "inactive"
	SubUserInvited  SubUserStatus = "invited"
)

// ParseSubUserStatus validates a status string.
func ParseSubUserStatus(s string) (SubUserStatus, bool) {
	switch st := SubUserStatus(s); st {
	case SubUserActive, SubUserInactive, SubUserInvited:
		return st, true
	}
	return "", false
}

// SubUser is a secondary login under a client account.
type SubUser struct {
	ID                uuid.UUID       `json:"id"`
	ClientID          uuid.UUID       `json:"client_id"`
	UserID            *uuid.UUID      `json:"user_id,omitempty"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone,omitempty"`
	Role              SubUserRole     `json:"role"`
	Status            SubUserStatus   `json:"status"`
	Permissions       map[string]bool `json:"permissions"` // per-user overrides only
	InvitedBy         *uuid.UUID      `json:"invited_by,omitempty"`
	InviteToken       string          `json:"-"`
	InviteExpiresAt   *time.Time      `json:"-"`
	InviteResendCount int             `json:"invite_resend_count"`
	InvitedAt         time.Time       `json:"invited_at"`
	LastInvitedAt     *time.Time      `json:"last_invited_at,omitempty"`
	LastActiveAt      *time.Time      `json:"last_active_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

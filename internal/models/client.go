package models

import (
	"time"

	"github.com/google/uuid"
)

// Client statuses.
const (
	ClientStatusActive   = "active"
	ClientStatusPaused   = "paused"
	ClientStatusArchived = "archived"
)

// Client is an agency customer; every portal record hangs off one.
type Client struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Company   string    `json:"company,omitempty"`
	Email     string    `json:"email,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Email types sent by the worker.
const (
	EmailTypeInvite       = "sub_user_invite"
	EmailTypeInviteResend = "sub_user_invite_resend"
	EmailTypeNotification = "notification"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records outgoing emails.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	ClientID       *uuid.UUID `json:"client_id,omitempty"`
	SubUserID      *uuid.UUID `json:"sub_user_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

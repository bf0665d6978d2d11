package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification kinds.
const (
	NotifyReviewRequested   = "review_requested"
	NotifyPostApproved      = "post_approved"
	NotifyRevisionRequested = "revision_requested"
	NotifyPostDelivered     = "post_delivered"
	NotifyNewComment        = "new_comment"
	NotifyInvoiceIssued     = "invoice_issued"
)

// Notification is an in-portal alert for a client (optionally one recipient).
type Notification struct {
	ID          uuid.UUID  `json:"id"`
	ClientID    uuid.UUID  `json:"client_id"`
	RecipientID *uuid.UUID `json:"recipient_id,omitempty"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Body        string     `json:"body,omitempty"`
	PostID      *uuid.UUID `json:"post_id,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Message is a chat line between the agency and a client.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	ClientID   uuid.UUID  `json:"client_id"`
	SenderID   uuid.UUID  `json:"sender_id"`
	SenderType ActorType  `json:"sender_type"`
	SenderName string     `json:"sender_name"`
	Body       string     `json:"body"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// BadgeCounts are three independent counters fetched side by side.
type BadgeCounts struct {
	UnreadMessages      int `json:"unread_messages"`
	PendingTasks        int `json:"pending_tasks"`
	UnreadNotifications int `json:"unread_notifications"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// PostStatus is the review state of a deliverable post.
type PostStatus string

const (
	PostDraft          PostStatus = "draft"
	PostInProgress     PostStatus = "in_progress"
	PostInternalReview PostStatus = "internal_review"
	PostClientReview   PostStatus = "client_review"
	PostRevision       PostStatus = "revision"
	PostApproved       PostStatus = "approved"
	PostDelivered      PostStatus = "delivered"
	PostCancelled      PostStatus = "cancelled"
)

// PostStatuses lists every status in lifecycle order.
var PostStatuses = []PostStatus{
	PostDraft, PostInProgress, PostInternalReview, PostClientReview,
	PostRevision, PostApproved, PostDelivered, PostCancelled,
}

// ParsePostStatus validates a status string.
func ParsePostStatus(s string) (PostStatus, bool) {
	for _, st := range PostStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no further transitions are possible.
func (s PostStatus) Terminal() bool {
	return s == PostDelivered || s == PostCancelled
}

// Priority of a deliverable post.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority validates a priority string.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityUrgent:
		return p, true
	}
	return "", false
}

// Post is a deliverable tracked through the review lifecycle.
type Post struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	ClientID        uuid.UUID  `json:"client_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DeliverableType string     `json:"deliverable_type,omitempty"`
	Status          PostStatus `json:"status"`
	Priority        Priority   `json:"priority"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	CreatedByType   ActorType  `json:"created_by_type"`
	RevisionCount   int        `json:"revision_count"`
	VersionCount    int        `json:"version_count"`
	LockVersion     int        `json:"lock_version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PostVersion is one uploaded file revision of a post.
type PostVersion struct {
	ID            uuid.UUID `json:"id"`
	PostID        uuid.UUID `json:"post_id"`
	VersionNumber int       `json:"version_number"`
	FileKey       string    `json:"-"`
	FileURL       string    `json:"file_url"`
	FileName      string    `json:"file_name"`
	ContentType   string    `json:"content_type"`
	FileSize      int64     `json:"file_size"`
	UploadedBy    uuid.UUID `json:"uploaded_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// Comment on a post. IsRevisionRequest marks formal revision feedback.
type Comment struct {
	ID                uuid.UUID `json:"id"`
	PostID            uuid.UUID `json:"post_id"`
	AuthorID          uuid.UUID `json:"author_id"`
	AuthorType        ActorType `json:"author_type"`
	AuthorName        string    `json:"author_name"`
	Content           string    `json:"content"`
	IsRevisionRequest bool      `json:"is_revision_request"`
	CreatedAt         time.Time `json:"created_at"`
}

// ReactionType is one of the fixed emoji reactions.
type ReactionType string

const (
	ReactionThumbsUp  ReactionType = "thumbsup"
	ReactionHeart     ReactionType = "heart"
	ReactionCelebrate ReactionType = "celebrate"
	ReactionFire      ReactionType = "fire"
	ReactionEyes      ReactionType = "eyes"
)

// ReactionTypes lists the accepted reactions.
var ReactionTypes = []ReactionType{ReactionThumbsUp, ReactionHeart, ReactionCelebrate, ReactionFire, ReactionEyes}

// ParseReactionType validates a reaction string.
func ParseReactionType(s string) (ReactionType, bool) {
	for _, r := range ReactionTypes {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Reaction is an actor's emoji on a post.
type Reaction struct {
	PostID       uuid.UUID    `json:"post_id"`
	ActorID      uuid.UUID    `json:"actor_id"`
	ActorType    ActorType    `json:"actor_type"`
	ActorName    string       `json:"actor_name"`
	ReactionType ReactionType `json:"reaction_type"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Review decisions recorded in the approval history.
const (
	ApprovalActionApproved          = "approved"
	ApprovalActionRevisionRequested = "revision_requested"
)

// Approval is one entry in a post's review history.
type Approval struct {
	ID             uuid.UUID `json:"id"`
	PostID         uuid.UUID `json:"post_id"`
	ActorID        uuid.UUID `json:"actor_id"`
	ActorType      ActorType `json:"actor_type"`
	ActorName      string    `json:"actor_name"`
	Action         string    `json:"action"`
	Note           string    `json:"note,omitempty"`
	RevisionNumber int       `json:"revision_number,omitempty"`
	IsBillable     bool      `json:"is_billable"`
	CreatedAt      time.Time `json:"created_at"`
}

// PostDetail bundles a post with everything shown on its detail card.
type PostDetail struct {
	Post      *Post         `json:"post"`
	Versions  []PostVersion `json:"versions"`
	Comments  []Comment     `json:"comments"`
	Reactions []Reaction    `json:"reactions"`
	History   []Approval    `json:"history"`
}

// Package deliverables runs the review lifecycle of deliverable posts: status moves,
// client approval and revision rounds, comments, reactions and file versions.
package deliverables

import (
	"errors"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/packages"
)

var (
	ErrNotFound          = errors.New("post not found")
	ErrTerminalState     = errors.New("post is delivered or cancelled")
	ErrInvalidTransition = errors.New("status change not allowed from the current status")
	ErrConflict          = errors.New("post was changed by someone else, reload and retry")
	ErrFeedbackRequired  = errors.New("revision feedback is required")
	ErrInvalidReaction   = errors.New("unknown reaction type")
	ErrVersionMismatch   = errors.New("version number does not match the next version")
	ErrEmptyComment      = errors.New("comment content is required")
	ErrInvalidStatus     = errors.New("unknown status")

	// ErrPackageExhausted is re-exported so handlers can map it without importing packages.
	ErrPackageExhausted = packages.ErrPackageExhausted
)

var transitions = map[models.PostStatus][]models.PostStatus{
	models.PostDraft:          {models.PostInProgress, models.PostCancelled},
	models.PostInProgress:     {models.PostInternalReview, models.PostClientReview, models.PostCancelled},
	models.PostInternalReview: {models.PostClientReview, models.PostInProgress, models.PostCancelled},
	models.PostClientReview:   {models.PostApproved, models.PostRevision, models.PostCancelled},
	models.PostRevision:       {models.PostInProgress, models.PostClientReview, models.PostDelivered, models.PostCancelled},
	models.PostApproved:       {models.PostDelivered, models.PostCancelled},
}

// CanTransition reports whether a post may move from one status to another.
func CanTransition(from, to models.PostStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from s.
func AllowedTransitions(s models.PostStatus) []models.PostStatus {
	return append([]models.PostStatus(nil), transitions[s]...)
}

// IsBillable reports whether revision round count exceeds the included rounds.
// With two included rounds the third request is the first billable one.
func IsBillable(count, maxRevisions int) bool {
	return count > maxRevisions
}

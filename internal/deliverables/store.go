package deliverables

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-portal/backend/internal/models"
)

// ListFilter narrows a client's post list. Zero values match everything.
type ListFilter struct {
	Status   models.PostStatus
	Priority models.Priority
}

// Store persists posts and their children. Status writes are compare-and-swap on
// (status, lock_version) and return ErrConflict when the row moved underneath.
type Store interface {
	Create(ctx context.Context, p *models.Post) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Post, error)
	List(ctx context.Context, tenantID, clientID uuid.UUID, f ListFilter) ([]models.Post, error)

	Versions(ctx context.Context, postID uuid.UUID) ([]models.PostVersion, error)
	Version(ctx context.Context, postID uuid.UUID, number int) (*models.PostVersion, error)
	Comments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
	Reactions(ctx context.Context, postID uuid.UUID) ([]models.Reaction, error)
	History(ctx context.Context, postID uuid.UUID) ([]models.Approval, error)

	SetStatus(ctx context.Context, id uuid.UUID, from models.PostStatus, lockVersion int, to models.PostStatus) (*models.Post, error)
	Approve(ctx context.Context, id uuid.UUID, lockVersion int, a *models.Approval) (*models.Post, error)
	// RequestRevision moves client_review to revision, bumps revision_count and stores the
	// feedback comment and history row. a.RevisionNumber and a.IsBillable are filled in.
	RequestRevision(ctx context.Context, id uuid.UUID, lockVersion, maxRevisions int, c *models.Comment, a *models.Approval) (*models.Post, error)

	// ToggleReaction adds the reaction or removes it when already present; returns whether it is now set.
	ToggleReaction(ctx context.Context, r *models.Reaction) (bool, error)
	AddComment(ctx context.Context, c *models.Comment) error
	// AddVersion assigns v.VersionNumber under a row lock. expected > 0 must equal the assigned number.
	AddVersion(ctx context.Context, v *models.PostVersion, expected int) (*models.Post, error)
}

package deliverables

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/database"
)

const postColumns = `id, tenant_id, client_id, title, description, deliverable_type, status, priority, due_date,
	created_by, created_by_type, revision_count, version_count, lock_version, created_at, updated_at`

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a deliverables repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func scanPost(row pgx.Row) (*models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.TenantID, &p.ClientID, &p.Title, &p.Description, &p.DeliverableType, &p.Status,
		&p.Priority, &p.DueDate, &p.CreatedBy, &p.CreatedByType, &p.RevisionCount, &p.VersionCount,
		&p.LockVersion, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a post in draft.
func (r *Repository) Create(ctx context.Context, p *models.Post) error {
	const q = `INSERT INTO deliverable_posts (tenant_id, client_id, title, description, deliverable_type, status,
			priority, due_date, created_by, created_by_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + postColumns
	created, err := scanPost(r.pool.QueryRow(ctx, q, p.TenantID, p.ClientID, p.Title, p.Description,
		p.DeliverableType, p.Status, p.Priority, p.DueDate, p.CreatedBy, p.CreatedByType))
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	*p = *created
	return nil
}

// Get returns a post of the tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Post, error) {
	const q = `SELECT ` + postColumns + ` FROM deliverable_posts WHERE tenant_id = $1 AND id = $2`
	return scanPost(r.pool.QueryRow(ctx, q, tenantID, id))
}

// List returns a client's posts, newest first.
func (r *Repository) List(ctx context.Context, tenantID, clientID uuid.UUID, f ListFilter) ([]models.Post, error) {
	q := `SELECT ` + postColumns + ` FROM deliverable_posts WHERE tenant_id = $1 AND client_id = $2`
	args := []any{tenantID, clientID}
	if f.Status != "" {
		args = append(args, f.Status)
		q += ` AND status = $` + strconv.Itoa(len(args))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		q += ` AND priority = $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

const versionColumns = `id, post_id, version_number, file_key, file_url, file_name, content_type, file_size, uploaded_by, created_at`

func scanVersion(row pgx.Row) (*models.PostVersion, error) {
	var v models.PostVersion
	if err := row.Scan(&v.ID, &v.PostID, &v.VersionNumber, &v.FileKey, &v.FileURL, &v.FileName,
		&v.ContentType, &v.FileSize, &v.UploadedBy, &v.CreatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Versions lists uploaded files in version order.
func (r *Repository) Versions(ctx context.Context, postID uuid.UUID) ([]models.PostVersion, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+versionColumns+` FROM post_versions WHERE post_id = $1 ORDER BY version_number`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.PostVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// Version returns one file version.
func (r *Repository) Version(ctx context.Context, postID uuid.UUID, number int) (*models.PostVersion, error) {
	return scanVersion(r.pool.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM post_versions WHERE post_id = $1 AND version_number = $2`, postID, number))
}

// Comments lists comments oldest first.
func (r *Repository) Comments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	const q = `SELECT id, post_id, author_id, author_type, author_name, content, is_revision_request, created_at
		FROM post_comments WHERE post_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.AuthorType, &c.AuthorName, &c.Content,
			&c.IsRevisionRequest, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Reactions lists reactions oldest first.
func (r *Repository) Reactions(ctx context.Context, postID uuid.UUID) ([]models.Reaction, error) {
	const q = `SELECT post_id, actor_id, actor_type, actor_name, reaction_type, created_at
		FROM post_reactions WHERE post_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Reaction{}
	for rows.Next() {
		var re models.Reaction
		if err := rows.Scan(&re.PostID, &re.ActorID, &re.ActorType, &re.ActorName, &re.ReactionType, &re.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, re)
	}
	return list, rows.Err()
}

// History lists review decisions oldest first.
func (r *Repository) History(ctx context.Context, postID uuid.UUID) ([]models.Approval, error) {
	const q = `SELECT id, post_id, actor_id, actor_type, actor_name, action, note, revision_number, is_billable, created_at
		FROM post_approvals WHERE post_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Approval{}
	for rows.Next() {
		var a models.Approval
		if err := rows.Scan(&a.ID, &a.PostID, &a.ActorID, &a.ActorType, &a.ActorName, &a.Action, &a.Note,
			&a.RevisionNumber, &a.IsBillable, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

const casStatus = `UPDATE deliverable_posts
	SET status = $4, lock_version = lock_version + 1, updated_at = NOW()
	WHERE id = $1 AND status = $2 AND lock_version = $3
	RETURNING ` + postColumns

func casResult(p *models.Post, err error) (*models.Post, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, ErrConflict
	}
	return p, err
}

// SetStatus moves a post when it is still at (from, lockVersion).
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, from models.PostStatus, lockVersion int, to models.PostStatus) (*models.Post, error) {
	return casResult(scanPost(r.pool.QueryRow(ctx, casStatus, id, from, lockVersion, to)))
}

const insertApproval = `INSERT INTO post_approvals (post_id, actor_id, actor_type, actor_name, action, note, revision_number, is_billable)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at`

func insertApprovalTx(ctx context.Context, tx pgx.Tx, a *models.Approval) error {
	return tx.QueryRow(ctx, insertApproval, a.PostID, a.ActorID, a.ActorType, a.ActorName, a.Action, a.Note,
		a.RevisionNumber, a.IsBillable).Scan(&a.ID, &a.CreatedAt)
}

// Approve moves client_review to approved and records the decision.
func (r *Repository) Approve(ctx context.Context, id uuid.UUID, lockVersion int, a *models.Approval) (*models.Post, error) {
	var post *models.Post
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		post, err = casResult(scanPost(tx.QueryRow(ctx, casStatus, id, models.PostClientReview, lockVersion, models.PostApproved)))
		if err != nil {
			return err
		}
		a.PostID = id
		return insertApprovalTx(ctx, tx, a)
	})
	return post, err
}

// RequestRevision moves client_review to revision and increments revision_count in the same statement.
func (r *Repository) RequestRevision(ctx context.Context, id uuid.UUID, lockVersion, maxRevisions int, c *models.Comment, a *models.Approval) (*models.Post, error) {
	const q = `UPDATE deliverable_posts
		SET status = 'revision', revision_count = revision_count + 1, lock_version = lock_version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'client_review' AND lock_version = $2
		RETURNING ` + postColumns
	var post *models.Post
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		post, err = casResult(scanPost(tx.QueryRow(ctx, q, id, lockVersion)))
		if err != nil {
			return err
		}
		c.PostID = id
		if err := insertCommentTx(ctx, tx, c); err != nil {
			return fmt.Errorf("insert revision comment: %w", err)
		}
		a.PostID = id
		a.RevisionNumber = post.RevisionCount
		a.IsBillable = IsBillable(post.RevisionCount, maxRevisions)
		return insertApprovalTx(ctx, tx, a)
	})
	return post, err
}

// ToggleReaction inserts the reaction, or deletes it when the same actor already left it.
func (r *Repository) ToggleReaction(ctx context.Context, re *models.Reaction) (bool, error) {
	var active bool
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM post_reactions WHERE post_id = $1 AND actor_id = $2 AND reaction_type = $3`,
			re.PostID, re.ActorID, re.ReactionType)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		const ins = `INSERT INTO post_reactions (post_id, actor_id, reaction_type, actor_type, actor_name)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (post_id, actor_id, reaction_type) DO NOTHING
			RETURNING created_at`
		err = tx.QueryRow(ctx, ins, re.PostID, re.ActorID, re.ReactionType, re.ActorType, re.ActorName).Scan(&re.CreatedAt)
		if database.IsNoRows(err) {
			// a concurrent toggle inserted it first; it is set either way
			active = true
			return nil
		}
		if err != nil {
			return err
		}
		active = true
		return nil
	})
	return active, err
}

func insertCommentTx(ctx context.Context, tx pgx.Tx, c *models.Comment) error {
	const q = `INSERT INTO post_comments (post_id, author_id, author_type, author_name, content, is_revision_request)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return tx.QueryRow(ctx, q, c.PostID, c.AuthorID, c.AuthorType, c.AuthorName, c.Content, c.IsRevisionRequest).
		Scan(&c.ID, &c.CreatedAt)
}

// AddComment stores a plain comment.
func (r *Repository) AddComment(ctx context.Context, c *models.Comment) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return insertCommentTx(ctx, tx, c)
	})
}

// AddVersion locks the post row, assigns version_count + 1 and stores the file metadata.
func (r *Repository) AddVersion(ctx context.Context, v *models.PostVersion, expected int) (*models.Post, error) {
	var post *models.Post
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status models.PostStatus
		var count int
		err := tx.QueryRow(ctx, `SELECT status, version_count FROM deliverable_posts WHERE id = $1 FOR UPDATE`, v.PostID).
			Scan(&status, &count)
		if database.IsNoRows(err) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if status.Terminal() {
			return ErrTerminalState
		}
		next := count + 1
		if expected > 0 && expected != next {
			return ErrVersionMismatch
		}
		v.VersionNumber = next
		const ins = `INSERT INTO post_versions (post_id, version_number, file_key, file_url, file_name, content_type, file_size, uploaded_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at`
		if err := tx.QueryRow(ctx, ins, v.PostID, v.VersionNumber, v.FileKey, v.FileURL, v.FileName, v.ContentType,
			v.FileSize, v.UploadedBy).Scan(&v.ID, &v.CreatedAt); err != nil {
			if database.IsUniqueViolation(err, "") {
				return ErrVersionMismatch
			}
			return fmt.Errorf("insert version: %w", err)
		}
		post, err = scanPost(tx.QueryRow(ctx, `UPDATE deliverable_posts SET version_count = $2, updated_at = NOW()
			WHERE id = $1 RETURNING `+postColumns, v.PostID, next))
		return err
	})
	return post, err
}

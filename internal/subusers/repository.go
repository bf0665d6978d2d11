package subusers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/database"
)

const emailIndex = "uq_client_sub_users_email"

const subUserColumns = `id, client_id, user_id, name, email, COALESCE(phone,''), role, status, permissions, invited_by,
	COALESCE(invite_token,''), invite_expires_at, invite_resend_count, invited_at, last_invited_at, last_active_at,
	created_at, updated_at`

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sub-users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func scanSubUser(row pgx.Row) (*models.SubUser, error) {
	var su models.SubUser
	err := row.Scan(&su.ID, &su.ClientID, &su.UserID, &su.Name, &su.Email, &su.Phone, &su.Role, &su.Status,
		&su.Permissions, &su.InvitedBy, &su.InviteToken, &su.InviteExpiresAt, &su.InviteResendCount, &su.InvitedAt,
		&su.LastInvitedAt, &su.LastActiveAt, &su.CreatedAt, &su.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if su.Permissions == nil {
		su.Permissions = map[string]bool{}
	}
	return &su, nil
}

func overrides(m map[string]bool) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	return m
}

// Create inserts a sub-user. The partial unique index reports a concurrent duplicate as ErrEmailTaken.
func (r *Repository) Create(ctx context.Context, su *models.SubUser) error {
	const q = `INSERT INTO client_sub_users (client_id, name, email, phone, role, status, permissions, invited_by,
			invite_token, invite_expires_at, invited_at)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7, $8, $9, $10, NOW())
		RETURNING ` + subUserColumns
	created, err := scanSubUser(r.pool.QueryRow(ctx, q, su.ClientID, su.Name, su.Email, su.Phone, su.Role, su.Status,
		overrides(su.Permissions), su.InvitedBy, su.InviteToken, su.InviteExpiresAt))
	if err != nil {
		if database.IsUniqueViolation(err, emailIndex) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert sub-user: %w", err)
	}
	*su = *created
	return nil
}

// Get returns a sub-user of the client.
func (r *Repository) Get(ctx context.Context, clientID, id uuid.UUID) (*models.SubUser, error) {
	return scanSubUser(r.pool.QueryRow(ctx,
		`SELECT `+subUserColumns+` FROM client_sub_users WHERE client_id = $1 AND id = $2`, clientID, id))
}

// List returns the client's roster ordered by invite date.
func (r *Repository) List(ctx context.Context, clientID uuid.UUID) ([]models.SubUser, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+subUserColumns+` FROM client_sub_users WHERE client_id = $1 ORDER BY invited_at`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.SubUser{}
	for rows.Next() {
		su, err := scanSubUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *su)
	}
	return list, rows.Err()
}

// EmailInUse reports whether a non-inactive sub-user of the client other than exclude holds email.
func (r *Repository) EmailInUse(ctx context.Context, clientID uuid.UUID, email string, exclude uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM client_sub_users
		WHERE client_id = $1 AND lower(email) = lower($2) AND status <> 'inactive' AND id <> $3)`
	var used bool
	err := r.pool.QueryRow(ctx, q, clientID, email, exclude).Scan(&used)
	return used, err
}

// Update writes role, status and overrides.
func (r *Repository) Update(ctx context.Context, su *models.SubUser) error {
	const q = `UPDATE client_sub_users SET role = $3, status = $4, permissions = $5, updated_at = NOW()
		WHERE client_id = $1 AND id = $2
		RETURNING ` + subUserColumns
	updated, err := scanSubUser(r.pool.QueryRow(ctx, q, su.ClientID, su.ID, su.Role, su.Status, overrides(su.Permissions)))
	if err != nil {
		if database.IsUniqueViolation(err, emailIndex) {
			return ErrEmailTaken
		}
		return err
	}
	*su = *updated
	return nil
}

// Delete removes a sub-user, and its login once no other roster entry of the client uses it.
func (r *Repository) Delete(ctx context.Context, clientID, id uuid.UUID) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var userID *uuid.UUID
		err := tx.QueryRow(ctx, `DELETE FROM client_sub_users WHERE client_id = $1 AND id = $2 RETURNING user_id`,
			clientID, id).Scan(&userID)
		if database.IsNoRows(err) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if userID != nil {
			_, err = tx.Exec(ctx, `DELETE FROM users WHERE id = $1 AND role = 'sub_user'
				AND NOT EXISTS (SELECT 1 FROM client_sub_users WHERE user_id = $1)`, *userID)
		}
		return err
	})
}

// RotateInvite replaces the token of a still-invited sub-user and counts the resend.
func (r *Repository) RotateInvite(ctx context.Context, clientID, id uuid.UUID, token string, expiresAt, at time.Time) (*models.SubUser, error) {
	const q = `UPDATE client_sub_users
		SET invite_token = $3, invite_expires_at = $4, invite_resend_count = invite_resend_count + 1,
		    last_invited_at = $5, updated_at = NOW()
		WHERE client_id = $1 AND id = $2 AND status = 'invited'
		RETURNING ` + subUserColumns
	su, err := scanSubUser(r.pool.QueryRow(ctx, q, clientID, id, token, expiresAt, at))
	if errors.Is(err, ErrNotFound) {
		if _, gerr := r.Get(ctx, clientID, id); gerr == nil {
			return nil, ErrNotInvited
		}
	}
	return su, err
}

// GetByInviteToken resolves an invite link.
func (r *Repository) GetByInviteToken(ctx context.Context, token string) (*models.SubUser, error) {
	return scanSubUser(r.pool.QueryRow(ctx,
		`SELECT `+subUserColumns+` FROM client_sub_users WHERE invite_token = $1`, token))
}

// Accept creates or reuses the member's login and activates the roster entry in one transaction.
func (r *Repository) Accept(ctx context.Context, id, tenantID uuid.UUID, passwordHash string) (*models.SubUser, error) {
	const activate = `UPDATE client_sub_users
		SET user_id = $2, status = 'active', invite_token = NULL, invite_expires_at = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + subUserColumns
	var accepted *models.SubUser
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		su, err := scanSubUser(tx.QueryRow(ctx,
			`SELECT `+subUserColumns+` FROM client_sub_users WHERE id = $1 AND status = 'invited' FOR UPDATE`, id))
		if errors.Is(err, ErrNotFound) {
			return ErrInviteInvalid
		}
		if err != nil {
			return err
		}
		userID, err := auth.UpsertSubUserLogin(ctx, tx, tenantID, su.ClientID, su.Email, su.Name, passwordHash)
		if err != nil {
			return err
		}
		accepted, err = scanSubUser(tx.QueryRow(ctx, activate, id, userID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// GetByUserID returns the roster entry behind a sub-user login. A re-invited member shares the login with
// the inactive entry it replaced, so the current entry wins.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.SubUser, error) {
	return scanSubUser(r.pool.QueryRow(ctx,
		`SELECT `+subUserColumns+` FROM client_sub_users WHERE user_id = $1
		ORDER BY status = 'inactive', updated_at DESC LIMIT 1`, userID))
}

// Touch records activity.
func (r *Repository) Touch(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE client_sub_users SET last_active_at = $2 WHERE user_id = $1 AND status <> 'inactive'`, userID, at)
	return err
}

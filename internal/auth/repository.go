package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/database"
	"github.com/aura-portal/backend/pkg/utils"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrAmbiguousLogin = errors.New("email belongs to several client accounts")
)

const userColumns = `id, tenant_id, email, password_hash, full_name, role, client_id, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Password, &u.FullName, &role, &u.ClientID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

// ListByEmail returns every login registered under email (case-insensitive).
// A sub-user invited by several clients has one login per client; clientID narrows the search to one of them.
func (r *Repository) ListByEmail(ctx context.Context, email string, clientID *uuid.UUID) ([]models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
		WHERE lower(email) = lower($1) AND ($2::uuid IS NULL OR client_id = $2)
		ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, email, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

// MatchLogin picks the login whose password matches. More than one match is ErrAmbiguousLogin.
func MatchLogin(candidates []models.User, password string) (*models.User, error) {
	var found *models.User
	for i := range candidates {
		if !utils.CheckPassword(password, candidates[i].Password) {
			continue
		}
		if found != nil {
			return nil, ErrAmbiguousLogin
		}
		found = &candidates[i]
	}
	if found == nil {
		return nil, ErrUserNotFound
	}
	return found, nil
}

// ListByTenant returns agency and client logins of a tenant.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, full_name, role, client_id, created_at
		FROM users WHERE tenant_id = $1 ORDER BY full_name, email`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &role, &u.ClientID, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		list = append(list, u)
	}
	return list, rows.Err()
}

// CreateUserParams holds the fields of a new login.
type CreateUserParams struct {
	TenantID     uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         models.Role
	ClientID     *uuid.UUID
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	const q = `INSERT INTO users (tenant_id, email, password_hash, full_name, role, client_id)
		VALUES ($1, lower($2), $3, $4, $5, $6)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, p.TenantID, p.Email, p.PasswordHash, p.FullName, string(p.Role), p.ClientID))
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Querier is satisfied by both the pool and a pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UpsertSubUserLogin creates the login a sub-user gets when accepting an invite, or resets the password of
// the login the same person already holds at this client. Callers pass a tx so the login and the roster
// activation commit together.
func UpsertSubUserLogin(ctx context.Context, q Querier, tenantID, clientID uuid.UUID, email, name, passwordHash string) (uuid.UUID, error) {
	const sql = `INSERT INTO users (tenant_id, email, password_hash, full_name, role, client_id)
		VALUES ($1, lower($2), $3, $4, 'sub_user', $5)
		ON CONFLICT (client_id, lower(email)) WHERE role = 'sub_user'
		DO UPDATE SET password_hash = EXCLUDED.password_hash, full_name = EXCLUDED.full_name, updated_at = NOW()
		RETURNING id`
	var id uuid.UUID
	if err := q.QueryRow(ctx, sql, tenantID, email, passwordHash, name, clientID).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("upsert sub-user login: %w", err)
	}
	return id, nil
}

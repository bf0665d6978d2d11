package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/database"
)

// ErrNotFound is returned when a client does not exist in the tenant.
var ErrNotFound = errors.New("client not found")

const clientColumns = `id, tenant_id, name, COALESCE(company,''), COALESCE(email,''), status, created_at, updated_at`

// Repository handles client persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a clients repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanClient(row pgx.Row) (*models.Client, error) {
	var c models.Client
	if err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Company, &c.Email, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Create inserts a client and opens its wallet in one transaction.
func (r *Repository) Create(ctx context.Context, c *models.Client, currency string) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO clients (tenant_id, name, company, email, status)
			VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), $5)
			RETURNING id, created_at, updated_at`
		if err := tx.QueryRow(ctx, q, c.TenantID, c.Name, c.Company, c.Email, c.Status).
			Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return fmt.Errorf("insert client: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO client_wallets (client_id, currency) VALUES ($1, $2)`, c.ID, currency); err != nil {
			return fmt.Errorf("open wallet: %w", err)
		}
		return nil
	})
}

// GetByID returns a client of the tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Client, error) {
	const q = `SELECT ` + clientColumns + ` FROM clients WHERE tenant_id = $1 AND id = $2`
	return scanClient(r.pool.QueryRow(ctx, q, tenantID, id))
}

// List returns the tenant's clients ordered by name.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]models.Client, error) {
	const q = `SELECT ` + clientColumns + ` FROM clients WHERE tenant_id = $1 ORDER BY name`
	rows, err := r.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// UpdateStatus changes a client's status.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) (*models.Client, error) {
	const q = `UPDATE clients SET status = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + clientColumns
	return scanClient(r.pool.QueryRow(ctx, q, tenantID, id, status))
}

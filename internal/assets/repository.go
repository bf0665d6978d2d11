// Package assets stores each client's brand kit: logos, fonts, guidelines and other reference files.
package assets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/database"
)

// ErrNotFound is returned when the asset does not exist for the client.
var ErrNotFound = errors.New("brand asset not found")

// Repository handles brand_assets persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a brand asset repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const assetColumns = `id, client_id, name, category, file_key, content_type, file_size, uploaded_by, created_at`

func scanAsset(row pgx.Row) (*models.BrandAsset, error) {
	var a models.BrandAsset
	err := row.Scan(&a.ID, &a.ClientID, &a.Name, &a.Category, &a.FileKey, &a.ContentType, &a.FileSize, &a.UploadedBy, &a.CreatedAt)
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts an asset row. ID must be set; it is part of the object key.
func (r *Repository) Create(ctx context.Context, a *models.BrandAsset) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO brand_assets (id, client_id, name, category, file_key, content_type, file_size, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		a.ID, a.ClientID, a.Name, a.Category, a.FileKey, a.ContentType, a.FileSize, a.UploadedBy,
	).Scan(&a.CreatedAt)
}

// Get returns one asset of the client.
func (r *Repository) Get(ctx context.Context, clientID, id uuid.UUID) (*models.BrandAsset, error) {
	return scanAsset(r.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM brand_assets WHERE client_id = $1 AND id = $2`, clientID, id))
}

// List returns the client's assets, optionally filtered by category.
func (r *Repository) List(ctx context.Context, clientID uuid.UUID, category string) ([]models.BrandAsset, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assetColumns+` FROM brand_assets
		WHERE client_id = $1 AND ($2 = '' OR category = $2)
		ORDER BY category, created_at DESC`, clientID, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.BrandAsset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// Delete removes the row and returns it so the caller can drop the object.
func (r *Repository) Delete(ctx context.Context, clientID, id uuid.UUID) (*models.BrandAsset, error) {
	return scanAsset(r.pool.QueryRow(ctx,
		`DELETE FROM brand_assets WHERE client_id = $1 AND id = $2 RETURNING `+assetColumns, clientID, id))
}

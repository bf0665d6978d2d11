package packages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/database"
)

var (
	// ErrNoPackage is returned when the client has no package configured.
	ErrNoPackage = errors.New("client has no package")
	// ErrPackageExhausted is returned when a metered deliverable type has no units left this cycle.
	ErrPackageExhausted = errors.New("package allocation exhausted for this deliverable type")
)

// Repository handles client packages and usage counters.
type Repository struct {
	pool                *pgxpool.Pool
	defaultMaxRevisions int
}

// NewRepository creates a packages repository. defaultMaxRevisions applies to clients without a package.
func NewRepository(pool *pgxpool.Pool, defaultMaxRevisions int) *Repository {
	return &Repository{pool: pool, defaultMaxRevisions: defaultMaxRevisions}
}

// GetUsage returns the client's package with per-type usage.
func (r *Repository) GetUsage(ctx context.Context, clientID uuid.UUID) (*models.Package, error) {
	const q = `SELECT id, client_id, name, max_revisions, cycle_started_at FROM client_packages WHERE client_id = $1`
	var p models.Package
	err := r.pool.QueryRow(ctx, q, clientID).Scan(&p.ID, &p.ClientID, &p.Name, &p.MaxRevisions, &p.CycleStartedAt)
	if database.IsNoRows(err) {
		return nil, ErrNoPackage
	}
	if err != nil {
		return nil, err
	}
	items, err := r.items(ctx, r.pool, p.ID)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return &p, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) items(ctx context.Context, q querier, packageID uuid.UUID) ([]models.PackageItem, error) {
	rows, err := q.Query(ctx, `SELECT deliverable_type, allocated, used FROM package_items
		WHERE package_id = $1 ORDER BY deliverable_type`, packageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []models.PackageItem{}
	for rows.Next() {
		var it models.PackageItem
		if err := rows.Scan(&it.DeliverableType, &it.Allocated, &it.Used); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Consume takes one unit of deliverableType. Types the package does not list are unmetered and
// report metered=false. The increment is conditional so concurrent requests cannot overdraw.
func (r *Repository) Consume(ctx context.Context, clientID uuid.UUID, deliverableType string) (metered bool, err error) {
	const q = `UPDATE package_items pi SET used = pi.used + 1
		FROM client_packages p
		WHERE pi.package_id = p.id AND p.client_id = $1 AND pi.deliverable_type = $2 AND pi.used < pi.allocated
		RETURNING pi.used`
	var used int
	err = r.pool.QueryRow(ctx, q, clientID, deliverableType).Scan(&used)
	if err == nil {
		return true, nil
	}
	if !database.IsNoRows(err) {
		return false, fmt.Errorf("consume package unit: %w", err)
	}
	const exists = `SELECT EXISTS (SELECT 1 FROM package_items pi JOIN client_packages p ON p.id = pi.package_id
		WHERE p.client_id = $1 AND pi.deliverable_type = $2)`
	var listed bool
	if err := r.pool.QueryRow(ctx, exists, clientID, deliverableType).Scan(&listed); err != nil {
		return false, err
	}
	if listed {
		return true, ErrPackageExhausted
	}
	return false, nil
}

// Release gives back a unit consumed at since, unless the cycle has been reset after it.
func (r *Repository) Release(ctx context.Context, clientID uuid.UUID, deliverableType string, since time.Time) error {
	const q = `UPDATE package_items pi SET used = pi.used - 1
		FROM client_packages p
		WHERE pi.package_id = p.id AND p.client_id = $1 AND pi.deliverable_type = $2
		  AND pi.used > 0 AND p.cycle_started_at <= $3`
	_, err := r.pool.Exec(ctx, q, clientID, deliverableType, since)
	return err
}

// MaxRevisions returns the included revision rounds for the client.
func (r *Repository) MaxRevisions(ctx context.Context, clientID uuid.UUID) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx, `SELECT max_revisions FROM client_packages WHERE client_id = $1`, clientID).Scan(&max)
	if database.IsNoRows(err) {
		return r.defaultMaxRevisions, nil
	}
	if err != nil {
		return 0, err
	}
	return max, nil
}

// UpsertParams replaces a client's package definition.
type UpsertParams struct {
	ClientID     uuid.UUID
	Name         string
	MaxRevisions int
	Items        []models.PackageItem // Used is ignored; existing usage is kept per type
}

// Upsert creates or replaces the package, keeping usage of types that remain listed.
func (r *Repository) Upsert(ctx context.Context, p UpsertParams) (*models.Package, error) {
	var packageID uuid.UUID
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		const up = `INSERT INTO client_packages (client_id, name, max_revisions)
			VALUES ($1, $2, $3)
			ON CONFLICT (client_id) DO UPDATE SET name = EXCLUDED.name, max_revisions = EXCLUDED.max_revisions
			RETURNING id`
		if err := tx.QueryRow(ctx, up, p.ClientID, p.Name, p.MaxRevisions).Scan(&packageID); err != nil {
			return fmt.Errorf("upsert package: %w", err)
		}
		types := make([]string, 0, len(p.Items))
		for _, it := range p.Items {
			types = append(types, it.DeliverableType)
			const item = `INSERT INTO package_items (package_id, deliverable_type, allocated)
				VALUES ($1, $2, $3)
				ON CONFLICT (package_id, deliverable_type) DO UPDATE SET allocated = EXCLUDED.allocated`
			if _, err := tx.Exec(ctx, item, packageID, it.DeliverableType, it.Allocated); err != nil {
				return fmt.Errorf("upsert package item %s: %w", it.DeliverableType, err)
			}
		}
		_, err := tx.Exec(ctx, `DELETE FROM package_items WHERE package_id = $1 AND NOT (deliverable_type = ANY($2))`,
			packageID, types)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetUsage(ctx, p.ClientID)
}

// ResetCycles zeroes usage of every package whose cycle started before now and returns the affected clients.
func (r *Repository) ResetCycles(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var clients []uuid.UUID
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `UPDATE client_packages SET cycle_started_at = $1
			WHERE cycle_started_at < $1 RETURNING id, client_id`, now)
		if err != nil {
			return err
		}
		var ids []uuid.UUID
		for rows.Next() {
			var id, clientID uuid.UUID
			if err := rows.Scan(&id, &clientID); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
			clients = append(clients, clientID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE package_items SET used = 0 WHERE package_id = ANY($1)`, ids)
		return err
	})
	return clients, err
}

// UsagePercent returns used/allocated across all types, 0 without a package.
func UsagePercent(p *models.Package) float64 {
	if p == nil {
		return 0
	}
	var used, allocated int
	for _, it := range p.Items {
		used += it.Used
		allocated += it.Allocated
	}
	if allocated == 0 {
		return 0
	}
	return float64(used) * 100 / float64(allocated)
}

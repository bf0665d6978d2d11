// Package analytics computes per-client deliverable reports and caches them in Redis.
package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-portal/backend/internal/models"
)

// Counts are the raw figures a report is built from.
type Counts struct {
	Total            int
	Approved         int
	Delivered        int
	PendingReview    int
	InRevision       int
	RevisionRequests int
	Allocated        int
	Used             int
	Monthly          []models.MonthRow
}

// Repository reads analytics figures from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// monthsBack bounds the monthly table.
const monthsBack = 12

// Counts loads the figures for one client.
func (r *Repository) Counts(ctx context.Context, tenantID, clientID uuid.UUID) (*Counts, error) {
	var c Counts
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'approved'),
		       COUNT(*) FILTER (WHERE status = 'delivered'),
		       COUNT(*) FILTER (WHERE status = 'client_review'),
		       COUNT(*) FILTER (WHERE status = 'revision'),
		       COALESCE(SUM(revision_count), 0)
		FROM deliverable_posts WHERE tenant_id = $1 AND client_id = $2`,
		tenantID, clientID,
	).Scan(&c.Total, &c.Approved, &c.Delivered, &c.PendingReview, &c.InRevision, &c.RevisionRequests)
	if err != nil {
		return nil, fmt.Errorf("post counts: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(i.allocated), 0), COALESCE(SUM(i.used), 0)
		FROM client_packages p JOIN package_items i ON i.package_id = p.id
		WHERE p.client_id = $1`, clientID,
	).Scan(&c.Allocated, &c.Used)
	if err != nil {
		return nil, fmt.Errorf("package usage: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status IN ('approved', 'delivered'))
		FROM deliverable_posts
		WHERE tenant_id = $1 AND client_id = $2
		  AND created_at >= date_trunc('month', NOW()) - make_interval(months => $3)
		GROUP BY 1 ORDER BY 1`, tenantID, clientID, monthsBack-1)
	if err != nil {
		return nil, fmt.Errorf("monthly counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m models.MonthRow
		if err := rows.Scan(&m.Month, &m.Deliverables, &m.Approved); err != nil {
			return nil, err
		}
		c.Monthly = append(c.Monthly, m)
	}
	return &c, rows.Err()
}

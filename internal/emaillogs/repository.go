// Package emaillogs records every email the worker attempts to deliver.
package emaillogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-portal/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending log row and fills ID and CreatedAt.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	if el.Status == "" {
		el.Status = models.EmailLogStatusPending
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO email_logs (client_id, sub_user_id, email_type, recipient_email, subject, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		el.ClientID, el.SubUserID, el.EmailType, el.RecipientEmail, el.Subject, el.Status,
	).Scan(&el.ID, &el.CreatedAt)
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, sent_at = $3, error_message = NULL WHERE id = $1`,
		id, models.EmailLogStatusSent, at)
	return err
}

// MarkFailed records a failed attempt.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, error_message = $3 WHERE id = $1`,
		id, models.EmailLogStatusFailed, reason)
	return err
}

// ListByClient returns the client's email logs, newest first. status filters when non-empty.
func (r *Repository) ListByClient(ctx context.Context, clientID uuid.UUID, status string, limit int) ([]*models.EmailLog, error) {
	const q = `SELECT id, client_id, sub_user_id, email_type, recipient_email, subject, status, sent_at, error_message, created_at
		FROM email_logs
		WHERE client_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, q, clientID, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		var errMsg *string
		if err := rows.Scan(&el.ID, &el.ClientID, &el.SubUserID, &el.EmailType, &el.RecipientEmail, &el.Subject,
			&el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}

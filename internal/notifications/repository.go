package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/database"
)

// ErrNotFound is returned for unknown notifications.
var ErrNotFound = errors.New("notification not found")

// Repository handles notifications, messages and the badge count queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UnreadMessages counts messages the viewer has not read. Agency viewers count what the client side
// sent; client viewers count what the agency sent.
func (r *Repository) UnreadMessages(ctx context.Context, clientID uuid.UUID, agencyViewer bool) (int, error) {
	q := `SELECT COUNT(*) FROM messages WHERE client_id = $1 AND read_at IS NULL AND sender_type `
	if agencyViewer {
		q += `<> 'agency'`
	} else {
		q += `= 'agency'`
	}
	var n int
	err := r.pool.QueryRow(ctx, q, clientID).Scan(&n)
	return n, err
}

// PendingTasks counts posts waiting on the client's review.
func (r *Repository) PendingTasks(ctx context.Context, clientID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM deliverable_posts WHERE client_id = $1 AND status = 'client_review'`, clientID).Scan(&n)
	return n, err
}

// UnreadNotifications counts notifications visible to the audience that its reader has not opened.
func (r *Repository) UnreadNotifications(ctx context.Context, clientID uuid.UUID, aud Audience) (int, error) {
	const q = `SELECT COUNT(*) FROM notifications n
		WHERE n.client_id = $1
		  AND ($2::uuid IS NULL OR n.recipient_id IS NULL OR n.recipient_id = $2)
		  AND NOT EXISTS (SELECT 1 FROM notification_reads nr WHERE nr.notification_id = n.id AND nr.user_id = $3)`
	var n int
	err := r.pool.QueryRow(ctx, q, clientID, aud.Recipient, aud.Reader).Scan(&n)
	return n, err
}

// Insert stores a notification.
func (r *Repository) Insert(ctx context.Context, n *models.Notification) error {
	const q = `INSERT INTO notifications (client_id, recipient_id, kind, title, body, post_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, n.ClientID, n.RecipientID, n.Kind, n.Title, n.Body, n.PostID).Scan(&n.ID, &n.CreatedAt)
}

// notificationSelect joins the read state of the login passed as $1.
const notificationSelect = `SELECT n.id, n.client_id, n.recipient_id, n.kind, n.title, n.body, n.post_id, nr.read_at, n.created_at
	FROM notifications n
	LEFT JOIN notification_reads nr ON nr.notification_id = n.id AND nr.user_id = $1`

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	if err := row.Scan(&n.ID, &n.ClientID, &n.RecipientID, &n.Kind, &n.Title, &n.Body, &n.PostID, &n.ReadAt, &n.CreatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// Get returns one notification with reader's read state.
func (r *Repository) Get(ctx context.Context, id, reader uuid.UUID) (*models.Notification, error) {
	return scanNotification(r.pool.QueryRow(ctx, notificationSelect+` WHERE n.id = $2`, reader, id))
}

// List returns the newest notifications visible to the audience.
func (r *Repository) List(ctx context.Context, clientID uuid.UUID, aud Audience, unreadOnly bool, limit int) ([]models.Notification, error) {
	q := notificationSelect + `
		WHERE n.client_id = $2 AND ($3::uuid IS NULL OR n.recipient_id IS NULL OR n.recipient_id = $3)`
	if unreadOnly {
		q += ` AND nr.read_at IS NULL`
	}
	q += ` ORDER BY n.created_at DESC LIMIT $4`
	rows, err := r.pool.Query(ctx, q, aud.Reader, clientID, aud.Recipient, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *n)
	}
	return list, rows.Err()
}

// MarkRead records that reader opened one notification.
func (r *Repository) MarkRead(ctx context.Context, id, reader uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO notification_reads (notification_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, id, reader)
	return err
}

// MarkAllRead marks every notification visible to the audience read for its reader and returns how many changed.
func (r *Repository) MarkAllRead(ctx context.Context, clientID uuid.UUID, aud Audience) (int64, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO notification_reads (notification_id, user_id)
		SELECT n.id, $3 FROM notifications n
		WHERE n.client_id = $1 AND ($2::uuid IS NULL OR n.recipient_id IS NULL OR n.recipient_id = $2)
		ON CONFLICT DO NOTHING`, clientID, aud.Recipient, aud.Reader)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Messages returns the latest limit messages in chronological order.
func (r *Repository) Messages(ctx context.Context, clientID uuid.UUID, limit int) ([]models.Message, error) {
	const q = `SELECT id, client_id, sender_id, sender_type, sender_name, body, read_at, created_at FROM (
			SELECT * FROM messages WHERE client_id = $1 ORDER BY created_at DESC LIMIT $2
		) m ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ClientID, &m.SenderID, &m.SenderType, &m.SenderName, &m.Body, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// InsertMessage stores a chat message.
func (r *Repository) InsertMessage(ctx context.Context, m *models.Message) error {
	const q = `INSERT INTO messages (client_id, sender_id, sender_type, sender_name, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, m.ClientID, m.SenderID, m.SenderType, m.SenderName, m.Body).Scan(&m.ID, &m.CreatedAt)
}

// MarkMessagesRead marks the other side's messages read for the viewer.
func (r *Repository) MarkMessagesRead(ctx context.Context, clientID uuid.UUID, agencyViewer bool) (int64, error) {
	q := `UPDATE messages SET read_at = NOW() WHERE client_id = $1 AND read_at IS NULL AND sender_type `
	if agencyViewer {
		q += `<> 'agency'`
	} else {
		q += `= 'agency'`
	}
	tag, err := r.pool.Exec(ctx, q, clientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

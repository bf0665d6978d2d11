// Package notifications serves the portal's badge counters, in-portal notifications and
// the agency/client message thread.
package notifications

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/realtime"
	"github.com/aura-portal/backend/pkg/queue"
)

// ErrEmptyMessage is returned for blank chat messages.
var ErrEmptyMessage = errors.New("message body is required")

// Counter runs the three badge count queries.
type Counter interface {
	UnreadMessages(ctx context.Context, clientID uuid.UUID, agencyViewer bool) (int, error)
	PendingTasks(ctx context.Context, clientID uuid.UUID) (int, error)
	UnreadNotifications(ctx context.Context, clientID uuid.UUID, aud Audience) (int, error)
}

// Audience scopes notification queries to one viewer. Read state is kept per Reader, so one
// team member opening a broadcast does not clear it for the others.
type Audience struct {
	Reader    uuid.UUID
	Recipient *uuid.UUID // nil sees every notification of the client
}

// ClientLookup loads the client a notification belongs to.
type ClientLookup interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Client, error)
}

// Mailer queues notification emails.
type Mailer interface {
	EnqueueNotificationEmail(ctx context.Context, p queue.NotificationEmailPayload) error
}

// ChangePublisher announces row changes on the realtime feed.
type ChangePublisher interface {
	Publish(ctx context.Context, table string, clientID, rowID uuid.UUID)
}

// Service ties notifications to the feed and email queue.
type Service struct {
	repo     *Repository
	counter  Counter
	clients  ClientLookup
	mailer   Mailer
	feed     ChangePublisher
	tenantID uuid.UUID
	logger   *zap.Logger
}

// NewService creates a notifications service. counter is usually repo.
func NewService(repo *Repository, counter Counter, clients ClientLookup, mailer Mailer, feed ChangePublisher, tenantID uuid.UUID, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, counter: counter, clients: clients, mailer: mailer, feed: feed, tenantID: tenantID, logger: logger}
}

// viewer returns who is counting: agency staff see the whole client, client logins see
// broadcast notifications plus their own.
func viewer(sess *auth.Session) (agency bool, aud Audience) {
	aud.Reader = sess.UserID
	if sess.IsAgency() {
		return true, aud
	}
	id := sess.UserID
	aud.Recipient = &id
	return false, aud
}

// Badges runs the three counters side by side. A failing counter is logged and reported as zero;
// the other two are still returned.
func (s *Service) Badges(ctx context.Context, sess *auth.Session, clientID uuid.UUID) models.BadgeCounts {
	agency, aud := viewer(sess)
	var (
		out models.BadgeCounts
		wg  sync.WaitGroup
	)
	run := func(name string, dst *int, fn func() (int, error)) {
		defer wg.Done()
		n, err := fn()
		if err != nil {
			s.logger.Warn("badge counter failed", zap.String("counter", name),
				zap.String("client_id", clientID.String()), zap.Error(err))
			return
		}
		*dst = n
	}
	wg.Add(3)
	go run("unread_messages", &out.UnreadMessages, func() (int, error) {
		return s.counter.UnreadMessages(ctx, clientID, agency)
	})
	go run("pending_tasks", &out.PendingTasks, func() (int, error) {
		return s.counter.PendingTasks(ctx, clientID)
	})
	go run("unread_notifications", &out.UnreadNotifications, func() (int, error) {
		return s.counter.UnreadNotifications(ctx, clientID, aud)
	})
	wg.Wait()
	return out
}

// Notify stores a notification, refreshes dashboards and emails the client contact.
func (s *Service) Notify(ctx context.Context, n *models.Notification) error {
	if err := s.repo.Insert(ctx, n); err != nil {
		return err
	}
	s.feed.Publish(ctx, realtime.TableNotifications, n.ClientID, n.ID)
	if s.mailer == nil || s.clients == nil {
		return nil
	}
	client, err := s.clients.GetByID(ctx, s.tenantID, n.ClientID)
	if err != nil || client.Email == "" {
		return nil
	}
	if err := s.mailer.EnqueueNotificationEmail(ctx, queue.NotificationEmailPayload{
		ClientID:       n.ClientID,
		RecipientEmail: client.Email,
		Subject:        n.Title,
		Body:           n.Body,
	}); err != nil {
		s.logger.Warn("enqueue notification email", zap.String("client_id", n.ClientID.String()), zap.Error(err))
	}
	return nil
}

// List returns notifications visible to the session.
func (s *Service) List(ctx context.Context, sess *auth.Session, clientID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	_, aud := viewer(sess)
	return s.repo.List(ctx, clientID, aud, unreadOnly, limit)
}

// MarkRead marks one notification read for the session when it can see it.
func (s *Service) MarkRead(ctx context.Context, sess *auth.Session, id uuid.UUID) error {
	_, aud := viewer(sess)
	n, err := s.repo.Get(ctx, id, aud.Reader)
	if err != nil {
		return err
	}
	if !sess.CanAccessClient(s.tenantID, n.ClientID) ||
		(aud.Recipient != nil && n.RecipientID != nil && *n.RecipientID != *aud.Recipient) {
		return ErrNotFound
	}
	if err := s.repo.MarkRead(ctx, id, aud.Reader); err != nil {
		return err
	}
	s.feed.Publish(ctx, realtime.TableNotifications, n.ClientID, id)
	return nil
}

// MarkAllRead clears the session's unread notifications for a client.
func (s *Service) MarkAllRead(ctx context.Context, sess *auth.Session, clientID uuid.UUID) (int64, error) {
	_, aud := viewer(sess)
	n, err := s.repo.MarkAllRead(ctx, clientID, aud)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.feed.Publish(ctx, realtime.TableNotifications, clientID, uuid.Nil)
	}
	return n, nil
}

// Messages returns the thread.
func (s *Service) Messages(ctx context.Context, clientID uuid.UUID, limit int) ([]models.Message, error) {
	return s.repo.Messages(ctx, clientID, limit)
}

// SendMessage appends to the thread.
func (s *Service) SendMessage(ctx context.Context, sess *auth.Session, clientID uuid.UUID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	actor := sess.Actor()
	m := &models.Message{ClientID: clientID, SenderID: actor.ID, SenderType: actor.Type, SenderName: actor.Name, Body: body}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	s.feed.Publish(ctx, realtime.TableMessages, clientID, m.ID)
	return m, nil
}

// MarkMessagesRead marks the other side's messages read.
func (s *Service) MarkMessagesRead(ctx context.Context, sess *auth.Session, clientID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkMessagesRead(ctx, clientID, sess.IsAgency())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.feed.Publish(ctx, realtime.TableMessages, clientID, uuid.Nil)
	}
	return n, nil
}

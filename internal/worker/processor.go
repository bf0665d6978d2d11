package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/queue"
)

// EmailLogStore records delivery attempts. *emaillogs.Repository satisfies it.
type EmailLogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// EmailProcessor handles jobs from queue.QueueEmails.
type EmailProcessor struct {
	sender Sender
	logs   EmailLogStore
	logger *zap.Logger
	now    func() time.Time
}

// NewEmailProcessor creates an email processor.
func NewEmailProcessor(sender Sender, logs EmailLogStore, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{sender: sender, logs: logs, logger: logger, now: time.Now}
}

// Process renders and sends one job. Every attempt gets its own email_logs row.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	var (
		msg   Message
		entry models.EmailLog
	)
	switch job.Type {
	case queue.JobTypeInviteEmail:
		var payload queue.InviteEmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal invite payload: %w", err)
		}
		m, err := InviteMessage(payload)
		if err != nil {
			return err
		}
		msg = m
		entry.ClientID = &payload.ClientID
		entry.SubUserID = &payload.SubUserID
		entry.EmailType = models.EmailTypeInvite
		if payload.Resend {
			entry.EmailType = models.EmailTypeInviteResend
		}
	case queue.JobTypeNotificationEmail:
		var payload queue.NotificationEmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal notification payload: %w", err)
		}
		msg = NotificationMessage(payload)
		entry.ClientID = &payload.ClientID
		entry.EmailType = models.EmailTypeNotification
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	entry.RecipientEmail = msg.To
	entry.Subject = msg.Subject

	if err := p.logs.Create(ctx, &entry); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		if lerr := p.logs.MarkFailed(ctx, entry.ID, err.Error()); lerr != nil {
			p.logger.Error("mark email failed", zap.String("email_log_id", entry.ID.String()), zap.Error(lerr))
		}
		return err
	}
	if err := p.logs.MarkSent(ctx, entry.ID, p.now().UTC()); err != nil {
		p.logger.Error("mark email sent", zap.String("email_log_id", entry.ID.String()), zap.Error(err))
	}
	p.logger.Info("email sent", zap.String("job_id", job.ID), zap.String("type", string(job.Type)),
		zap.String("to", msg.To))
	return nil
}

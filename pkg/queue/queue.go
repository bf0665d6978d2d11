package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueEmails is the Redis list key for email jobs.
	QueueEmails = "worker:emails"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// dequeueTimeout bounds BLPOP so the worker notices shutdown.
	dequeueTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeInviteEmail       JobType = "invite_email"
	JobTypeNotificationEmail JobType = "notification_email"
)

// InviteEmailPayload is the payload for sub-user invitation emails.
type InviteEmailPayload struct {
	SubUserID      uuid.UUID `json:"sub_user_id"`
	ClientID       uuid.UUID `json:"client_id"`
	ClientName     string    `json:"client_name"`
	RecipientEmail string    `json:"recipient_email"`
	RecipientName  string    `json:"recipient_name"`
	Role           string    `json:"role"`
	InviteURL      string    `json:"invite_url"`
	Resend         bool      `json:"resend"`
}

// NotificationEmailPayload is the payload for workflow notification emails.
type NotificationEmailPayload struct {
	ClientID       uuid.UUID `json:"client_id"`
	RecipientEmail string    `json:"recipient_email"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Queue     string          `json:"queue"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// NewJob wraps payload in an envelope bound for the named list.
func NewJob(queueName string, jobType JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Queue:     queueName,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EnqueueInviteEmail enqueues a sub-user invitation email.
func (q *Queue) EnqueueInviteEmail(ctx context.Context, payload InviteEmailPayload) error {
	job, err := NewJob(QueueEmails, JobTypeInviteEmail, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, job.Queue, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued invite email", zap.String("job_id", job.ID), zap.String("sub_user_id", payload.SubUserID.String()))
	return nil
}

// EnqueueNotificationEmail enqueues a workflow notification email.
func (q *Queue) EnqueueNotificationEmail(ctx context.Context, payload NotificationEmailPayload) error {
	job, err := NewJob(QueueEmails, JobTypeNotificationEmail, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, job.Queue, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued notification email", zap.String("job_id", job.ID), zap.String("client_id", payload.ClientID.String()))
	return nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// Dequeue blocks until a job is available on one of keys or ctx is done.
// A nil job with nil error means the wait timed out or the payload was unreadable.
func (q *Queue) Dequeue(ctx context.Context, keys ...string) (*Job, error) {
	if len(keys) == 0 {
		keys = []string{QueueEmails}
	}
	result, err := q.client.BLPop(ctx, dequeueTimeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	if job.Queue == "" {
		job.Queue = result[0]
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.push(ctx, job.Queue, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// DeadLetters returns up to limit jobs parked in the DLQ, oldest first.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]Job, error) {
	raws, err := q.client.LRange(ctx, QueueDLQ, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange dlq: %w", err)
	}
	jobs := make([]Job, 0, len(raws))
	for _, raw := range raws {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Package worker drains the Redis job queue and runs periodic maintenance.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-portal/backend/pkg/queue"
)

// JobSource is the queue side the runner needs. *queue.Queue satisfies it.
type JobSource interface {
	Dequeue(ctx context.Context, keys ...string) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Processor executes a single job.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

// Runner is the dequeue/process/retry loop.
type Runner struct {
	source    JobSource
	processor Processor
	keys      []string
	backoff   time.Duration
	logger    *zap.Logger
}

// NewRunner creates a runner reading keys (queue.QueueEmails when empty).
func NewRunner(source JobSource, processor Processor, logger *zap.Logger, keys ...string) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(keys) == 0 {
		keys = []string{queue.QueueEmails}
	}
	return &Runner{source: source, processor: processor, keys: keys, backoff: queue.RetryBackoff, logger: logger}
}

// Run loops until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("worker stopping")
			return
		default:
		}

		job, err := r.source.Dequeue(ctx, r.keys...)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			r.logger.Warn("dequeue error", zap.Error(err))
			r.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		r.handle(ctx, job)
	}
}

// handle processes one job and schedules a retry on failure. Returns whether it succeeded.
func (r *Runner) handle(ctx context.Context, job *queue.Job) bool {
	r.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := r.processor.Process(ctx, job)
	if err == nil {
		return true
	}
	r.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	if reErr := r.source.Retry(context.WithoutCancel(ctx), job); reErr != nil {
		r.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
	}
	r.sleep(ctx)
	return false
}

func (r *Runner) sleep(ctx context.Context) {
	if r.backoff <= 0 {
		return
	}
	t := time.NewTimer(r.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

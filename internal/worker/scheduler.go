package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/realtime"
)

// CycleResetter zeroes package usage. *packages.Repository satisfies it.
type CycleResetter interface {
	ResetCycles(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// ChangePublisher announces row changes on the realtime feed.
type ChangePublisher interface {
	Publish(ctx context.Context, table string, clientID, rowID uuid.UUID)
}

// Scheduler runs the package cycle reset on a cron spec.
type Scheduler struct {
	cron     *cron.Cron
	resetter CycleResetter
	feed     ChangePublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler validates spec (standard 5-field) and registers the reset job.
func NewScheduler(spec string, resetter CycleResetter, feed ChangePublisher, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		resetter: resetter,
		feed:     feed,
		logger:   logger,
		now:      time.Now,
	}
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.ResetCycles(ctx); err != nil {
			s.logger.Error("package cycle reset failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("register cycle reset: %w", err)
	}
	return s, nil
}

// Start runs the cron in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// ResetCycles resets every package and tells listeners which clients changed.
func (s *Scheduler) ResetCycles(ctx context.Context) (int, error) {
	clientIDs, err := s.resetter.ResetCycles(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	for _, id := range clientIDs {
		s.feed.Publish(ctx, realtime.TablePackageItems, id, uuid.Nil)
	}
	s.logger.Info("package cycles reset", zap.Int("clients", len(clientIDs)))
	return len(clientIDs), nil
}

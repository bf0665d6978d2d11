package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/realtime"
)

// Source loads raw counts.
type Source interface {
	Counts(ctx context.Context, tenantID, clientID uuid.UUID) (*Counts, error)
}

// Cache stores JSON snapshots. *redis.Client from pkg/redis satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Service serves cached client reports.
type Service struct {
	source Source
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewService creates an analytics service. cache may be nil.
func NewService(source Source, cache Cache, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, cache: cache, ttl: ttl, logger: logger}
}

// CacheKey is the Redis key holding a client's snapshot.
func CacheKey(clientID uuid.UUID) string {
	return "analytics:" + clientID.String()
}

// Report returns the client's analytics, from cache when fresh.
func (s *Service) Report(ctx context.Context, tenantID, clientID uuid.UUID) (models.ClientAnalytics, error) {
	key := CacheKey(clientID)
	if s.cache != nil {
		var cached models.ClientAnalytics
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("analytics cache read failed", zap.String("key", key), zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	counts, err := s.source.Counts(ctx, tenantID, clientID)
	if err != nil {
		return models.ClientAnalytics{}, err
	}
	report := Build(counts)
	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.SetJSON(ctx, key, report, s.ttl); err != nil {
			s.logger.Warn("analytics cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return report, nil
}

// OnChange drops the snapshot when a post or package counter of that client changes.
func (s *Service) OnChange(ch realtime.Change) {
	if s.cache == nil {
		return
	}
	switch ch.Table {
	case realtime.TableDeliverablePosts, realtime.TablePackageItems:
	default:
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, CacheKey(ch.ClientID)); err != nil {
		s.logger.Warn("analytics cache invalidation failed",
			zap.String("client_id", ch.ClientID.String()), zap.Error(err))
	}
}

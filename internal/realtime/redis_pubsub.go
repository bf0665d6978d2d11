package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// ChangesChannel carries every row change across server instances.
	ChangesChannel = "portal:changes"
	publishTimeout = 5 * time.Second
)

// RedisPubSub moves changes between instances over a single Redis channel.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for the change feed.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// PublishChange publishes a change to ChangesChannel.
func (r *RedisPubSub) PublishChange(ctx context.Context, ch Change) error {
	body, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, ChangesChannel, body).Err()
}

// SubscribeChanges calls handler for each change until ctx is cancelled.
func (r *RedisPubSub) SubscribeChanges(ctx context.Context, handler func(Change)) error {
	pubsub := r.client.Subscribe(ctx, ChangesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					r.logger.Warn("dropping malformed change", zap.Error(err))
					continue
				}
				handler(change)
			}
		}
	}()
	return nil
}

// ABOUTME: Redis pub/sub backed change feed for cross-process live queries
// ABOUTME: Publishes store changes to Redis and relays them into a local hub
package changefeed

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/harperreed/leadsync/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "leadsync:changes:"

// ChannelName is the Redis channel a change is published on.
func ChannelName(owner string, kind models.Kind) string {
	return channelPrefix + owner + ":" + string(kind)
}

// Redis fans changes out through Redis so that a sync running in one process
// wakes subscribers in another. Delivery to local subscribers goes through a
// Hub fed by a single pattern subscription.
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub
	hub    *Hub
	logger *zap.Logger
	wg     sync.WaitGroup
	once   sync.Once
}

func NewRedis(ctx context.Context, client *redis.Client, logger *zap.Logger) (*Redis, error) {
	pubsub := client.PSubscribe(ctx, channelPrefix+"*")
	// Receive blocks until the subscription is confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to change channel: %w", err)
	}

	r := &Redis{
		client: client,
		pubsub: pubsub,
		hub:    NewHub(),
		logger: logger,
	}
	r.wg.Add(1)
	go r.relay()
	return r, nil
}

func (r *Redis) relay() {
	defer r.wg.Done()

	for msg := range r.pubsub.Channel() {
		var change models.Change
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			r.logger.Warn("dropping malformed change message",
				zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		_ = r.hub.Publish(context.Background(), change)
	}
}

func (r *Redis) Publish(ctx context.Context, change models.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if err := r.client.Publish(ctx, ChannelName(change.OwnerUserID, change.Kind), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(owner string, kind models.Kind) (<-chan models.Change, func()) {
	return r.hub.Subscribe(owner, kind)
}

// Close stops the relay and ends local subscriptions. The Redis client is
// owned by the caller and stays open.
func (r *Redis) Close() error {
	var err error
	r.once.Do(func() {
		err = r.pubsub.Close()
		r.wg.Wait()
		_ = r.hub.Close()
	})
	return err
}

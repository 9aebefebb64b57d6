// ABOUTME: Redis-backed Locker shared by every process pointed at the same server
// ABOUTME: Locks expire after a TTL so a crashed holder cannot wedge its owner
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultTTL    = 10 * time.Minute
	DefaultPrefix = "leadsync:lock:"

	releaseTimeout = 5 * time.Second
)

type Redis struct {
	locker *redislock.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		locker: redislock.New(client),
		ttl:    ttl,
		prefix: DefaultPrefix,
		logger: logger,
	}
}

func (r *Redis) TryLock(ctx context.Context, key string) (func(), bool, error) {
	held, err := r.locker.Obtain(ctx, r.prefix+key, r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := held.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				r.logger.Warn("failed to release redis lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, true, nil
}

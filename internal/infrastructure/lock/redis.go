package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisLocker locks keys across instances with Redis SET NX leases.
type RedisLocker struct {
	client    *redis.Client
	locker    *redislock.Client
	opts      Options
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisLocker connects to Redis and returns a locker.
func NewRedisLocker(cfg RedisConfig, opts Options, logger *zap.Logger) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisLockerWithClient(client, opts, logger), nil
}

// NewRedisLockerWithClient creates a locker on an existing client.
func NewRedisLockerWithClient(client *redis.Client, opts Options, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client:    client,
		locker:    redislock.New(client),
		opts:      opts.withDefaults(),
		keyPrefix: "retailops:lock:",
		logger:    logger,
	}
}

// Acquire obtains a lease on key. The lease expires after opts.TTL even if
// the release function is never called.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	strategy := redislock.LimitRetry(
		redislock.ExponentialBackoff(l.opts.MinBackoff, l.opts.MaxBackoff),
		l.opts.Retries,
	)
	lease, err := l.locker.Obtain(ctx, l.keyPrefix+key, l.opts.TTL, &redislock.Options{
		RetryStrategy: strategy,
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, busy(key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("Failed to release lock",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}, nil
}

// Ping checks the Redis connection.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

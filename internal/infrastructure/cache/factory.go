// Package cache provides the keyed locks that serialize ingestion per source URL
// and reconciliation per connection.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LockerFactory builds the KeyLocker for the configured deployment
type LockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// LockerFactoryOption is a functional option for configuring the factory
type LockerFactoryOption func(*LockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether a local locker is used when Redis cannot be reached
func WithInMemoryFallback(allow bool) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockerFactory creates a new factory
func NewLockerFactory(cfg config.RedisConfig, opts ...LockerFactoryOption) *LockerFactory {
	f := &LockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a Redis locker when Redis is enabled and reachable, a local one otherwise.
// The returned closer releases the Redis client, if any.
func (f *LockerFactory) Create(ctx context.Context) (shared.KeyLocker, func() error, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using process-local locks")
		return NewLocalKeyLocker(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if !f.allowInMemoryFallback {
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		f.logger.Warn("Redis unreachable, falling back to process-local locks",
			zap.String("addr", f.redisConfig.Addr()),
			zap.Error(err))
		return NewLocalKeyLocker(), func() error { return nil }, nil
	}

	f.logger.Info("Using Redis locks", zap.String("addr", f.redisConfig.Addr()))
	return NewRedisKeyLocker(client, "", f.logger), client.Close, nil
}

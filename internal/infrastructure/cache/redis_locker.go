package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultLockPrefix   = "catalogsync:lock:"
	defaultRetryBackoff = 50 * time.Millisecond
)

// releaseScript deletes the lock only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisKeyLocker is a KeyLocker shared by every instance that uses the same Redis.
// A lock expires after its ttl even if the holder never releases it.
type RedisKeyLocker struct {
	client    redis.UniversalClient
	keyPrefix string
	retry     time.Duration
	logger    *zap.Logger
}

// NewRedisKeyLocker creates a locker on an existing client
func NewRedisKeyLocker(client redis.UniversalClient, keyPrefix string, logger *zap.Logger) *RedisKeyLocker {
	if keyPrefix == "" {
		keyPrefix = defaultLockPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisKeyLocker{
		client:    client,
		keyPrefix: keyPrefix,
		retry:     defaultRetryBackoff,
		logger:    logger,
	}
}

var _ shared.KeyLocker = (*RedisKeyLocker)(nil)

// Lock polls SET NX until the key is acquired or ctx is done
func (l *RedisKeyLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		return nil, errors.New("cache: lock ttl must be positive")
	}
	redisKey := l.keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *RedisKeyLocker) releaser(redisKey, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("Failed to release lock", zap.String("key", redisKey), zap.Error(err))
		}
	}
}

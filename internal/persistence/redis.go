package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/cassette-service/internal/config"
)

var errRedisDisabled = errors.New("redis client not configured")

// Redis holds the client backing the reconcile lease. A nil *Redis means the
// service runs without Redis.
type Redis struct {
	Client *redis.Client
}

// NewRedis returns nil when REDIS_ADDR is empty. An unreachable server is
// logged and the client is still returned; go-redis reconnects lazily.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not set; reconcile lease disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	r := &Redis{Client: client}
	if err := r.Ping(ctx); err != nil {
		logger.Warn("redis unreachable", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	}
	return r
}

// Locker returns nil when Redis is disabled.
func (r *Redis) Locker() *RedisLocker {
	if r == nil || r.Client == nil {
		return nil
	}
	return &RedisLocker{client: r.Client}
}

func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping is bounded by connectTimeout.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errRedisDisabled
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return r.Client.Ping(pingCtx).Err()
}

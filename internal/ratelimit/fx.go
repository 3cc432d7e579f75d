package ratelimit

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallops/dealdesk/internal/clock"
	"github.com/smallops/dealdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ratelimit",
	fx.Provide(NewLimiter),
)

// NewLimiter returns a redis-backed limiter when a redis address is
// configured, otherwise an in-process fallback.
func NewLimiter(lc fx.Lifecycle, cfg config.Config, clk clock.Clock, log *zap.Logger) Limiter {
	if cfg.RedisAddr == "" {
		log.Named("ratelimit").Info("redis not configured, using in-memory limiter")
		return NewMemoryLimiter(clk)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return NewTokenBucket(client)
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/config"
)

// Connect builds a client for cfg. An unreachable server is logged, not
// fatal: sessions fail per request until Redis is back.
func Connect(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("could not reach Redis", zap.String("addr", cfg.Address), zap.Error(err))
	} else {
		log.Info("connected to Redis", zap.String("addr", cfg.Address))
	}
	return client
}

func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}
	return nil
}

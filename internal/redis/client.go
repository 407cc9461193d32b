package redis

import (
	"context"
	"fmt"
	"net"

	"github.com/mossy-p/proctor-signaling/config"
	"github.com/redis/go-redis/v9"
)

// Connect opens a client and pings it. An unreachable store at boot is fatal
// to the caller.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewStore(client), nil
}

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedis подключается к Redis по URL вида redis://:password@host:6379/0.
// Делает несколько попыток, чтобы пережить одновременный старт контейнеров.
func NewRedis(ctx context.Context, rawURL string, attempts int, interval time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis: некорректный URL: %w", err)
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis: подключение прервано: %w", ctx.Err())
		case <-time.After(interval):
		}
	}

	return nil, fmt.Errorf("redis: не удалось подключиться: %w", lastErr)
}

package monitoring

import (
	"context"
	"time"

	"camsignal/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client redis.UniversalClient, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddCoordinatorCheck verifies the coordinator loop is still taking work.
func (h *HealthChecker) AddCoordinatorCheck(reader ports.PresenceReader, timeout time.Duration) {
	h.AddCheck("coordinator", func(ctx context.Context) (bool, error) {
		if _, err := reader.Stats(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

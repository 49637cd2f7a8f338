package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"locker-reservation-service/internal/ports"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "locker:pickup_failures:"

// RedisPickupGuard counts failed pickups per key in a fixed window. The first
// failure starts the window; the counter expires with it.
type RedisPickupGuard struct {
	rdb         redis.Cmdable
	maxFailures int64
	window      time.Duration
}

var _ ports.PickupGuard = (*RedisPickupGuard)(nil)

func NewRedisPickupGuard(rdb redis.Cmdable, maxFailures int, window time.Duration) *RedisPickupGuard {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisPickupGuard{rdb: rdb, maxFailures: int64(maxFailures), window: window}
}

func (g *RedisPickupGuard) Allow(ctx context.Context, key string) (bool, error) {
	n, err := g.rdb.Get(ctx, keyPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("pickup guard: read %q: %w", key, err)
	}
	return n < g.maxFailures, nil
}

func (g *RedisPickupGuard) RecordFailure(ctx context.Context, key string) error {
	k := keyPrefix + key

	n, err := g.rdb.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("pickup guard: incr %q: %w", key, err)
	}
	if n == 1 {
		if err := g.rdb.Expire(ctx, k, g.window).Err(); err != nil {
			return fmt.Errorf("pickup guard: expire %q: %w", key, err)
		}
	}
	return nil
}

func (g *RedisPickupGuard) Reset(ctx context.Context, key string) error {
	if err := g.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("pickup guard: reset %q: %w", key, err)
	}
	return nil
}

package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "classify:"

// RedisCache stores verdicts in Redis with a TTL, so eviction is handled by
// key expiry instead of process memory growth.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (bool, bool, error) {
	val, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("redis cache get: %w", err)
	}
	return val == "1", true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, verdict bool) error {
	val := "0"
	if verdict {
		val = "1"
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set: %w", err)
	}
	return nil
}

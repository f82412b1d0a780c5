package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps generated summaries keyed by submission id.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisCacheWithClient(client, ttl), nil
}

func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, prefix: "summary:", ttl: ttl}
}

func (c *RedisCache) key(id string) string {
	return c.prefix + id
}

// Get reports a miss as ok=false with a nil error.
func (c *RedisCache) Get(ctx context.Context, id string) (Output, bool, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Output{}, false, nil
	}
	if err != nil {
		return Output{}, false, fmt.Errorf("lookup summary: %w", err)
	}
	var out Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return Output{}, false, fmt.Errorf("unmarshal summary: %w", err)
	}
	return out, true, nil
}

func (c *RedisCache) Set(ctx context.Context, id string, out Output) error {
	out.Cached = false
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := c.client.Set(ctx, c.key(id), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

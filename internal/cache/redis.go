package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tourroute/internal/model"
)

// DefaultTTL is how long a computed route stays in Redis.
const DefaultTTL = 30 * time.Minute

// Redis stores routes as JSON strings under "route:<key>".
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to url (redis://...).
func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisClient(redis.NewClient(opt), ttl), nil
}

func NewRedisClient(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

func (c *Redis) Get(ctx context.Context, key string) (*model.OptimizedRoute, error) {
	b, err := c.rdb.Get(ctx, c.keyName(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r model.OptimizedRoute
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Redis) Set(ctx context.Context, key string, route *model.OptimizedRoute) error {
	b, err := json.Marshal(route)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.keyName(key), b, c.ttl).Err()
}

func (c *Redis) Close() error { return c.rdb.Close() }

func (c *Redis) keyName(key string) string { return "route:" + key }

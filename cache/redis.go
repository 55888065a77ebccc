package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/st-keller/jimmy-client/types"
)

// hashClient is the subset of redis.Cmdable the Redis store uses.
type hashClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Redis is a Store backed by one Redis hash, field = id, value = text.
type Redis struct {
	rdb    hashClient
	key    string
	closer func() error
}

// NewRedis wraps an existing client. The caller keeps ownership of rdb.
func NewRedis(rdb redis.Cmdable, key string) *Redis {
	return newRedis(rdb, key, nil)
}

func newRedis(rdb hashClient, key string, closer func() error) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{rdb: rdb, key: key, closer: closer}
}

// DialRedis connects to redisURL, pings it and returns a store that closes
// the connection on Close.
func DialRedis(ctx context.Context, redisURL, key string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedis(c, key, c.Close), nil
}

// Get implements Store. A missing field is a miss, not an error.
func (r *Redis) Get(ctx context.Context, id types.ItemID) (string, bool, error) {
	v, err := r.rdb.HGet(ctx, r.key, id.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Put implements Store.
func (r *Redis) Put(ctx context.Context, id types.ItemID, text string) error {
	return r.rdb.HSet(ctx, r.key, id.String(), text).Err()
}

// Close implements Store. It closes the connection only when DialRedis
// opened it.
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

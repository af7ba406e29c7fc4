package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis adapts a redis client to the KV and Locker capabilities.
type Redis struct {
	c *redis.Client
}

// NewRedis dials nothing; the connection is established lazily by the
// first command. Call Ping to verify connectivity at startup.
func NewRedis(addr, password string, db int) *Redis {
	return &Redis{c: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.c.Close()
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.c.Set(ctx, key, value, 0).Err()
}

// TryLock uses SET NX EX, the standard single-instance Redis lock.
func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.c.SetNX(ctx, key, "locked", ttl).Result()
}

var _ KV = (*Redis)(nil)
var _ Locker = (*Redis)(nil)

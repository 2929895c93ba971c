package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares window counters between processes (INCR + EXPIRE).
type Redis struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
}

func NewRedis(client *redis.Client, prefix string, max int, window time.Duration) *Redis {
	if prefix == "" {
		prefix = "board:rl:"
	}
	return &Redis{client: client, prefix: prefix, max: int64(max), window: window}
}

func (l *Redis) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	k, end := windowKey(l.prefix, key, now, l.window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}
	return result(incr.Val(), l.max, end.Sub(now)), nil
}

func (l *Redis) Reset(ctx context.Context, key string) error {
	k, _ := windowKey(l.prefix, key, time.Now().UTC(), l.window)
	return l.client.Del(ctx, k).Err()
}

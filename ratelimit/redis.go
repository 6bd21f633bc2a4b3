package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements the fixed window counter on Redis, for
// deployments where several processes gate the same identities. The counter
// key carries the window as its TTL, so a window that elapses resets the
// count without any cleanup pass.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter creates a Redis-based fixed window limiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "authgate:ratelimit:"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisLimiter) key(k string) string {
	return r.prefix + k
}

var allowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return count
`)

func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	result, err := allowScript.Run(ctx, r.client, []string{r.key(key)}, window.Milliseconds()).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis rate limit: allow check failed: %w", err)
	}

	count, ok := result.(int64)
	if !ok {
		return false, 0, fmt.Errorf("redis rate limit: unexpected result type")
	}

	if count > int64(limit) {
		return false, 0, nil
	}
	return true, limit - int(count), nil
}

func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis rate limit: reset failed: %w", err)
	}
	return nil
}

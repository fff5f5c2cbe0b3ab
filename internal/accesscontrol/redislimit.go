package accesscontrol

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is the distributed alternative to RateLimiter's
// in-process sync.Map, for deployments that front the same token set behind
// several daemon instances sharing one redis. Implements a fixed-window
// counter (INCR + EXPIRE), simpler than the in-process token bucket but
// sufficient to keep a quota consistent across processes.
type RedisRateLimiter struct {
	client *redis.Client
}

func NewRedisRateLimiter(addr string) *RedisRateLimiter {
	return &RedisRateLimiter{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Allow reports whether token may proceed under a quota-per-interval fixed
// window, keyed by token + the current window start so expiry is implicit.
func (r *RedisRateLimiter) Allow(ctx context.Context, token string, quota, intervalS uint32) (bool, error) {
	if intervalS == 0 {
		intervalS = 1
	}
	window := time.Now().Unix() / int64(intervalS)
	key := fmt.Sprintf("rustmailer:ratelimit:%s:%d", token, window)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		r.client.Expire(ctx, key, time.Duration(intervalS)*time.Second)
	}
	return count <= int64(quota), nil
}

func (r *RedisRateLimiter) Close() error {
	return r.client.Close()
}

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// rateLimitUserPrefix is the Redis key prefix for per-user limits.
	rateLimitUserPrefix = "ratelimit:user:"
	// rateLimitIPPrefix is the Redis key prefix for per-IP limits.
	rateLimitIPPrefix = "ratelimit:ip:"
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// fixedWindowScript counts requests in a fixed window. The counter's
// TTL is set on first increment; when the count exceeds the limit the
// remaining TTL is the retry-after hint.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local count = redis.call('INCR', key)
	if count == 1 then
		redis.call('EXPIRE', key, window)
	end

	if count > limit then
		local ttl = redis.call('TTL', key)
		return {0, 0, ttl}
	end

	return {1, limit - count, 0}
`)

// CheckUserRateLimit checks the fixed-window limit for a user on a
// named endpoint group.
func (c *Cache) CheckUserRateLimit(ctx context.Context, userID, group string, limit int, window time.Duration) (*RateLimitResult, error) {
	key := rateLimitUserPrefix + group + ":" + userID
	return c.checkRateLimit(ctx, key, limit, window)
}

// CheckIPRateLimit checks the fixed-window limit for a client IP.
// The IP is hashed so raw addresses are never stored.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip, group string, limit int, window time.Duration) (*RateLimitResult, error) {
	key := rateLimitIPPrefix + group + ":" + hashIP(ip)
	return c.checkRateLimit(ctx, key, limit, window)
}

func (c *Cache) checkRateLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := fixedWindowScript.Run(ctx, c.client,
		[]string{key},
		limit, int(window.Seconds()),
	).Int64Slice()

	if err != nil {
		// Fail open on Redis errors - allow the request
		return &RateLimitResult{Allowed: true, Remaining: int64(limit)}, nil
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Remaining:  result[1],
		RetryAfter: time.Duration(result[2]) * time.Second,
	}, nil
}

// hashIP creates a truncated SHA256 hash of an IP address.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}

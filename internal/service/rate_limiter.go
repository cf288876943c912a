package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// slidingWindowScript keeps one sorted-set member per accepted hit, scored in
// milliseconds. Returns {allowed, resetAtMillis}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

if redis.call('ZCARD', key) >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    if #oldest >= 2 then
        return {0, tonumber(oldest[2]) + window}
    end
    return {0, now + window}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('PEXPIRE', key, window + 1000)
return {1, now + window}
`)

const rateLimitKeyPrefix = "portal:ratelimit:"

// Limiter decides whether another hit on key fits in the window.
type Limiter interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, resetAt time.Time)
}

// RateLimiter is a Redis sliding-window limiter shared by every server
// instance.
type RateLimiter struct {
	client *redis.Client
	clock  Clock
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, clock: systemClock}
}

// CheckLimit denies when Redis cannot answer. Login and magic-link issuance
// are the only callers and both stay closed while the limiter is down.
func (rl *RateLimiter) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Time) {
	now := rl.clock()

	result, err := slidingWindowScript.Run(
		ctx,
		rl.client,
		[]string{rateLimitKeyPrefix + key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
	).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limit check failed, denying request")
		return false, now.Add(window)
	}
	if len(result) != 2 {
		log.Warn().Str("key", key).Msg("unexpected rate limit result, denying request")
		return false, now.Add(window)
	}

	return result[0] == 1, time.UnixMilli(result[1])
}

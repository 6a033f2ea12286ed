package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/minutely/consult-server/internal/config"
	apperrors "github.com/minutely/consult-server/internal/errors"
)

// rateLimitScript is a sliding window limiter over a sorted set of request
// timestamps (milliseconds). When progressive mode is on, the violations
// counter stored at KEYS[2] shrinks the limit and stretches the window, and
// every denial bumps that counter.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local violationsKey = KEYS[2]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local progressive = tonumber(ARGV[5])
local levelOneAt = tonumber(ARGV[6])
local levelTwoAt = tonumber(ARGV[7])
local violationTTL = tonumber(ARGV[8])

local level = 0
if progressive == 1 then
    local violations = tonumber(redis.call('GET', violationsKey) or '0')
    if violations >= levelTwoAt then
        level = 2
    elseif violations >= levelOneAt then
        level = 1
    end
    if level > 0 then
        limit = math.max(1, math.floor(limit / (2 ^ level)))
        window = window * (2 ^ level)
    end
end

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    if progressive == 1 then
        redis.call('INCR', violationsKey)
        redis.call('PEXPIRE', violationsKey, violationTTL)
    end
    return {0, 0, resetAt, level}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window + 1000)

local resetAt = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #oldest >= 2 then
    resetAt = tonumber(oldest[2]) + window
end

return {1, limit - count - 1, resetAt, level}
`)

// LimitPolicy describes one keyed quota.
type LimitPolicy struct {
	Limit  int
	Window time.Duration
	// Progressive enables the escalating violation tier.
	Progressive bool
	// FailOpen allows the request when Redis is unreachable. Financial
	// actions must leave this off.
	FailOpen bool
}

type LimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Level     int
}

// RetryAfter is the time until the oldest counted request leaves the window.
func (r LimitResult) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// RateLimiter provides Redis-backed rate limiting shared by all instances.
type RateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// CheckLimit records one request against key and reports whether it fits the policy.
// A store failure yields RATE_LIMITER_UNAVAILABLE unless the policy fails open.
func (rl *RateLimiter) CheckLimit(ctx context.Context, key string, policy LimitPolicy) (LimitResult, error) {
	now := rl.now()
	fullKey := config.RateLimitKeyPrefix + key

	progressive := 0
	if policy.Progressive {
		progressive = 1
	}

	result, err := rateLimitScript.Run(
		ctx,
		rl.client,
		[]string{fullKey, fullKey + config.ViolationsKeySuffix},
		now.UnixMilli(),
		policy.Window.Milliseconds(),
		policy.Limit,
		uuid.NewString(),
		progressive,
		config.ViolationLevelOneAt,
		config.ViolationLevelTwoAt,
		config.ViolationTTL.Milliseconds(),
	).Int64Slice()
	if err == nil && len(result) != 4 {
		err = fmt.Errorf("unexpected rate limit result length %d", len(result))
	}

	if err != nil {
		if policy.FailOpen {
			log.Warn().
				Err(err).
				Str("key", key).
				Msg("rate limit check failed, allowing request")
			return LimitResult{Allowed: true, Remaining: policy.Limit - 1, ResetAt: now.Add(policy.Window)}, nil
		}
		log.Error().
			Err(err).
			Str("key", key).
			Msg("rate limit check failed, denying request")
		return LimitResult{}, apperrors.RateLimiterUnavailable(err)
	}

	return LimitResult{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetAt:   time.UnixMilli(result[2]),
		Level:     int(result[3]),
	}, nil
}

// Allow checks the identifier:action quota and converts a denial into
// RATE_LIMIT_EXCEEDED carrying the retry delay in seconds.
func (rl *RateLimiter) Allow(ctx context.Context, identifier, action string, policy LimitPolicy) error {
	key := identifier + ":" + action
	res, err := rl.CheckLimit(ctx, key, policy)
	if err != nil {
		return err
	}
	if res.Allowed {
		return nil
	}

	retryAfter := int(math.Ceil(res.RetryAfter(rl.now()).Seconds()))
	log.Warn().
		Str("identifier", identifier).
		Str("action", action).
		Int("limitLevel", res.Level).
		Int("retryAfter", retryAfter).
		Msg("rate limit exceeded")

	return apperrors.RateLimitExceeded().WithDetails(map[string]int{
		"retry_after_seconds": retryAfter,
		"level":               res.Level,
	})
}

// Package ratelimit throttles how fast gated DDL can be pushed through the
// HTTP API. The budget is deliberately small: a human running migrations
// never hits it, a runaway script does.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ExecLimiter is a Redis-backed token bucket keyed by safety tier, so a
// burst of destructive statements exhausts its own budget without starving
// safe ones.
type ExecLimiter struct {
	client   *redis.Client
	capacity int
	refill   float64 // tokens per second
}

func NewExecLimiter(client *redis.Client, capacity int, refillPerSecond float64) *ExecLimiter {
	return &ExecLimiter{client: client, capacity: capacity, refill: refillPerSecond}
}

// Allow consumes one token from the bucket for the given tier.
func (l *ExecLimiter) Allow(ctx context.Context, tier string) (bool, error) {
	key := fmt.Sprintf("execlimit:%s", tier)
	now := time.Now().UnixMilli()
	res, err := bucketScript.Run(ctx, l.client, []string{key}, l.capacity, l.refill, now, time.Hour.Milliseconds()).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	allowed, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("rate limit: unexpected script result %v", res)
	}
	return allowed == 1, nil
}

var bucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2]) -- tokens per second
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(data[1])
local last = tonumber(data[2])
if tokens == nil then tokens = capacity end
if last == nil then last = now end

local delta = math.max(0, now - last)
tokens = math.min(capacity, tokens + delta / 1000 * refill)

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call('HMSET', key, 'tokens', tokens, 'last_ms', now)
if ttl > 0 then redis.call('PEXPIRE', key, ttl) end
return allowed
`)

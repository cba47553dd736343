package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "videotube:rl:"

// Fixed window counter: first hit starts the window
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local current = redis.call("INCR", key)
if current == 1 then
  redis.call("PEXPIRE", key, window_ms)
end

local ttl = redis.call("PTTL", key)
if ttl < 0 then
  ttl = window_ms
end

if current > limit then
  return {0, ttl}
end
return {1, ttl}
`)

// Limiter shared by every instance of the service
type Redis struct {
	client redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

func NewRedis(client redis.Scripter, limit int, window time.Duration, prefix string) (*Redis, error) {
	if limit <= 0 {
		return nil, errors.New("rate limit must be positive")
	}
	if window < time.Millisecond {
		return nil, errors.New("rate limit window must be at least 1ms")
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	return &Redis{client: client, limit: limit, window: window, prefix: prefix}, nil
}

func (l *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.limit, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("redis rate limit: unexpected response %v", res)
	}

	if res[0] == 1 {
		return true, 0, nil
	}
	return false, max(time.Duration(res[1])*time.Millisecond, 0), nil
}

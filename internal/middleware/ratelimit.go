package middleware

import (
	"math"     // round Retry-After up to whole seconds
	"net/http" // 429 response
	"strconv"  // header values
	"strings"  // key building
	"time"     // script clock and TTL

	"github.com/labstack/echo/v4"  // Echo middleware types
	"github.com/redis/go-redis/v9" // Redis client and Lua scripts
	"go.uber.org/zap"              // structured logging

	"github.com/iliyamo/venue-reservation/internal/config" // limiter settings
)

// tokenBucketScript refills the bucket stored at KEYS[1] by whole intervals
// and takes one token.  It returns {allowed, tokens_left, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if tokens == nil or last_refill == nil then
  tokens = capacity
  last_refill = now_ms
end

local elapsed = math.max(0, now_ms - last_refill)
local intervals = math.floor(elapsed / interval_ms)
if intervals > 0 then
  tokens = math.min(capacity, tokens + intervals * refill_tokens)
  last_refill = last_refill + intervals * interval_ms
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, tokens, retry_after_ms }
`)

// NewTokenBucket limits requests per key with a Redis token bucket.  Without
// Redis, or when Redis errors, requests pass through unthrottled.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	// Disabled or no Redis: install a no-op so routes need no special casing.
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c) // one bucket per caller (and route, by default)
			args := []any{
				time.Now().UnixMilli(),            // now_ms
				cfg.Capacity,                      // capacity
				cfg.RefillTokens,                  // refill_tokens
				cfg.RefillInterval.Milliseconds(), // interval_ms
				int64(cfg.TTL / time.Second),      // ttl_seconds
			}
			// The script runs atomically in Redis, so concurrent requests
			// for one key never both take the last token.
			vals, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key}, args...).Int64Slice()
			if err != nil || len(vals) != 3 {
				// Fail open: a Redis outage must not block bookings.
				log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

			// Advertise the quota on every response.
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if !allowed {
				// Wait until the next refill, in whole seconds.
				secs := int(math.Ceil(float64(retryMs) / 1000.0))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c) // token taken
		}
	}
}

// rateKey builds the Redis key for the configured strategy, e.g.
// "rl:ip:10.0.0.1:user:alice:route:POST /reservas".
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := clientKey(c)                          // "guest" when anonymous
	route := c.Request().Method + " " + c.Path() // route pattern, not the raw URL

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	default: // ip_user_route
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}

// passThrough is the disabled form of the Redis middlewares.
func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

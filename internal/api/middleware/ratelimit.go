package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"tutor-app-backend/utils"
)

// RateLimitConfig bounds how often a single client may hit an endpoint
// within a sliding window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// KeyFunc derives the counter key; defaults to the client IP.
	KeyFunc func(r *http.Request) string
}

// RateLimit enforces a sliding-window limit backed by a redis sorted set.
// A nil client disables limiting, so deployments without a rate redis run
// unthrottled rather than broken.
func RateLimit(client *redis.Client, config RateLimitConfig) Middleware {
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(r *http.Request) string {
			return "ratelimit:ip:" + utils.RealClientIP(r)
		}
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if client == nil {
				next(w, r)
				return
			}

			ctx := r.Context()
			now := time.Now()
			windowStart := now.Add(-config.Window)
			key := keyFunc(r) + ":" + r.URL.Path

			pipe := client.Pipeline()
			pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", windowStart.UnixMilli()))
			countCmd := pipe.ZCard(ctx, key)
			pipe.ZAdd(ctx, key, &redis.Z{
				Score:  float64(now.UnixMilli()),
				Member: fmt.Sprintf("%d", now.UnixNano()),
			})
			pipe.Expire(ctx, key, config.Window*2)

			if _, err := pipe.Exec(ctx); err != nil {
				// Redis trouble must not take the API down with it.
				next(w, r)
				return
			}

			count := countCmd.Val()
			remaining := config.Requests - int(count) - 1
			if remaining < 0 {
				remaining = 0
			}
			resetAt := now.Add(config.Window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if count >= int64(config.Requests) {
				w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"message":"rate limit exceeded"}`))
				return
			}

			next(w, r)
		}
	}
}

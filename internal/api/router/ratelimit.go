package router

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"tutor-app-backend/internal/api/middleware"
	"tutor-app-backend/internal/env"
)

var (
	rateClientOnce sync.Once
	rateClient     *redis.Client
)

// rateLimitClient returns the shared redis client for rate limiting, or nil
// when RATE_REDIS_URL is not configured.
func rateLimitClient() *redis.Client {
	rateClientOnce.Do(func() {
		addr := env.Get(env.RateRedisURL)
		if addr == "" {
			return
		}
		rateClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: env.Get(env.RateRedisPass),
		})
	})
	return rateClient
}

// writeRateLimit throttles the expensive write routes under a prefix
// registration: posting messages and invoking the AI tutor. Reads pass
// through untouched.
func writeRateLimit() middleware.Middleware {
	client := rateLimitClient()
	messageLimit := middleware.RateLimit(client, middleware.RateLimitConfig{
		Requests: 30,
		Window:   time.Minute,
	})
	// AI generation is far more expensive than a chat message.
	askLimit := middleware.RateLimit(client, middleware.RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
	})

	return func(next http.HandlerFunc) http.HandlerFunc {
		limitedMessages := messageLimit(next)
		limitedAsk := askLimit(next)

		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next(w, r)
				return
			}
			if strings.HasSuffix(r.URL.Path, "/ask") {
				limitedAsk(w, r)
				return
			}
			if strings.HasSuffix(r.URL.Path, "/messages") || strings.Contains(r.URL.Path, "/dms/") {
				limitedMessages(w, r)
				return
			}
			next(w, r)
		}
	}
}

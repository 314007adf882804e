package jwt

import (
	"time"

	"github.com/go-redis/redis/v8"

	"tutor-app-backend/internal/env"
)

// RedisClient stores refresh tokens. Nil when AUTH_REDIS_URL is not
// configured, in which case refresh tokens are disabled and clients
// re-authenticate when the access token expires.
var RedisClient *redis.Client

const RefreshTokenTTL = 24 * 30 * time.Hour

const AccessTokenTTL = 15 * time.Minute

const (
	RoleUser Role = iota
)

func init() {
	if addr := env.Get(env.AuthRedisURL); addr != "" {
		RedisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: env.Get(env.AuthRedisPass),
			DB:       0,
		})
	}
}

// roleSecret is resolved per call rather than at init so test binaries can
// set the environment in TestMain.
func roleSecret(role Role) (string, bool) {
	switch role {
	case RoleUser:
		secret := env.Get(env.UserSecretKey)
		return secret, secret != ""
	}
	return "", false
}

package env

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	Port              = "PORT"
	StorePath         = "STORE_PATH"
	UserSecretKey     = "USER_SECRET"
	AuthRedisURL      = "AUTH_REDIS_URL"
	AuthRedisPass     = "AUTH_REDIS_PASS"
	ChatRedisURL      = "CHAT_REDIS_URL"
	ChatRedisPass     = "CHAT_REDIS_PASS"
	PresenceRedisURL  = "PRESENCE_REDIS_URL"
	PresenceRedisPass = "PRESENCE_REDIS_PASS"
	RateRedisURL      = "RATE_REDIS_URL"
	RateRedisPass     = "RATE_REDIS_PASS"
	AIServiceURL      = "AI_SERVICE_URL"
	WebUrl            = "WEB_URL"
)

func init() {
	// .env is for local development; production sets the real environment.
	_ = godotenv.Load()
}

// Require panics when any of the given variables is unset. Called from main
// at startup rather than from package init so that test binaries can run
// without a full environment.
func Require(keys ...string) {
	for _, key := range keys {
		if os.Getenv(key) == "" {
			panic("env: required environment variable not set: " + key)
		}
	}
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}

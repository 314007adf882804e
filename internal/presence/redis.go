package presence

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	presenceKeyPrefix = "presence:"

	// PresenceTTL bounds how long a crashed instance's users stay "online".
	// The gateway refreshes keys from its ping loop.
	PresenceTTL = 90 * time.Second
)

// RedisTracker is the multi-instance backend: presence keys shared across
// processes, expiring on TTL instead of relying on a clean disconnect.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func presenceKey(userID string) string {
	return presenceKeyPrefix + userID
}

func (t *RedisTracker) MarkOnline(ctx context.Context, userID, connectionID string) error {
	return t.client.Set(ctx, presenceKey(userID), connectionID, PresenceTTL).Err()
}

func (t *RedisTracker) MarkOffline(ctx context.Context, userID string) error {
	return t.client.Del(ctx, presenceKey(userID)).Err()
}

func (t *RedisTracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	_, err := t.client.Get(ctx, presenceKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *RedisTracker) OnlineUsers(ctx context.Context) ([]string, error) {
	users := make([]string, 0)
	iter := t.client.Scan(ctx, 0, presenceKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		users = append(users, iter.Val()[len(presenceKeyPrefix):])
	}
	return users, iter.Err()
}

// Touch refreshes a user's TTL; called from the gateway's ping loop so
// long-lived connections do not expire.
func (t *RedisTracker) Touch(ctx context.Context, userID string) error {
	return t.client.Expire(ctx, presenceKey(userID), PresenceTTL).Err()
}

package presence

import "context"

// Tracker answers "who is reachable right now". The gateway marks users
// online when their connection registers and offline when it unregisters;
// there is no heartbeat at this layer, so liveness is connection-liveness.
//
// One connection per user: a new MarkOnline for a user who already has a
// connection overwrites the stored connection id. Multi-device presence is
// an open product question and has not been decided.
type Tracker interface {
	MarkOnline(ctx context.Context, userID, connectionID string) error
	MarkOffline(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	OnlineUsers(ctx context.Context) ([]string, error)
}

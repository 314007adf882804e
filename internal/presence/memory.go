package presence

import (
	"context"
	"sync"
)

// MemoryTracker is the single-instance backend: a process-local map, rebuilt
// empty on restart.
type MemoryTracker struct {
	mu          sync.RWMutex
	connections map[string]string // userID -> connectionID
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		connections: make(map[string]string),
	}
}

func (t *MemoryTracker) MarkOnline(ctx context.Context, userID, connectionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connections[userID] = connectionID
	return nil
}

func (t *MemoryTracker) MarkOffline(ctx context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.connections, userID)
	return nil
}

func (t *MemoryTracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.connections[userID]
	return ok, nil
}

func (t *MemoryTracker) OnlineUsers(ctx context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	users := make([]string, 0, len(t.connections))
	for userID := range t.connections {
		users = append(users, userID)
	}
	return users, nil
}

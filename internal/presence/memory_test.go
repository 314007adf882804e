package presence

import (
	"context"
	"sort"
	"testing"
)

func TestMemoryTrackerOnlineOffline(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	online, err := tracker.IsOnline(ctx, "u1")
	if err != nil {
		t.Fatalf("IsOnline: %v", err)
	}
	if online {
		t.Fatal("u1 reported online before MarkOnline")
	}

	if err := tracker.MarkOnline(ctx, "u1", "conn-1"); err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}
	online, _ = tracker.IsOnline(ctx, "u1")
	if !online {
		t.Fatal("u1 should be online")
	}

	if err := tracker.MarkOffline(ctx, "u1"); err != nil {
		t.Fatalf("MarkOffline: %v", err)
	}
	online, _ = tracker.IsOnline(ctx, "u1")
	if online {
		t.Fatal("u1 should be offline")
	}
}

// A second connection for the same user overwrites the first; the user stays
// online with the new connection id.
func TestMemoryTrackerSecondConnectionOverwrites(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	tracker.MarkOnline(ctx, "u1", "conn-1")
	tracker.MarkOnline(ctx, "u1", "conn-2")

	tracker.mu.RLock()
	conn := tracker.connections["u1"]
	tracker.mu.RUnlock()
	if conn != "conn-2" {
		t.Fatalf("expected conn-2 to win, got %s", conn)
	}

	users, err := tracker.OnlineUsers(ctx)
	if err != nil {
		t.Fatalf("OnlineUsers: %v", err)
	}
	if len(users) != 1 || users[0] != "u1" {
		t.Fatalf("expected exactly [u1], got %v", users)
	}
}

func TestMemoryTrackerOnlineUsers(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	tracker.MarkOnline(ctx, "u1", "c1")
	tracker.MarkOnline(ctx, "u2", "c2")
	tracker.MarkOnline(ctx, "u3", "c3")
	tracker.MarkOffline(ctx, "u2")

	users, err := tracker.OnlineUsers(ctx)
	if err != nil {
		t.Fatalf("OnlineUsers: %v", err)
	}
	sort.Strings(users)
	if len(users) != 2 || users[0] != "u1" || users[1] != "u3" {
		t.Fatalf("expected [u1 u3], got %v", users)
	}
}

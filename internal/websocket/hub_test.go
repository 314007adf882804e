package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"tutor-app-backend/internal/presence"
)

func newTestHub(t *testing.T, authorize Authorizer) (*Hub, *presence.MemoryTracker) {
	t.Helper()
	tracker := presence.NewMemoryTracker()
	hub := NewHub(tracker, authorize)
	go hub.Run()
	t.Cleanup(hub.cancel)
	return hub, tracker
}

func newTestClient(hub *Hub, userID string) *Client {
	return NewClient(hub, nil, userID, "user "+userID)
}

// waitForEvent reads frames from the client's send buffer until one matches
// the wanted event name, skipping unrelated traffic such as presence
// updates.
func waitForEvent(t *testing.T, c *Client, name string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				t.Fatalf("send channel closed while waiting for %s", name)
			}
			var event Event
			if err := json.Unmarshal(frame, &event); err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			if event.Event == name {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %s", name)
		}
	}
}

func expectNoEvent(t *testing.T, c *Client, name string) {
	t.Helper()
	timeout := time.After(200 * time.Millisecond)
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal(frame, &event); err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			if event.Event == name {
				t.Fatalf("received unexpected event %s", name)
			}
		case <-timeout:
			return
		}
	}
}

func waitForSubscribers(t *testing.T, hub *Hub, channel string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount(channel) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("channel %s never reached %d subscribers", channel, want)
}

func register(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.Register(c)
	waitForSubscribers(t, hub, UserChannel(c.UserID), 1)
}

func TestBroadcastReachesAllSubscribersInOrder(t *testing.T) {
	hub, _ := newTestHub(t, nil)

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	register(t, hub, alice)
	register(t, hub, bob)

	channel := RoomChannel("r1")
	hub.Subscribe(alice, channel)
	hub.Subscribe(bob, channel)
	waitForSubscribers(t, hub, channel, 2)

	for i := 0; i < 3; i++ {
		if err := hub.Broadcast(channel, EventRoomMessage, map[string]interface{}{"seq": i}); err != nil {
			t.Fatalf("Broadcast %d: %v", i, err)
		}
	}

	for _, c := range []*Client{alice, bob} {
		for i := 0; i < 3; i++ {
			event := waitForEvent(t, c, EventRoomMessage)
			var payload struct {
				Seq int `json:"seq"`
			}
			if err := json.Unmarshal(event.Data, &payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if payload.Seq != i {
				t.Fatalf("client %s: event %d arrived out of order (seq %d)", c.UserID, i, payload.Seq)
			}
		}
	}
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	hub, _ := newTestHub(t, nil)

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	register(t, hub, alice)
	register(t, hub, bob)

	channel := RoomChannel("r1")
	hub.Subscribe(alice, channel)
	hub.Subscribe(bob, channel)
	waitForSubscribers(t, hub, channel, 2)

	if err := hub.BroadcastExcept(channel, alice.ID, EventRoomCursor, map[string]int{"x": 10, "y": 20}); err != nil {
		t.Fatalf("BroadcastExcept: %v", err)
	}

	waitForEvent(t, bob, EventRoomCursor)
	expectNoEvent(t, alice, EventRoomCursor)
}

func TestNoBacklogForLateJoiners(t *testing.T) {
	hub, _ := newTestHub(t, nil)

	alice := newTestClient(hub, "alice")
	register(t, hub, alice)

	channel := RoomChannel("r1")
	hub.Subscribe(alice, channel)
	waitForSubscribers(t, hub, channel, 1)

	if err := hub.Broadcast(channel, EventRoomMessage, map[string]string{"message": "early"}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	waitForEvent(t, alice, EventRoomMessage)

	late := newTestClient(hub, "late")
	register(t, hub, late)
	hub.Subscribe(late, channel)
	waitForSubscribers(t, hub, channel, 2)

	expectNoEvent(t, late, EventRoomMessage)
}

func TestPresenceTransitionsBroadcastToEveryone(t *testing.T) {
	hub, tracker := newTestHub(t, nil)

	alice := newTestClient(hub, "alice")
	register(t, hub, alice)

	bob := newTestClient(hub, "bob")
	register(t, hub, bob)

	// Alice was already connected when bob registered, so she hears about it.
	event := waitForEvent(t, alice, EventPresenceUpdate)
	var payload PresencePayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		t.Fatalf("decode presence payload: %v", err)
	}
	// The first presence event alice sees is her own registration.
	if payload.UserID == "alice" {
		event = waitForEvent(t, alice, EventPresenceUpdate)
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			t.Fatalf("decode presence payload: %v", err)
		}
	}
	if payload.UserID != "bob" || !payload.Online {
		t.Fatalf("expected bob online, got %+v", payload)
	}

	online, _ := tracker.IsOnline(context.Background(), "bob")
	if !online {
		t.Fatal("tracker should report bob online")
	}

	hub.Unregister(bob)
	event = waitForEvent(t, alice, EventPresenceUpdate)
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		t.Fatalf("decode presence payload: %v", err)
	}
	if payload.UserID != "bob" || payload.Online {
		t.Fatalf("expected bob offline, got %+v", payload)
	}

	online, _ = tracker.IsOnline(context.Background(), "bob")
	if online {
		t.Fatal("tracker should report bob offline")
	}
}

func TestSubscribeDeniedByAuthorizer(t *testing.T) {
	authorize := func(ctx context.Context, userID, channel string) bool {
		return channel == UserChannel(userID)
	}
	hub, _ := newTestHub(t, authorize)

	alice := newTestClient(hub, "alice")
	register(t, hub, alice)

	channel := RoomChannel("private")
	hub.Subscribe(alice, channel)

	event := waitForEvent(t, alice, EventFailure)
	var payload FailurePayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		t.Fatalf("decode failure payload: %v", err)
	}
	if payload.Code != "forbidden" {
		t.Fatalf("expected forbidden failure, got %+v", payload)
	}
	if hub.SubscriberCount(channel) != 0 {
		t.Fatal("denied client was subscribed anyway")
	}
}

func TestMultipleChannelsPerConnection(t *testing.T) {
	hub, _ := newTestHub(t, nil)

	alice := newTestClient(hub, "alice")
	register(t, hub, alice)

	channels := []string{RoomChannel("r1"), GroupChannel("g1"), DMChannel("alice:bob")}
	for _, channel := range channels {
		hub.Subscribe(alice, channel)
		waitForSubscribers(t, hub, channel, 1)
	}

	for i, channel := range channels {
		event := fmt.Sprintf("event-%d", i)
		if err := hub.Broadcast(channel, event, nil); err != nil {
			t.Fatalf("Broadcast on %s: %v", channel, err)
		}
		got := waitForEvent(t, alice, event)
		if got.Channel != channel {
			t.Fatalf("expected channel %s, got %s", channel, got.Channel)
		}
	}
}

func TestStopClosesClientsFromRunLoop(t *testing.T) {
	hub := NewHub(presence.NewMemoryTracker(), nil)
	go hub.Run()

	alice := newTestClient(hub, "alice")
	register(t, hub, alice)
	hub.Subscribe(alice, RoomChannel("r1"))
	waitForSubscribers(t, hub, RoomChannel("r1"), 1)

	// Keep broadcasts in flight while the hub tears down; the send
	// channels must only be closed by the run loop, never under a
	// concurrent fan-out.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				hub.Broadcast(RoomChannel("r1"), EventRoomMessage, map[string]string{"message": "tick"})
			}
		}
	}()

	hub.Stop()
	close(stop)
	wg.Wait()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-alice.send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("send channel still open after Stop returned")
		}
	}
}

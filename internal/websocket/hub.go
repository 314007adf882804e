package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"tutor-app-backend/internal/presence"
)

// Authorizer decides whether a user may subscribe to a channel. Wired from
// main over the membership services; nil allows everything (tests).
type Authorizer func(ctx context.Context, userID, channel string) bool

type subscription struct {
	client  *Client
	channel string
}

type countRequest struct {
	channel string
	out     chan int
}

// Hub is the fan-out core. Every subscription change and every broadcast is
// applied by the single Run loop, so events published to a channel reach all
// of its current subscribers in publish order. No ordering holds across
// channels, and a subscriber that joins after an event was published never
// receives it; backlog comes from the persisted message history instead.
type Hub struct {
	clients  map[string]*Client
	channels map[string]map[string]*Client

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	broadcast   chan *BroadcastMessage
	counts      chan countRequest

	tracker   presence.Tracker
	authorize Authorizer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(tracker presence.Tracker, authorize Authorizer) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]*Client),
		channels:    make(map[string]map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		broadcast:   make(chan *BroadcastMessage, 64),
		counts:      make(chan countRequest),
		tracker:     tracker,
		authorize:   authorize,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeClients()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case sub := <-h.subscribe:
			h.subscribeClient(sub.client, sub.channel)

		case sub := <-h.unsubscribe:
			h.unsubscribeClient(sub.client, sub.channel)

		case message := <-h.broadcast:
			h.fanOut(message)

		case req := <-h.counts:
			req.out <- len(h.channels[req.channel])

		case <-ticker.C:
			h.touchPresence()
		}
	}
}

// Stop cancels the run loop and blocks until it has closed every client.
// Client maps and send channels belong to the run goroutine, so teardown
// happens there rather than here; Run must have been started.
func (h *Hub) Stop() {
	h.cancel()
	<-h.done
}

// closeClients runs on the run goroutine after cancellation, so no fan-out
// can race the channel closes.
func (h *Hub) closeClients() {
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		decConnections()
	}
	h.channels = make(map[string]map[string]*Client)
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Subscribe(client *Client, channel string) {
	select {
	case h.subscribe <- subscription{client: client, channel: channel}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	select {
	case h.unsubscribe <- subscription{client: client, channel: channel}:
	case <-h.ctx.Done():
	}
}

// Broadcast delivers an event to every current subscriber of the channel,
// sender included.
func (h *Hub) Broadcast(channel, event string, payload interface{}) error {
	return h.publish(channel, event, payload, "")
}

// BroadcastExcept delivers to every subscriber except the given connection.
// Used for ephemeral signals (cursor, scene edits) where the sender already
// holds the local state.
func (h *Hub) BroadcastExcept(channel, excludeConn, event string, payload interface{}) error {
	return h.publish(channel, event, payload, excludeConn)
}

func (h *Hub) publish(channel, event string, payload interface{}, excludeConn string) error {
	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("websocket broadcast: marshal payload: %w", err)
		}
		data = encoded
	}

	frame, err := json.Marshal(newEvent(event, channel, data))
	if err != nil {
		return fmt.Errorf("websocket broadcast: marshal event: %w", err)
	}

	select {
	case h.broadcast <- &BroadcastMessage{Channel: channel, Data: frame, ExcludeConn: excludeConn}:
		return nil
	case <-h.ctx.Done():
		return fmt.Errorf("websocket broadcast: hub stopped")
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clients[client.ID] = client
	incConnections()

	// Every connection listens on its own user channel from the start.
	h.addSubscription(client, UserChannel(client.UserID))

	if err := h.tracker.MarkOnline(h.ctx, client.UserID, client.ID); err != nil {
		log.Printf("websocket: mark online %s: %v", client.UserID, err)
	}
	h.notifyPresence(client.UserID, true)

	log.Printf("websocket: client %s registered (user %s)", client.ID, client.UserID)
}

func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for channel := range client.subscriptions() {
		h.removeSubscription(client, channel)
	}

	delete(h.clients, client.ID)
	close(client.send)
	decConnections()

	if err := h.tracker.MarkOffline(h.ctx, client.UserID); err != nil {
		log.Printf("websocket: mark offline %s: %v", client.UserID, err)
	}
	h.notifyPresence(client.UserID, false)

	log.Printf("websocket: client %s unregistered (user %s)", client.ID, client.UserID)
}

func (h *Hub) subscribeClient(client *Client, channel string) {
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if h.authorize != nil && !h.authorize(h.ctx, client.UserID, channel) {
		client.sendEvent(newEvent(EventFailure, channel, mustMarshal(FailurePayload{
			Code:    "forbidden",
			Message: "not allowed to join this channel",
		})))
		return
	}
	h.addSubscription(client, channel)
}

func (h *Hub) unsubscribeClient(client *Client, channel string) {
	h.removeSubscription(client, channel)
}

func (h *Hub) addSubscription(client *Client, channel string) {
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[string]*Client)
	}
	h.channels[channel][client.ID] = client
	client.trackSubscription(channel)
	setChannels(len(h.channels))
}

func (h *Hub) removeSubscription(client *Client, channel string) {
	subscribers, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(subscribers, client.ID)
	client.dropSubscription(channel)
	if len(subscribers) == 0 {
		delete(h.channels, channel)
	}
	setChannels(len(h.channels))
}

func (h *Hub) fanOut(message *BroadcastMessage) {
	subscribers, ok := h.channels[message.Channel]
	if !ok {
		return
	}

	delivered := 0
	for _, client := range subscribers {
		if message.ExcludeConn != "" && client.ID == message.ExcludeConn {
			continue
		}
		select {
		case client.send <- message.Data:
			delivered++
		default:
			// A client that cannot keep up is cut loose rather than receive
			// a gap in the channel's event order.
			incDropped()
			h.unregisterClient(client)
		}
	}
	if delivered > 0 {
		addDelivered(delivered)
	}
}

// notifyPresence fans a presence transition out to every connected client.
func (h *Hub) notifyPresence(userID string, online bool) {
	frame, err := json.Marshal(newEvent(EventPresenceUpdate, UserChannel(userID), mustMarshal(PresencePayload{
		UserID: userID,
		Online: online,
	})))
	if err != nil {
		log.Printf("websocket: marshal presence event: %v", err)
		return
	}

	for _, client := range h.clients {
		select {
		case client.send <- frame:
		default:
			incDropped()
		}
	}
}

// touchPresence refreshes TTL-based presence backends so long-lived
// connections do not expire between heartbeats.
func (h *Hub) touchPresence() {
	toucher, ok := h.tracker.(interface {
		Touch(ctx context.Context, userID string) error
	})
	if !ok {
		return
	}
	for _, client := range h.clients {
		if err := toucher.Touch(h.ctx, client.UserID); err != nil {
			log.Printf("websocket: touch presence %s: %v", client.UserID, err)
		}
	}
}

// SubscriberCount reports how many connections currently hold the channel.
// The count goes through the run loop so it never races a subscription
// change.
func (h *Hub) SubscriberCount(channel string) int {
	out := make(chan int, 1)
	select {
	case h.counts <- countRequest{channel: channel, out: out}:
	case <-h.ctx.Done():
		return 0
	}
	return <-out
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

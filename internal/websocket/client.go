package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512 * 1024 // cursor and scene payloads can be chunky
)

// ClientEventHandler receives inbound events the gateway does not handle
// itself (join/leave/ping/cursor/scene are consumed by the read pump).
type ClientEventHandler interface {
	HandleEvent(client *Client, event *Event) error
}

type Client struct {
	ID          string
	UserID      string
	DisplayName string

	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu       sync.RWMutex
	channels map[string]bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, displayName string) *Client {
	return &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		DisplayName: displayName,
		conn:        conn,
		send:        make(chan []byte, 256),
		hub:         hub,
		channels:    make(map[string]bool),
	}
}

func (c *Client) trackSubscription(channel string) {
	c.mu.Lock()
	c.channels[channel] = true
	c.mu.Unlock()
}

func (c *Client) dropSubscription(channel string) {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
}

func (c *Client) subscriptions() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool, len(c.channels))
	for channel := range c.channels {
		out[channel] = true
	}
	return out
}

func (c *Client) IsSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// ReadPump consumes inbound frames until the connection drops. Channel
// joins are explicit: the gateway never auto-subscribes a connection based
// on store membership.
func (c *Client) ReadPump(handler ClientEventHandler) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var event Event
		if err := c.conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("websocket: read error for client %s: %v", c.ID, err)
			}
			return
		}

		switch event.Event {
		case EventPing:
			c.sendEvent(newEvent(EventPong, "", nil))

		case EventPong:
			// handled by the pong handler above

		case EventChannelJoin:
			if event.Channel != "" {
				c.hub.Subscribe(c, event.Channel)
			}

		case EventChannelLeave:
			if event.Channel != "" {
				c.hub.Unsubscribe(c, event.Channel)
			}

		case EventRoomCursor, EventRoomSceneUpdate:
			// Ephemeral live signals: relay to everyone else on the channel,
			// never persisted, never echoed back to the sender.
			if event.Channel == "" || !c.IsSubscribed(event.Channel) {
				continue
			}
			payload := c.stampSender(event.Data)
			if err := c.hub.BroadcastExcept(event.Channel, c.ID, event.Event, payload); err != nil {
				log.Printf("websocket: relay %s: %v", event.Event, err)
			}

		default:
			if handler == nil {
				continue
			}
			if err := handler.HandleEvent(c, &event); err != nil {
				log.Printf("websocket: handle %s from %s: %v", event.Event, c.UserID, err)
				c.SendFailure(event.Channel, "bad_event", err.Error())
			}
		}
	}
}

// WritePump flushes the send buffer and keeps the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// stampSender injects the sender's identity into a relayed payload so peers
// know whose cursor or edit it is without trusting the client to say so.
func (c *Client) stampSender(data json.RawMessage) json.RawMessage {
	payload := map[string]interface{}{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return data
		}
	}
	payload["userId"] = c.UserID
	payload["userName"] = c.DisplayName
	stamped, err := json.Marshal(payload)
	if err != nil {
		return data
	}
	return stamped
}

func (c *Client) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket: marshal event for client %s: %v", c.ID, err)
		return
	}
	select {
	case c.send <- data:
	default:
		incDropped()
	}
}

func (c *Client) SendFailure(channel, code, message string) {
	c.sendEvent(newEvent(EventFailure, channel, mustMarshal(FailurePayload{
		Code:    code,
		Message: message,
	})))
}

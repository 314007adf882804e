package websocket

import (
	"encoding/json"
	"time"
)

// Wire event names. Outbound names follow the channel contract; inbound
// names are the control events a client may send.
const (
	// Outbound
	EventPresenceUpdate  = "presence:update"
	EventRoomMessage     = "room:message"
	EventRoomCursor      = "room:cursor"
	EventRoomSceneUpdate = "room:scene-update"
	EventPermUpdate      = "perm:update"
	EventControlUpdate   = "control:update"
	EventAIBlocks        = "ai:blocks"
	EventGroupMessage    = "group:message"
	EventDMNew           = "dm:new"
	EventFailure         = "failure"

	// Inbound
	EventChannelJoin  = "channel:join"
	EventChannelLeave = "channel:leave"
	EventPing         = "ping"
	EventPong         = "pong"
)

// Event is the envelope for every frame in both directions.
type Event struct {
	Event     string          `json:"event"`
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// PresencePayload is broadcast to every connected client on each online or
// offline transition.
type PresencePayload struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// FailurePayload converts a collaborator error into an event on the channel
// the request came from instead of tearing the connection down.
type FailurePayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BroadcastMessage targets one logical channel. ExcludeConn is empty for
// broadcast-to-all and carries the sender's connection id for
// broadcast-to-others.
type BroadcastMessage struct {
	Channel     string
	Data        []byte
	ExcludeConn string
}

// Channel key constructors. A connection may hold several subscriptions at
// once; every connection is subscribed to its own user channel at register.
func UserChannel(userID string) string   { return "user:" + userID }
func RoomChannel(roomID string) string   { return "room:" + roomID }
func GroupChannel(groupID string) string { return "group:" + groupID }
func DMChannel(pairKey string) string    { return "dm:" + pairKey }

func newEvent(name, channel string, data json.RawMessage) Event {
	return Event{
		Event:     name,
		Channel:   channel,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// bridgeChannel is the single redis pub/sub channel all instances share.
// Logical channel routing happens in each instance's hub, not in redis.
const bridgeChannel = "gateway:events"

const bridgePublishTimeout = 5 * time.Second

type bridgeFrame struct {
	Origin  string          `json:"origin"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// publishRemote hands the event to other instances. A single-instance
// deployment has no bridge and this is a no-op.
func (h *Handler) publishRemote(channel, event string, payload interface{}) {
	if h.bridge == nil {
		return
	}

	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			log.Printf("websocket bridge: marshal payload: %v", err)
			return
		}
		data = encoded
	}

	frame, err := json.Marshal(bridgeFrame{
		Origin:  h.instanceID,
		Channel: channel,
		Event:   event,
		Data:    data,
	})
	if err != nil {
		log.Printf("websocket bridge: marshal frame: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), bridgePublishTimeout)
	defer cancel()
	if err := h.bridge.Publish(ctx, bridgeChannel, frame).Err(); err != nil {
		log.Printf("websocket bridge: publish: %v", err)
	}
}

// runBridge subscribes to the shared channel and re-broadcasts remote events
// into the local hub, skipping frames this instance published itself.
func (h *Handler) runBridge() {
	if h.bridge == nil {
		return
	}

	go func() {
		subscriber := h.bridge.Subscribe(context.Background(), bridgeChannel)
		defer subscriber.Close()

		log.Printf("websocket bridge: subscribed as instance %s", h.instanceID)
		for msg := range subscriber.Channel() {
			var frame bridgeFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				log.Printf("websocket bridge: decode frame: %v", err)
				continue
			}
			if frame.Origin == h.instanceID {
				continue
			}
			if err := h.hub.Broadcast(frame.Channel, frame.Event, frame.Data); err != nil {
				log.Printf("websocket bridge: local rebroadcast: %v", err)
			}
		}
	}()
}

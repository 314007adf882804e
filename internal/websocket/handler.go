package websocket

import (
	"log"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tutor-app-backend/internal/env"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		web := env.Get(env.WebUrl)
		if web == "" {
			return true
		}
		return r.Header.Get("Origin") == web
	},
}

// Handler owns the hub and the optional cross-instance bridge. Constructed
// exactly once per process, at startup (see InitDefault), never lazily on
// first request.
type Handler struct {
	hub        *Hub
	bridge     *redis.Client
	instanceID string
	handler    ClientEventHandler
}

func NewHandler(hub *Hub) *Handler {
	h := &Handler{
		hub:        hub,
		instanceID: uuid.NewString(),
	}
	if addr := env.Get(env.ChatRedisURL); addr != "" {
		h.bridge = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: env.Get(env.ChatRedisPass),
			DB:       0,
		})
	}
	return h
}

// SetEventHandler installs the handler for inbound events the read pump does
// not consume itself.
func (h *Handler) SetEventHandler(handler ClientEventHandler) {
	h.handler = handler
}

func (h *Handler) Hub() *Hub {
	return h.hub
}

// Broadcast fans an event out to every local subscriber of the channel and,
// when the bridge is configured, to the other instances' subscribers too.
func (h *Handler) Broadcast(channel, event string, payload interface{}) {
	if err := h.hub.Broadcast(channel, event, payload); err != nil {
		log.Printf("websocket: broadcast %s on %s: %v", event, channel, err)
		return
	}
	h.publishRemote(channel, event, payload)
}

// BroadcastExcept is Broadcast minus one local connection. Remote instances
// still deliver to all of their subscribers; the excluded connection can
// only live on this instance.
func (h *Handler) BroadcastExcept(channel, excludeConn, event string, payload interface{}) {
	if err := h.hub.BroadcastExcept(channel, excludeConn, event, payload); err != nil {
		log.Printf("websocket: broadcast %s on %s: %v", event, channel, err)
		return
	}
	h.publishRemote(channel, event, payload)
}

// ServeConnection upgrades the request and registers the resulting client.
// The caller has already authenticated the user.
func (h *Handler) ServeConnection(w http.ResponseWriter, r *http.Request, userID, displayName string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Printf("websocket: upgrade failed for user %s: %v", userID, err)
		return
	}

	client := NewClient(h.hub, conn, userID, displayName)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handler)
}

// The gateway singleton. Process-wide because fan-out state (subscriptions,
// the bridge origin id) must be shared by every request handler.
var defaultHandler *Handler

// InitDefault installs the process-wide gateway. Called once from main
// before the server accepts requests; a second call is a programming error.
func InitDefault(h *Handler) {
	if defaultHandler != nil {
		panic("websocket: gateway already initialised")
	}
	defaultHandler = h
	h.runBridge()
}

// Default returns the process-wide gateway.
func Default() *Handler {
	if defaultHandler == nil {
		panic("websocket: gateway not initialised")
	}
	return defaultHandler
}

// StopDefault tears the gateway down; used by tests and graceful shutdown.
func StopDefault() {
	if defaultHandler == nil {
		return
	}
	defaultHandler.hub.Stop()
	defaultHandler = nil
}

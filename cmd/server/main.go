package main

import (
	"context"
	"log"
	"strings"

	"github.com/go-redis/redis/v8"

	"tutor-app-backend/internal/api"
	"tutor-app-backend/internal/api/router"
	"tutor-app-backend/internal/env"
	"tutor-app-backend/internal/presence"
	"tutor-app-backend/internal/queue"
	dmsvc "tutor-app-backend/internal/service/dm"
	groupsvc "tutor-app-backend/internal/service/group"
	roomsvc "tutor-app-backend/internal/service/room"
	"tutor-app-backend/internal/store"
	"tutor-app-backend/internal/websocket"
)

const apiPrefix = "/api/v1"

func main() {
	env.Require(env.UserSecretKey)

	queueManager := queue.NewRequestQueueManager(64, 10)

	docStore, err := store.New(env.GetOrDefault(env.StorePath, "data/store.json"))
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer docStore.Close()

	hub := websocket.NewHub(newPresenceTracker(), channelAuthorizer(docStore))
	go hub.Run()

	gateway := websocket.NewHandler(hub)
	websocket.InitDefault(gateway)
	defer websocket.StopDefault()

	listenAddr := ":" + env.GetOrDefault(env.Port, "8080")

	server := api.NewAPIServer(
		listenAddr,
		queueManager,
		docStore,
		gateway,
		router.UtilsRoutes(apiPrefix),
		router.AuthRoutes(apiPrefix),
		router.RoomRoutes(apiPrefix),
		router.GroupRoutes(apiPrefix),
		router.DMRoutes(apiPrefix),
		router.WebsocketRoutes(apiPrefix),
	)

	server.Run()
}

// newPresenceTracker picks redis-backed presence when configured so that
// online state survives across instances, and an in-process map otherwise.
func newPresenceTracker() presence.Tracker {
	addr := env.Get(env.PresenceRedisURL)
	if addr == "" {
		return presence.NewMemoryTracker()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: env.Get(env.PresenceRedisPass),
	})
	return presence.NewRedisTracker(client)
}

// channelAuthorizer gates explicit channel joins. Own user channel is free,
// rooms and groups require membership, dm channels require being one side
// of the pair.
func channelAuthorizer(docStore store.DocumentStore) websocket.Authorizer {
	roomService := roomsvc.New(docStore, nil)
	groupService := groupsvc.New(docStore)

	return func(ctx context.Context, userID, channel string) bool {
		kind, key, ok := strings.Cut(channel, ":")
		if !ok || key == "" {
			return false
		}

		switch kind {
		case "user":
			return key == userID
		case "room":
			member, err := roomService.IsMember(ctx, key, userID)
			return err == nil && member
		case "group":
			member, err := groupService.IsMember(ctx, key, userID)
			return err == nil && member
		case "dm":
			return dmsvc.CanAccessConversation(key, userID)
		default:
			return false
		}
	}
}

package endpoints

import (
	"context"
	"net/http"
	"testing"

	"tutor-app-backend/internal/ai"
	"tutor-app-backend/internal/api"
	"tutor-app-backend/internal/api/middleware"
	"tutor-app-backend/internal/dto"
	roomsvc "tutor-app-backend/internal/service/room"
)

type fakeGenerator struct {
	blocks []ai.Block
}

func (g *fakeGenerator) GenerateBlocks(ctx context.Context, prompt ai.Prompt) ([]ai.Block, error) {
	return g.blocks, nil
}

func setupRoomHandler(t *testing.T, docStore *memoryStore) http.Handler {
	t.Helper()

	server := newTestServer(t, docStore)
	service := roomsvc.New(docStore, &fakeGenerator{blocks: []ai.Block{{Type: "text", Content: "start with the definition"}}})
	roomEndpoints := NewRoomEndpoints(service, nil, "/api/v1")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/rooms", server.MakeHTTPHandleFunc(roomEndpoints.Rooms, middleware.ValidateUserJWT))
	mux.HandleFunc("/api/v1/rooms/join", server.MakeHTTPHandleFunc(roomEndpoints.JoinRoom, middleware.ValidateUserJWT))
	mux.HandleFunc("/api/v1/rooms/", server.MakeHTTPHandleFunc(roomEndpoints.RoomResources, middleware.ValidateUserJWT))
	return mux
}

func authHeader(t *testing.T, userID string) map[string]string {
	t.Helper()
	return map[string]string{"Authorization": bearerToken(t, testUser(userID))}
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	setupTestJWT(t)
	handler := setupRoomHandler(t, newMemoryStore(testUser("owner"), testUser("alice")))

	created := doJSONRequest[dto.RoomStateResponse](t, handler, http.MethodPost, "/api/v1/rooms",
		map[string]interface{}{"subject": "Algebra"}, authHeader(t, "owner"), http.StatusCreated)
	if !created.Permissions.AskAiEnabled {
		t.Fatal("askAiEnabled should default to true")
	}
	if created.Control.ControllerUserID != nil {
		t.Fatal("control should default to released")
	}

	joined := doJSONRequest[dto.RoomResponse](t, handler, http.MethodPost, "/api/v1/rooms/join",
		map[string]interface{}{"inviteCode": created.Room.InviteCode}, authHeader(t, "alice"), http.StatusOK)
	if len(joined.MemberUserIDs) != 2 {
		t.Fatalf("members = %v, want owner and alice", joined.MemberUserIDs)
	}

	roomPath := "/api/v1/rooms/" + created.Room.RoomID

	posted := doJSONRequest[dto.MessageResponse](t, handler, http.MethodPost, roomPath+"/messages",
		map[string]interface{}{"message": "hello room"}, authHeader(t, "alice"), http.StatusCreated)
	if posted.RoomID != created.Room.RoomID {
		t.Fatalf("posted message roomId = %q, want %q", posted.RoomID, created.Room.RoomID)
	}

	messages := doJSONRequest[[]dto.MessageResponse](t, handler, http.MethodGet, roomPath+"/messages",
		nil, authHeader(t, "owner"), http.StatusOK)
	if len(messages) != 1 || messages[0].Message != "hello room" {
		t.Fatalf("messages = %v, want the posted message", messages)
	}
	if messages[0].RoomID != created.Room.RoomID {
		t.Fatalf("message roomId = %q, want %q", messages[0].RoomID, created.Room.RoomID)
	}

	members := doJSONRequest[[]dto.UserResponse](t, handler, http.MethodGet, roomPath+"/members",
		nil, authHeader(t, "alice"), http.StatusOK)
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
}

func TestRoomAccessForbiddenForNonMembers(t *testing.T) {
	setupTestJWT(t)
	handler := setupRoomHandler(t, newMemoryStore(testUser("owner"), testUser("stranger")))

	created := doJSONRequest[dto.RoomStateResponse](t, handler, http.MethodPost, "/api/v1/rooms",
		map[string]interface{}{"subject": "Algebra"}, authHeader(t, "owner"), http.StatusCreated)

	status := doRawRequest(t, handler, http.MethodGet, "/api/v1/rooms/"+created.Room.RoomID+"/messages",
		authHeader(t, "stranger"))
	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", status)
	}
}

func TestAskAIDeniedWithNoControlPayload(t *testing.T) {
	setupTestJWT(t)
	docStore := newMemoryStore(testUser("owner"), testUser("mara"), testUser("xavier"))
	handler := setupRoomHandler(t, docStore)

	created := doJSONRequest[dto.RoomStateResponse](t, handler, http.MethodPost, "/api/v1/rooms",
		map[string]interface{}{"subject": "Calculus"}, authHeader(t, "owner"), http.StatusCreated)
	roomPath := "/api/v1/rooms/" + created.Room.RoomID

	for _, id := range []string{"mara", "xavier"} {
		doJSONRequest[dto.RoomResponse](t, handler, http.MethodPost, "/api/v1/rooms/join",
			map[string]interface{}{"inviteCode": created.Room.InviteCode}, authHeader(t, id), http.StatusOK)
	}

	// Owner hands exclusive control to mara.
	control := doJSONRequest[dto.ControlResponse](t, handler, http.MethodPut, roomPath+"/control",
		map[string]interface{}{"controllerUserId": "mara"}, authHeader(t, "owner"), http.StatusOK)
	if control.ControllerUserID == nil || *control.ControllerUserID != "mara" {
		t.Fatalf("controller = %v, want mara", control.ControllerUserID)
	}

	// Xavier is locked out, and the error says who holds the room.
	errResp := doJSONRequest[api.ApiError](t, handler, http.MethodPost, roomPath+"/ask",
		map[string]interface{}{"question": "what is a limit?"}, authHeader(t, "xavier"), http.StatusForbidden)
	if errResp.Code != "NO_CONTROL" {
		t.Fatalf("code = %q, want NO_CONTROL", errResp.Code)
	}
	if errResp.Details["controllerUserId"] != "mara" {
		t.Fatalf("controllerUserId = %v, want mara", errResp.Details["controllerUserId"])
	}

	// Mara, holding control, may ask.
	askResp := doJSONRequest[dto.AskAIResponse](t, handler, http.MethodPost, roomPath+"/ask",
		map[string]interface{}{"question": "what is a limit?"}, authHeader(t, "mara"), http.StatusOK)
	if len(askResp.Blocks) != 1 {
		t.Fatalf("blocks = %v, want generated content", askResp.Blocks)
	}

	// Releasing control restores the default policy for everyone.
	doJSONRequest[dto.ControlResponse](t, handler, http.MethodPut, roomPath+"/control",
		map[string]interface{}{"controllerUserId": nil}, authHeader(t, "owner"), http.StatusOK)
	doJSONRequest[dto.AskAIResponse](t, handler, http.MethodPost, roomPath+"/ask",
		map[string]interface{}{"question": "ok now?"}, authHeader(t, "xavier"), http.StatusOK)
}

func TestUpdatePermissionsOwnerOnlyOverHTTP(t *testing.T) {
	setupTestJWT(t)
	handler := setupRoomHandler(t, newMemoryStore(testUser("owner"), testUser("alice")))

	created := doJSONRequest[dto.RoomStateResponse](t, handler, http.MethodPost, "/api/v1/rooms",
		map[string]interface{}{"subject": "Algebra"}, authHeader(t, "owner"), http.StatusCreated)
	roomPath := "/api/v1/rooms/" + created.Room.RoomID

	doJSONRequest[dto.RoomResponse](t, handler, http.MethodPost, "/api/v1/rooms/join",
		map[string]interface{}{"inviteCode": created.Room.InviteCode}, authHeader(t, "alice"), http.StatusOK)

	doJSONRequest[api.ApiError](t, handler, http.MethodPatch, roomPath+"/permissions",
		map[string]interface{}{"askAiEnabled": false}, authHeader(t, "alice"), http.StatusForbidden)

	perms := doJSONRequest[dto.PermissionsResponse](t, handler, http.MethodPatch, roomPath+"/permissions",
		map[string]interface{}{"grantUserId": "alice"}, authHeader(t, "owner"), http.StatusOK)
	if len(perms.MemberAskAi) != 1 || perms.MemberAskAi[0] != "alice" {
		t.Fatalf("memberAskAi = %v, want [alice]", perms.MemberAskAi)
	}
}

package endpoints

import (
	"net/http"
	"testing"

	"tutor-app-backend/internal/api"
	"tutor-app-backend/internal/api/middleware"
	"tutor-app-backend/internal/dto"
	groupsvc "tutor-app-backend/internal/service/group"
)

func setupGroupHandler(t *testing.T, docStore *memoryStore) http.Handler {
	t.Helper()

	server := newTestServer(t, docStore)
	service := groupsvc.New(docStore)
	groupEndpoints := NewGroupEndpoints(service, nil, "/api/v1")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/groups", server.MakeHTTPHandleFunc(groupEndpoints.Groups, middleware.ValidateUserJWT))
	mux.HandleFunc("/api/v1/groups/", server.MakeHTTPHandleFunc(groupEndpoints.GroupResources, middleware.ValidateUserJWT))
	return mux
}

func TestGroupLifecycleOverHTTP(t *testing.T) {
	setupTestJWT(t)
	handler := setupGroupHandler(t, newMemoryStore(testUser("owner"), testUser("alice")))

	created := doJSONRequest[dto.GroupResponse](t, handler, http.MethodPost, "/api/v1/groups",
		map[string]interface{}{"name": "Physics crew"}, authHeader(t, "owner"), http.StatusCreated)

	groupPath := "/api/v1/groups/" + created.GroupID

	updated := doJSONRequest[dto.GroupResponse](t, handler, http.MethodPost, groupPath+"/members",
		map[string]interface{}{"userId": "alice"}, authHeader(t, "owner"), http.StatusOK)
	if len(updated.MemberUserIDs) != 2 {
		t.Fatalf("members = %v, want owner and alice", updated.MemberUserIDs)
	}

	posted := doJSONRequest[dto.GroupMessageResponse](t, handler, http.MethodPost, groupPath+"/messages",
		map[string]interface{}{"message": "study at 6?"}, authHeader(t, "alice"), http.StatusCreated)
	if posted.GroupID != created.GroupID {
		t.Fatalf("posted message groupId = %q, want %q", posted.GroupID, created.GroupID)
	}

	groups := doJSONRequest[[]dto.GroupResponse](t, handler, http.MethodGet, "/api/v1/groups",
		nil, authHeader(t, "alice"), http.StatusOK)
	if len(groups) != 1 || groups[0].GroupID != created.GroupID {
		t.Fatalf("groups = %v, want the created group", groups)
	}

	messages := doJSONRequest[[]dto.GroupMessageResponse](t, handler, http.MethodGet, groupPath+"/messages",
		nil, authHeader(t, "owner"), http.StatusOK)
	if len(messages) != 1 || messages[0].Message != "study at 6?" {
		t.Fatalf("messages = %v, want the posted message", messages)
	}
	if messages[0].GroupID != created.GroupID {
		t.Fatalf("message groupId = %q, want %q", messages[0].GroupID, created.GroupID)
	}
}

func TestCreateGroupValidatesName(t *testing.T) {
	setupTestJWT(t)
	handler := setupGroupHandler(t, newMemoryStore(testUser("owner")))

	doJSONRequest[api.ApiError](t, handler, http.MethodPost, "/api/v1/groups",
		map[string]interface{}{"name": "ab"}, authHeader(t, "owner"), http.StatusBadRequest)
}

func TestGroupMemberManagementAuthorization(t *testing.T) {
	setupTestJWT(t)
	handler := setupGroupHandler(t, newMemoryStore(testUser("owner"), testUser("alice"), testUser("bob")))

	created := doJSONRequest[dto.GroupResponse](t, handler, http.MethodPost, "/api/v1/groups",
		map[string]interface{}{"name": "Physics crew"}, authHeader(t, "owner"), http.StatusCreated)
	groupPath := "/api/v1/groups/" + created.GroupID

	doJSONRequest[dto.GroupResponse](t, handler, http.MethodPost, groupPath+"/members",
		map[string]interface{}{"userId": "alice"}, authHeader(t, "owner"), http.StatusOK)

	// Non-owner cannot add members.
	doJSONRequest[api.ApiError](t, handler, http.MethodPost, groupPath+"/members",
		map[string]interface{}{"userId": "bob"}, authHeader(t, "alice"), http.StatusForbidden)

	// A member may remove themselves.
	left := doJSONRequest[dto.GroupResponse](t, handler, http.MethodDelete, groupPath+"/members",
		map[string]interface{}{"userId": "alice"}, authHeader(t, "alice"), http.StatusOK)
	if len(left.MemberUserIDs) != 1 {
		t.Fatalf("members = %v, want only the owner left", left.MemberUserIDs)
	}
}

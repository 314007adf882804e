package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"tutor-app-backend/internal/api"
	"tutor-app-backend/internal/env"
	internaljwt "tutor-app-backend/internal/jwt"
	"tutor-app-backend/internal/model"
	"tutor-app-backend/internal/queue"
	"tutor-app-backend/internal/store"
)

type memoryStore struct {
	doc model.Document
}

func newMemoryStore(users ...model.UserItem) *memoryStore {
	doc := model.SeedDocument()
	doc.Users = append(doc.Users, users...)
	return &memoryStore{doc: doc}
}

func (m *memoryStore) Read(ctx context.Context) (model.Document, error) {
	return copyDoc(m.doc), nil
}

func (m *memoryStore) Mutate(ctx context.Context, fn store.MutateFunc) (model.Document, error) {
	next := copyDoc(m.doc)
	if err := fn(&next); err != nil {
		return model.Document{}, err
	}
	m.doc = next
	return copyDoc(m.doc), nil
}

func copyDoc(doc model.Document) model.Document {
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	var out model.Document
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

func testUser(id string) model.UserItem {
	return model.UserItem{
		UserID:      id,
		DisplayName: "User " + id,
		Email:       id + "@example.com",
		Role:        "student",
		CreatedAt:   "2026-01-01T00:00:00Z",
	}
}

// Prometheus collectors are keyed by const labels, so every test server
// needs a distinct listen address.
var testAddrCounter int64

func newTestServer(t *testing.T, docStore store.DocumentStore) *api.APIServer {
	t.Helper()

	queueManager := queue.NewRequestQueueManager(10, 1)
	t.Cleanup(queueManager.Shutdown)

	addr := fmt.Sprintf(":%d", 30000+atomic.AddInt64(&testAddrCounter, 1))
	return api.NewAPIServer(addr, queueManager, docStore, nil)
}

func setupTestJWT(t *testing.T) {
	t.Helper()
	t.Setenv(env.UserSecretKey, "test-secret")
}

func bearerToken(t *testing.T, user model.UserItem) string {
	t.Helper()
	token, err := internaljwt.CreateToken(internaljwt.User{
		Id:          user.UserID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
	}, internaljwt.RoleUser, 0)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	return "Bearer " + token
}

// doRawRequest returns only the status code, for responses whose body is
// not JSON (or not interesting).
func doRawRequest(t *testing.T, handler http.Handler, method, target string, headers map[string]string) int {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func doJSONRequest[T any](t *testing.T, handler http.Handler, method, target string, body interface{}, headers map[string]string, expectedStatus int) T {
	t.Helper()

	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		payload = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != expectedStatus {
		t.Fatalf("expected status %d, got %d: %s", expectedStatus, rec.Code, rec.Body.String())
	}

	var result T
	if expectedStatus != http.StatusNoContent {
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return result
}

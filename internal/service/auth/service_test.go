package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	internaljwt "tutor-app-backend/internal/jwt"
	"tutor-app-backend/internal/model"
	"tutor-app-backend/internal/store"
)

type memoryStore struct {
	doc model.Document
}

func newMemoryStore() *memoryStore {
	return &memoryStore{doc: model.SeedDocument()}
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

func stubTokenIssuer(t *testing.T) *[]internaljwt.User {
	t.Helper()
	var issued []internaljwt.User
	SetTokenIssuer(func(user internaljwt.User, role internaljwt.Role, validUntil int64) (internaljwt.TokenResponse, error) {
		issued = append(issued, user)
		return internaljwt.TokenResponse{
			AccessToken:  "access-" + user.Id,
			RefreshToken: "refresh-" + user.Id,
		}, nil
	})
	t.Cleanup(func() { SetTokenIssuer(nil) })
	return &issued
}

func newTestService() *Service {
	clock := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return NewWithClock(newMemoryStore(), func() time.Time { return clock })
}

func asServiceError(t *testing.T, err error) *Error {
	t.Helper()
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *auth.Error, got %v", err)
	}
	return svcErr
}

func TestRegisterIssuesTokens(t *testing.T) {
	issued := stubTokenIssuer(t)
	svc := newTestService()

	result, err := svc.Register(context.Background(), RegisterParams{
		DisplayName: "Alice",
		Email:       "Alice@Example.com",
		Password:    "correct horse",
		Role:        "student",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if result.User.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized lowercase", result.User.Email)
	}
	if result.User.PasswordHash != "" {
		t.Error("result must not carry the password hash")
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Errorf("tokens = %+v, want both populated", result.Tokens)
	}
	if len(*issued) != 1 || (*issued)[0].Email != "alice@example.com" {
		t.Errorf("issued = %v, want one token for alice", *issued)
	}
}

func TestRegisterValidatesRole(t *testing.T) {
	stubTokenIssuer(t)
	svc := newTestService()

	_, err := svc.Register(context.Background(), RegisterParams{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "correct horse",
		Role:        "admin",
	})
	if svcErr := asServiceError(t, err); svcErr.Code != ErrorCodeValidation {
		t.Errorf("code = %v, want validation_error", svcErr.Code)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	stubTokenIssuer(t)
	svc := newTestService()

	_, err := svc.Register(context.Background(), RegisterParams{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "short",
		Role:        "student",
	})
	if svcErr := asServiceError(t, err); svcErr.Code != ErrorCodeValidation {
		t.Errorf("code = %v, want validation_error", svcErr.Code)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	stubTokenIssuer(t)
	svc := newTestService()

	params := RegisterParams{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "correct horse",
		Role:        "student",
	}
	if _, err := svc.Register(context.Background(), params); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Same address with different casing is still a duplicate.
	params.Email = "ALICE@example.com"
	_, err := svc.Register(context.Background(), params)
	if svcErr := asServiceError(t, err); svcErr.Code != ErrorCodeConflict {
		t.Errorf("code = %v, want conflict", svcErr.Code)
	}
}

func TestLoginVerifiesPassword(t *testing.T) {
	stubTokenIssuer(t)
	svc := newTestService()

	registered, err := svc.Register(context.Background(), RegisterParams{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "correct horse",
		Role:        "tutor",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := svc.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.User.UserID != registered.User.UserID {
		t.Errorf("user = %q, want %q", result.User.UserID, registered.User.UserID)
	}

	_, err = svc.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "wrong horse",
	})
	if svcErr := asServiceError(t, err); svcErr.Code != ErrorCodeUnauthorized {
		t.Errorf("code = %v, want unauthorized", svcErr.Code)
	}

	// Unknown email yields the same error as a wrong password.
	_, err = svc.Login(context.Background(), LoginParams{
		Email:    "nobody@example.com",
		Password: "correct horse",
	})
	if svcErr := asServiceError(t, err); svcErr.Code != ErrorCodeUnauthorized {
		t.Errorf("code = %v, want unauthorized", svcErr.Code)
	}
}

func TestGetProfileHidesPasswordHash(t *testing.T) {
	stubTokenIssuer(t)
	svc := newTestService()

	registered, err := svc.Register(context.Background(), RegisterParams{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "correct horse",
		Role:        "student",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	profile, err := svc.GetProfile(context.Background(), registered.User.UserID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.PasswordHash != "" {
		t.Error("profile must not expose the password hash")
	}
	if profile.DisplayName != "Alice" {
		t.Errorf("displayName = %q, want Alice", profile.DisplayName)
	}

	_, err = svc.GetProfile(context.Background(), "ghost")
	if svcErr := asServiceError(t, err); svcErr.Code != ErrorCodeNotFound {
		t.Errorf("code = %v, want not_found", svcErr.Code)
	}
}

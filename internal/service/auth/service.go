package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	internaljwt "tutor-app-backend/internal/jwt"
	"tutor-app-backend/internal/model"
	"tutor-app-backend/internal/store"
)

const minPasswordLength = 8

type Service struct {
	repo store.DocumentStore
	now  func() time.Time
}

var createTokenWithRefresh = internaljwt.CreateTokenWithRefresh

// SetTokenIssuer swaps the token factory; tests use it to avoid depending
// on redis-backed refresh tokens. Passing nil restores the default.
func SetTokenIssuer(issuer func(internaljwt.User, internaljwt.Role, int64) (internaljwt.TokenResponse, error)) {
	if issuer == nil {
		createTokenWithRefresh = internaljwt.CreateTokenWithRefresh
		return
	}
	createTokenWithRefresh = issuer
}

func New(repo store.DocumentStore) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

func NewWithClock(repo store.DocumentStore, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo: repo,
		now:  now,
	}
}

func (s *Service) Register(ctx context.Context, params RegisterParams) (AuthResult, error) {
	email := normalizeEmail(params.Email)
	password := strings.TrimSpace(params.Password)
	name := strings.TrimSpace(params.DisplayName)
	role := strings.TrimSpace(params.Role)
	schoolID := strings.TrimSpace(params.SchoolID)

	if email == "" || password == "" || name == "" {
		return AuthResult{}, newError(ErrorCodeValidation, "missing required fields", nil)
	}
	if len(password) < minPasswordLength {
		return AuthResult{}, newError(ErrorCodeValidation, "password must be at least 8 characters", nil)
	}
	if role != "student" && role != "tutor" {
		return AuthResult{}, newError(ErrorCodeValidation, "role must be student or tutor", nil)
	}

	hash, err := internaljwt.HashPassword(password)
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to prepare user", err)
	}

	user := model.UserItem{
		UserID:       uuid.NewString(),
		DisplayName:  name,
		Email:        email,
		Role:         role,
		SchoolID:     schoolID,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	}

	_, err = s.repo.Mutate(ctx, func(doc *model.Document) error {
		for _, existing := range doc.Users {
			if normalizeEmail(existing.Email) == email {
				return newError(ErrorCodeConflict, "an account with this email already exists", nil)
			}
		}
		if schoolID != "" && !schoolExists(doc, schoolID) {
			return newError(ErrorCodeNotFound, "school not found", nil)
		}
		doc.Users = append(doc.Users, user)
		return nil
	})
	if err != nil {
		return AuthResult{}, s.wrap(err, "failed to save user")
	}

	tokens, err := createTokenWithRefresh(jwtUser(user), internaljwt.RoleUser, 0)
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to issue tokens", err)
	}

	user.PasswordHash = ""
	return AuthResult{User: user, Tokens: tokens}, nil
}

func (s *Service) Login(ctx context.Context, params LoginParams) (AuthResult, error) {
	email := normalizeEmail(params.Email)
	password := strings.TrimSpace(params.Password)

	if email == "" || password == "" {
		return AuthResult{}, newError(ErrorCodeValidation, "missing required fields", nil)
	}

	doc, err := s.repo.Read(ctx)
	if err != nil {
		return AuthResult{}, s.wrap(err, "failed to load users")
	}

	var user *model.UserItem
	for i := range doc.Users {
		if normalizeEmail(doc.Users[i].Email) == email {
			user = &doc.Users[i]
			break
		}
	}
	// Same error for unknown email and wrong password.
	if user == nil || !internaljwt.ValidatePassword(user.PasswordHash, password) {
		return AuthResult{}, newError(ErrorCodeUnauthorized, "invalid credentials", nil)
	}

	tokens, err := createTokenWithRefresh(jwtUser(*user), internaljwt.RoleUser, 0)
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to issue tokens", err)
	}

	result := *user
	result.PasswordHash = ""
	return AuthResult{User: result, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return "", newError(ErrorCodeValidation, "refresh token is required", nil)
	}

	token, err := internaljwt.RefreshToken(refreshToken, internaljwt.RoleUser)
	if err != nil {
		return "", newError(ErrorCodeUnauthorized, "invalid refresh token", err)
	}
	return token, nil
}

// GetProfile returns the stored user record for an authenticated identity.
func (s *Service) GetProfile(ctx context.Context, userID string) (model.UserItem, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return model.UserItem{}, s.wrap(err, "failed to load user")
	}

	for _, user := range doc.Users {
		if user.UserID == userID {
			user.PasswordHash = ""
			return user, nil
		}
	}
	return model.UserItem{}, newError(ErrorCodeNotFound, "user not found", nil)
}

func (s *Service) wrap(err error, message string) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if errors.Is(err, store.ErrUnavailable) {
		return newError(ErrorCodeStore, "storage is unavailable, try again later", err)
	}
	return newError(ErrorCodeInternal, message, err)
}

func jwtUser(user model.UserItem) internaljwt.User {
	return internaljwt.User{
		Id:          user.UserID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
	}
}

func schoolExists(doc *model.Document, schoolID string) bool {
	for _, school := range doc.Schools {
		if school.SchoolID == schoolID {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

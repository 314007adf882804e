package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"tutor-app-backend/internal/api"
	internaljwt "tutor-app-backend/internal/jwt"
)

type HTTPError = api.HTTPError

type ApiMessageResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func MethodHandler(
	w http.ResponseWriter,
	r *http.Request,
	allowed map[string]func(http.ResponseWriter, *http.Request) error,
) error {
	if handler, ok := allowed[r.Method]; ok {
		return handler(w, r)
	}
	return &HTTPError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed.",
		ErrorLog:   fmt.Errorf("method not allowed"),
	}
}

// identityFromRequest resolves the authenticated user from the bearer
// token. Routes behind ValidateUserJWT have already rejected bad tokens,
// so failures here mean a missing header rather than a forged one.
func identityFromRequest(r *http.Request) (internaljwt.User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return internaljwt.User{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("missing authorization header"),
		}
	}

	token := strings.TrimPrefix(header, "Bearer ")
	user, err := internaljwt.UserFromToken(token, internaljwt.RoleUser)
	if err != nil {
		return internaljwt.User{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("parse bearer token: %w", err),
		}
	}
	return user, nil
}

// pathSegment returns the nth segment after the given prefix, e.g.
// pathSegment("/api/v1/rooms/abc/ask", "/api/v1/rooms/", 0) == "abc".
func pathSegment(path, prefix string, n int) string {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return ""
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if n >= len(parts) {
		return ""
	}
	return parts[n]
}

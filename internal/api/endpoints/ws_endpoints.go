package endpoints

import (
	"fmt"
	"net/http"

	internaljwt "tutor-app-backend/internal/jwt"
	"tutor-app-backend/internal/websocket"
)

type WebsocketEndpoints interface {
	Connect(http.ResponseWriter, *http.Request) error
}

type websocketEndpoints struct {
	gateway *websocket.Handler
}

func NewWebsocketEndpoints(gateway *websocket.Handler) WebsocketEndpoints {
	return &websocketEndpoints{gateway: gateway}
}

// Connect upgrades GET /ws?token=... to a websocket session. Browsers
// cannot set headers on websocket requests, so the access token rides in
// the query string instead of Authorization.
func (h *websocketEndpoints) Connect(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return &HTTPError{
			StatusCode: http.StatusMethodNotAllowed,
			Message:    "Method not allowed.",
			ErrorLog:   fmt.Errorf("method not allowed"),
		}
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("missing token query parameter"),
		}
	}

	user, err := internaljwt.UserFromToken(token, internaljwt.RoleUser)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("parse websocket token: %w", err),
		}
	}

	// ServeConnection hijacks the response writer; nothing can be written
	// after this point.
	h.gateway.ServeConnection(w, r, user.Id, user.DisplayName)
	return nil
}

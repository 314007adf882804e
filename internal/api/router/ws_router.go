package router

import (
	"net/http"

	"tutor-app-backend/internal/api"
	"tutor-app-backend/internal/api/endpoints"
)

// WebsocketRoutes registers the upgrade endpoint. Token validation happens
// inside the endpoint because the token arrives as a query parameter, not
// an Authorization header.
func WebsocketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		wsEndpoints := endpoints.NewWebsocketEndpoints(s.Gateway())
		mux.HandleFunc(prefix+"/ws", s.MakeHTTPHandleFunc(wsEndpoints.Connect))
	}
}

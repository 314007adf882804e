package router

import (
	"net/http"

	"tutor-app-backend/internal/api"
	"tutor-app-backend/internal/api/endpoints"
)

func UtilsRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		utilsEndpoints := endpoints.NewUtilsEndpoints()
		mux.HandleFunc(prefix+"/healthcheck", s.MakeHTTPHandleFunc(utilsEndpoints.Healthcheck))
	}
}

package router

import (
	"net/http"

	"tutor-app-backend/internal/api"
	"tutor-app-backend/internal/api/endpoints"
	"tutor-app-backend/internal/api/middleware"
	groupsvc "tutor-app-backend/internal/service/group"
)

func GroupRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		service := groupsvc.New(s.Store())
		groupEndpoints := endpoints.NewGroupEndpoints(service, s.Gateway(), prefix)

		mux.HandleFunc(prefix+"/groups", s.MakeHTTPHandleFunc(groupEndpoints.Groups, middleware.ValidateUserJWT))
		mux.HandleFunc(prefix+"/groups/", s.MakeHTTPHandleFunc(groupEndpoints.GroupResources, middleware.ValidateUserJWT, writeRateLimit()))
	}
}

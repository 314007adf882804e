package router

import (
	"net/http"

	"tutor-app-backend/internal/api"
	"tutor-app-backend/internal/api/endpoints"
	"tutor-app-backend/internal/api/middleware"
	dmsvc "tutor-app-backend/internal/service/dm"
)

func DMRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		service := dmsvc.New(s.Store())
		dmEndpoints := endpoints.NewDMEndpoints(service, s.Gateway(), prefix)

		mux.HandleFunc(prefix+"/friends", s.MakeHTTPHandleFunc(dmEndpoints.Friends, middleware.ValidateUserJWT))
		mux.HandleFunc(prefix+"/dms/", s.MakeHTTPHandleFunc(dmEndpoints.Conversations, middleware.ValidateUserJWT, writeRateLimit()))
	}
}

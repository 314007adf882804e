package router

import (
	"net/http"

	"tutor-app-backend/internal/ai"
	"tutor-app-backend/internal/api"
	"tutor-app-backend/internal/api/endpoints"
	"tutor-app-backend/internal/api/middleware"
	"tutor-app-backend/internal/env"
	roomsvc "tutor-app-backend/internal/service/room"
)

func RoomRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		generator := ai.NewHTTPGenerator(env.Get(env.AIServiceURL))
		service := roomsvc.New(s.Store(), generator)
		roomEndpoints := endpoints.NewRoomEndpoints(service, s.Gateway(), prefix)

		mux.HandleFunc(prefix+"/rooms", s.MakeHTTPHandleFunc(roomEndpoints.Rooms, middleware.ValidateUserJWT))
		mux.HandleFunc(prefix+"/rooms/join", s.MakeHTTPHandleFunc(roomEndpoints.JoinRoom, middleware.ValidateUserJWT))
		mux.HandleFunc(prefix+"/rooms/", s.MakeHTTPHandleFunc(roomEndpoints.RoomResources, middleware.ValidateUserJWT, writeRateLimit()))
	}
}

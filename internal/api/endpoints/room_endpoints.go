package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"tutor-app-backend/internal/dto"
	"tutor-app-backend/internal/model"
	roomsvc "tutor-app-backend/internal/service/room"
	"tutor-app-backend/internal/websocket"
)

type RoomEndpoints interface {
	Rooms(http.ResponseWriter, *http.Request) error
	JoinRoom(http.ResponseWriter, *http.Request) error
	RoomResources(http.ResponseWriter, *http.Request) error
}

type roomEndpoints struct {
	service *roomsvc.Service
	gateway *websocket.Handler
	prefix  string
}

func NewRoomEndpoints(service *roomsvc.Service, gateway *websocket.Handler, prefix string) RoomEndpoints {
	return &roomEndpoints{
		service: service,
		gateway: gateway,
		prefix:  strings.TrimRight(prefix, "/") + "/rooms/",
	}
}

func (h *roomEndpoints) Rooms(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleCreateRoom,
	})
}

func (h *roomEndpoints) JoinRoom(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleJoinRoom,
	})
}

// RoomResources dispatches /rooms/{id} and its sub-resources.
func (h *roomEndpoints) RoomResources(w http.ResponseWriter, r *http.Request) error {
	roomID := pathSegment(r.URL.Path, h.prefix, 0)
	if roomID == "" {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Room not found",
			ErrorLog:   fmt.Errorf("missing room id in path %s", r.URL.Path),
		}
	}

	switch pathSegment(r.URL.Path, h.prefix, 1) {
	case "":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.withRoom(roomID, h.handleGetRoom),
		})
	case "members":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.withRoom(roomID, h.handleListMembers),
		})
	case "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:  h.withRoom(roomID, h.handleListMessages),
			http.MethodPost: h.withRoom(roomID, h.handlePostMessage),
		})
	case "permissions":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:   h.withRoom(roomID, h.handleGetPermissions),
			http.MethodPatch: h.withRoom(roomID, h.handleUpdatePermissions),
		})
	case "control":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPut: h.withRoom(roomID, h.handleSetControl),
		})
	case "ask":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.withRoom(roomID, h.handleAskAI),
		})
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("unknown room resource %s", r.URL.Path),
		}
	}
}

type roomHandlerFunc func(w http.ResponseWriter, r *http.Request, roomID string) error

func (h *roomEndpoints) withRoom(roomID string, fn roomHandlerFunc) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		return fn(w, r, roomID)
	}
}

func (h *roomEndpoints) handleCreateRoom(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode create room request: %w", err),
		}
	}

	result, err := h.service.CreateRoom(r.Context(), identity.Id, req.Subject, req.Name)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusCreated, dto.RoomStateResponse{
		Room:        toRoomResponse(result.Room),
		Permissions: toPermissionsResponse(result.Permissions),
		Control:     toControlResponse(result.Control),
	})
}

func (h *roomEndpoints) handleJoinRoom(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode join room request: %w", err),
		}
	}

	room, err := h.service.JoinRoomByCode(r.Context(), req.InviteCode, identity.Id)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, toRoomResponse(room))
}

func (h *roomEndpoints) handleGetRoom(w http.ResponseWriter, r *http.Request, roomID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	state, err := h.service.GetRoom(r.Context(), roomID, identity.Id)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.RoomStateResponse{
		Room:        toRoomResponse(state.Room),
		Permissions: toPermissionsResponse(state.Permissions),
		Control:     toControlResponse(state.Control),
	})
}

func (h *roomEndpoints) handleListMembers(w http.ResponseWriter, r *http.Request, roomID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	members, err := h.service.ListMembers(r.Context(), roomID, identity.Id)
	if err != nil {
		return h.serviceError(err)
	}

	out := make([]dto.UserResponse, len(members))
	for i, member := range members {
		out[i] = toUserResponse(member)
	}
	return WriteJSON(w, http.StatusOK, out)
}

func (h *roomEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request, roomID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	messages, err := h.service.ListMessages(r.Context(), roomID, identity.Id)
	if err != nil {
		return h.serviceError(err)
	}

	out := make([]dto.MessageResponse, len(messages))
	for i, msg := range messages {
		out[i] = toMessageResponse(msg)
	}
	return WriteJSON(w, http.StatusOK, out)
}

func (h *roomEndpoints) handlePostMessage(w http.ResponseWriter, r *http.Request, roomID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode post message request: %w", err),
		}
	}

	msg, err := h.service.PostMessage(r.Context(), roomID, identity.Id, req.Message)
	if err != nil {
		return h.serviceError(err)
	}

	if h.gateway != nil {
		h.gateway.Broadcast(websocket.RoomChannel(roomID), websocket.EventRoomMessage, toMessageResponse(msg))
	}
	return WriteJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *roomEndpoints) handleGetPermissions(w http.ResponseWriter, r *http.Request, roomID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	state, err := h.service.GetRoom(r.Context(), roomID, identity.Id)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, toPermissionsResponse(state.Permissions))
}

func (h *roomEndpoints) handleUpdatePermissions(w http.ResponseWriter, r *http.Request, roomID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.UpdatePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode update permissions request: %w", err),
		}
	}

	perms, err := h.service.UpdatePermissions(r.Context(), roomID, identity.Id, roomsvc.PermissionsPatch{
		AskAiEnabled: req.AskAiEnabled,
		GrantUserID:  req.GrantUserID,
		RevokeUserID: req.RevokeUserID,
	})
	if err != nil {
		return h.serviceError(err)
	}

	resp := toPermissionsResponse(perms)
	if h.gateway != nil {
		h.gateway.Broadcast(websocket.RoomChannel(roomID), websocket.EventPermUpdate, resp)
	}
	return WriteJSON(w, http.StatusOK, resp)
}

func (h *roomEndpoints) handleSetControl(w http.ResponseWriter, r *http.Request, roomID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.SetControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode set control request: %w", err),
		}
	}

	control, err := h.service.SetControl(r.Context(), roomID, identity.Id, req.ControllerUserID)
	if err != nil {
		return h.serviceError(err)
	}

	resp := toControlResponse(control)
	if h.gateway != nil {
		h.gateway.Broadcast(websocket.RoomChannel(roomID), websocket.EventControlUpdate, resp)
	}
	return WriteJSON(w, http.StatusOK, resp)
}

func (h *roomEndpoints) handleAskAI(w http.ResponseWriter, r *http.Request, roomID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.AskAIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode ask request: %w", err),
		}
	}

	result, err := h.service.AskAI(r.Context(), roomID, identity.Id, req.Question)
	if err != nil {
		// Generation trouble is reported to the whole room so everyone
		// watching the board sees the attempt failed.
		if svcErr, ok := err.(*roomsvc.Error); ok && svcErr.Code == roomsvc.ErrorCodeInternal && h.gateway != nil {
			h.gateway.Broadcast(websocket.RoomChannel(roomID), websocket.EventFailure, websocket.FailurePayload{
				Code:    string(svcErr.Code),
				Message: svcErr.Message,
			})
		}
		return h.serviceError(err)
	}

	resp := toAskAIResponse(result)
	if h.gateway != nil {
		h.gateway.Broadcast(websocket.RoomChannel(roomID), websocket.EventAIBlocks, resp)
	}
	return WriteJSON(w, http.StatusOK, resp)
}

func (h *roomEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*roomsvc.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("room service: %w", err),
		}
	}

	var errorLog error
	if svcErr.Err != nil {
		errorLog = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		errorLog = svcErr
	}

	switch svcErr.Code {
	case roomsvc.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: errorLog}
	case roomsvc.ErrorCodeUnauthorized:
		return &HTTPError{StatusCode: http.StatusUnauthorized, Message: svcErr.Message, ErrorLog: errorLog}
	case roomsvc.ErrorCodeForbidden:
		return &HTTPError{
			StatusCode: http.StatusForbidden,
			Message:    svcErr.Message,
			Code:       svcErr.Reason,
			Details:    svcErr.Details,
			ErrorLog:   errorLog,
		}
	case roomsvc.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: errorLog}
	case roomsvc.ErrorCodeConflict:
		return &HTTPError{StatusCode: http.StatusConflict, Message: svcErr.Message, ErrorLog: errorLog}
	case roomsvc.ErrorCodeRateLimited:
		return &HTTPError{StatusCode: http.StatusTooManyRequests, Message: svcErr.Message, ErrorLog: errorLog}
	case roomsvc.ErrorCodeStore:
		return &HTTPError{StatusCode: http.StatusServiceUnavailable, Message: svcErr.Message, ErrorLog: errorLog}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: errorLog}
	}
}

func toRoomResponse(room model.StudyRoomItem) dto.RoomResponse {
	return dto.RoomResponse{
		RoomID:        room.RoomID,
		Name:          room.Name,
		Subject:       room.Subject,
		OwnerUserID:   room.OwnerUserID,
		MemberUserIDs: room.MemberUserIDs,
		InviteCode:    room.InviteCode,
		CreatedAt:     room.CreatedAt,
	}
}

func toMessageResponse(msg model.RoomMessageItem) dto.MessageResponse {
	return dto.MessageResponse{
		MessageID:  msg.MessageID,
		RoomID:     msg.RoomID,
		FromUserID: msg.FromUserID,
		Message:    msg.Message,
		CreatedAt:  msg.CreatedAt,
	}
}

func toPermissionsResponse(perms model.RoomPermissionItem) dto.PermissionsResponse {
	memberAskAi := perms.MemberAskAi
	if memberAskAi == nil {
		memberAskAi = []string{}
	}
	return dto.PermissionsResponse{
		RoomID:       perms.RoomID,
		AskAiEnabled: perms.AskAiEnabled,
		MemberAskAi:  memberAskAi,
	}
}

func toControlResponse(control model.RoomControlItem) dto.ControlResponse {
	return dto.ControlResponse{
		RoomID:           control.RoomID,
		ControllerUserID: control.ControllerUserID,
	}
}

func toAskAIResponse(result roomsvc.AskAIResult) dto.AskAIResponse {
	blocks := make([]dto.AIBlockResponse, len(result.Blocks))
	for i, block := range result.Blocks {
		blocks[i] = dto.AIBlockResponse{Type: block.Type, Content: block.Content}
	}
	return dto.AskAIResponse{RoomID: result.RoomID, Blocks: blocks}
}

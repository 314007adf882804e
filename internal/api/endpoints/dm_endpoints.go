package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"tutor-app-backend/internal/dto"
	"tutor-app-backend/internal/model"
	dmsvc "tutor-app-backend/internal/service/dm"
	"tutor-app-backend/internal/websocket"
)

type DMEndpoints interface {
	Friends(http.ResponseWriter, *http.Request) error
	Conversations(http.ResponseWriter, *http.Request) error
}

type dmEndpoints struct {
	service *dmsvc.Service
	gateway *websocket.Handler
	prefix  string
}

func NewDMEndpoints(service *dmsvc.Service, gateway *websocket.Handler, prefix string) DMEndpoints {
	return &dmEndpoints{
		service: service,
		gateway: gateway,
		prefix:  strings.TrimRight(prefix, "/") + "/dms/",
	}
}

func (h *dmEndpoints) Friends(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:    h.handleListFriends,
		http.MethodPost:   h.handleAddFriend,
		http.MethodDelete: h.handleRemoveFriend,
	})
}

// Conversations dispatches /dms/{userId}.
func (h *dmEndpoints) Conversations(w http.ResponseWriter, r *http.Request) error {
	otherID := pathSegment(r.URL.Path, h.prefix, 0)
	if otherID == "" {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("missing user id in path %s", r.URL.Path),
		}
	}

	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			return h.handleListDMs(w, r, otherID)
		},
		http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
			return h.handleSendDM(w, r, otherID)
		},
	})
}

func (h *dmEndpoints) handleListFriends(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	friends, err := h.service.ListFriends(r.Context(), identity.Id)
	if err != nil {
		return h.serviceError(err)
	}

	out := make([]dto.UserResponse, len(friends))
	for i, friend := range friends {
		out[i] = toUserResponse(friend)
	}
	return WriteJSON(w, http.StatusOK, out)
}

func (h *dmEndpoints) handleAddFriend(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.FriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode add friend request: %w", err),
		}
	}

	if err := h.service.AddFriend(r.Context(), identity.Id, req.UserID); err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "Friend added."})
}

func (h *dmEndpoints) handleRemoveFriend(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.FriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode remove friend request: %w", err),
		}
	}

	if err := h.service.RemoveFriend(r.Context(), identity.Id, req.UserID); err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "Friend removed."})
}

func (h *dmEndpoints) handleListDMs(w http.ResponseWriter, r *http.Request, otherID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	messages, err := h.service.ListDMs(r.Context(), identity.Id, otherID)
	if err != nil {
		return h.serviceError(err)
	}

	out := make([]dto.DMResponse, len(messages))
	for i, msg := range messages {
		out[i] = toDMResponse(msg)
	}
	return WriteJSON(w, http.StatusOK, out)
}

func (h *dmEndpoints) handleSendDM(w http.ResponseWriter, r *http.Request, otherID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.SendDMRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode send dm request: %w", err),
		}
	}

	msg, err := h.service.SendDM(r.Context(), identity.Id, otherID, req.Message)
	if err != nil {
		return h.serviceError(err)
	}

	resp := toDMResponse(msg)
	if h.gateway != nil {
		h.gateway.Broadcast(websocket.DMChannel(msg.RoomKey), websocket.EventDMNew, resp)
		// Recipients who have not opened the conversation yet still get a
		// nudge on their personal channel.
		h.gateway.Broadcast(websocket.UserChannel(otherID), websocket.EventDMNew, resp)
	}
	return WriteJSON(w, http.StatusCreated, resp)
}

func (h *dmEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*dmsvc.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("dm service: %w", err),
		}
	}

	var errorLog error
	if svcErr.Err != nil {
		errorLog = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		errorLog = svcErr
	}

	switch svcErr.Code {
	case dmsvc.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: errorLog}
	case dmsvc.ErrorCodeForbidden:
		return &HTTPError{StatusCode: http.StatusForbidden, Message: svcErr.Message, ErrorLog: errorLog}
	case dmsvc.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: errorLog}
	case dmsvc.ErrorCodeStore:
		return &HTTPError{StatusCode: http.StatusServiceUnavailable, Message: svcErr.Message, ErrorLog: errorLog}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: errorLog}
	}
}

func toDMResponse(msg model.DirectMessageItem) dto.DMResponse {
	return dto.DMResponse{
		MessageID:  msg.MessageID,
		RoomKey:    msg.RoomKey,
		FromUserID: msg.FromUserID,
		ToUserID:   msg.ToUserID,
		Message:    msg.Message,
		CreatedAt:  msg.CreatedAt,
	}
}

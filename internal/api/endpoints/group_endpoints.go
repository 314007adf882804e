package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"tutor-app-backend/internal/dto"
	"tutor-app-backend/internal/model"
	groupsvc "tutor-app-backend/internal/service/group"
	"tutor-app-backend/internal/websocket"
)

type GroupEndpoints interface {
	Groups(http.ResponseWriter, *http.Request) error
	GroupResources(http.ResponseWriter, *http.Request) error
}

type groupEndpoints struct {
	service *groupsvc.Service
	gateway *websocket.Handler
	prefix  string
}

func NewGroupEndpoints(service *groupsvc.Service, gateway *websocket.Handler, prefix string) GroupEndpoints {
	return &groupEndpoints{
		service: service,
		gateway: gateway,
		prefix:  strings.TrimRight(prefix, "/") + "/groups/",
	}
}

func (h *groupEndpoints) Groups(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleCreateGroup,
		http.MethodGet:  h.handleListGroups,
	})
}

func (h *groupEndpoints) GroupResources(w http.ResponseWriter, r *http.Request) error {
	groupID := pathSegment(r.URL.Path, h.prefix, 0)
	if groupID == "" {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Group not found",
			ErrorLog:   fmt.Errorf("missing group id in path %s", r.URL.Path),
		}
	}

	switch pathSegment(r.URL.Path, h.prefix, 1) {
	case "members":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost:   h.withGroup(groupID, h.handleAddMember),
			http.MethodDelete: h.withGroup(groupID, h.handleRemoveMember),
		})
	case "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:  h.withGroup(groupID, h.handleListMessages),
			http.MethodPost: h.withGroup(groupID, h.handlePostMessage),
		})
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("unknown group resource %s", r.URL.Path),
		}
	}
}

type groupHandlerFunc func(w http.ResponseWriter, r *http.Request, groupID string) error

func (h *groupEndpoints) withGroup(groupID string, fn groupHandlerFunc) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		return fn(w, r, groupID)
	}
}

func (h *groupEndpoints) handleCreateGroup(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode create group request: %w", err),
		}
	}

	created, err := h.service.CreateGroupChat(r.Context(), identity.Id, req.Name, req.SchoolID)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusCreated, toGroupResponse(created))
}

func (h *groupEndpoints) handleListGroups(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	groups, err := h.service.ListGroups(r.Context(), identity.Id)
	if err != nil {
		return h.serviceError(err)
	}

	out := make([]dto.GroupResponse, len(groups))
	for i, group := range groups {
		out[i] = toGroupResponse(group)
	}
	return WriteJSON(w, http.StatusOK, out)
}

func (h *groupEndpoints) handleAddMember(w http.ResponseWriter, r *http.Request, groupID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.GroupMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode add member request: %w", err),
		}
	}

	updated, err := h.service.AddMember(r.Context(), groupID, identity.Id, req.UserID)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, toGroupResponse(updated))
}

func (h *groupEndpoints) handleRemoveMember(w http.ResponseWriter, r *http.Request, groupID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.GroupMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode remove member request: %w", err),
		}
	}

	updated, err := h.service.RemoveMember(r.Context(), groupID, identity.Id, req.UserID)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, toGroupResponse(updated))
}

func (h *groupEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request, groupID string) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	messages, err := h.service.ListMessages(r.Context(), groupID, identity.Id)
	if err != nil {
		return h.serviceError(err)
	}

	out := make([]dto.GroupMessageResponse, len(messages))
	for i, msg := range messages {
		out[i] = toGroupMessageResponse(msg)
	}
	return WriteJSON(w, http.StatusOK, out)
}

func (h *groupEndpoints) handlePostMessage(w http.ResponseWriter, r *http.Request, groupID string) error {
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

	msg, err := h.service.PostMessage(r.Context(), groupID, identity.Id, req.Message)
	if err != nil {
		return h.serviceError(err)
	}

	resp := toGroupMessageResponse(msg)
	if h.gateway != nil {
		h.gateway.Broadcast(websocket.GroupChannel(groupID), websocket.EventGroupMessage, resp)
	}
	return WriteJSON(w, http.StatusCreated, resp)
}

func (h *groupEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*groupsvc.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("group service: %w", err),
		}
	}

	var errorLog error
	if svcErr.Err != nil {
		errorLog = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		errorLog = svcErr
	}

	switch svcErr.Code {
	case groupsvc.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: errorLog}
	case groupsvc.ErrorCodeForbidden:
		return &HTTPError{StatusCode: http.StatusForbidden, Message: svcErr.Message, ErrorLog: errorLog}
	case groupsvc.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: errorLog}
	case groupsvc.ErrorCodeStore:
		return &HTTPError{StatusCode: http.StatusServiceUnavailable, Message: svcErr.Message, ErrorLog: errorLog}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: errorLog}
	}
}

func toGroupResponse(group model.GroupChatItem) dto.GroupResponse {
	return dto.GroupResponse{
		GroupID:       group.GroupID,
		Name:          group.Name,
		OwnerUserID:   group.OwnerUserID,
		MemberUserIDs: group.MemberUserIDs,
		SchoolID:      group.SchoolID,
		CreatedAt:     group.CreatedAt,
		UpdatedAt:     group.UpdatedAt,
	}
}

func toGroupMessageResponse(msg model.GroupMessageItem) dto.GroupMessageResponse {
	return dto.GroupMessageResponse{
		MessageID:  msg.MessageID,
		GroupID:    msg.GroupID,
		FromUserID: msg.FromUserID,
		Message:    msg.Message,
		CreatedAt:  msg.CreatedAt,
	}
}

package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tutor-app-backend/internal/ai"
	"tutor-app-backend/internal/idgen"
	"tutor-app-backend/internal/model"
	"tutor-app-backend/internal/store"
	"tutor-app-backend/utils"
)

const inviteCodeAttempts = 5

type Service struct {
	repo      store.DocumentStore
	generator ai.Generator
	now       func() time.Time
}

func New(repo store.DocumentStore, generator ai.Generator) *Service {
	return &Service{
		repo:      repo,
		generator: generator,
		now:       time.Now,
	}
}

func NewWithClock(repo store.DocumentStore, generator ai.Generator, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      repo,
		generator: generator,
		now:       now,
	}
}

type CreateRoomResult struct {
	Room        model.StudyRoomItem
	Permissions model.RoomPermissionItem
	Control     model.RoomControlItem
}

type PermissionsPatch struct {
	AskAiEnabled *bool
	GrantUserID  string
	RevokeUserID string
}

type AskAIResult struct {
	RoomID string
	Blocks []ai.Block
}

// CanAskAI reports whether a user may invoke the AI tutor given the current
// permission and control snapshot. Pure and total: no store access, no side
// effects, so clients can re-evaluate it locally when the snapshot changes.
// Owner and active-controller checks take precedence over the allow-list.
func CanAskAI(ownerID string, perms model.RoomPermissionItem, control model.RoomControlItem, userID string) bool {
	if userID == ownerID {
		return true
	}
	if control.ControllerUserID != nil {
		return *control.ControllerUserID == userID
	}
	if !perms.AskAiEnabled {
		return false
	}
	if len(perms.MemberAskAi) == 0 {
		// Allow-all mode: every member may ask.
		return true
	}
	for _, id := range perms.MemberAskAi {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *Service) CreateRoom(ctx context.Context, ownerID, subject, name string) (CreateRoomResult, error) {
	ownerID = strings.TrimSpace(ownerID)
	subject = strings.TrimSpace(subject)
	name = strings.TrimSpace(name)

	if ownerID == "" || subject == "" {
		return CreateRoomResult{}, newError(ErrorCodeValidation, "owner and subject are required", nil)
	}
	if name == "" {
		name = subject + " study room"
	}

	roomID := uuid.NewString()
	now := s.now().UTC().Format(time.RFC3339)

	var result CreateRoomResult
	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		if findUser(doc, ownerID) == nil {
			return newError(ErrorCodeNotFound, "owner not found", nil)
		}

		code, err := freeInviteCode(doc)
		if err != nil {
			return err
		}

		room := model.StudyRoomItem{
			RoomID:        roomID,
			Name:          name,
			Subject:       subject,
			OwnerUserID:   ownerID,
			MemberUserIDs: []string{ownerID},
			InviteCode:    code,
			CreatedAt:     now,
		}
		perms := model.RoomPermissionItem{
			RoomID:       roomID,
			AskAiEnabled: true,
			MemberAskAi:  []string{},
		}
		control := model.RoomControlItem{
			RoomID:           roomID,
			ControllerUserID: nil,
		}

		doc.StudyRooms = append(doc.StudyRooms, room)
		doc.RoomPermissions = append(doc.RoomPermissions, perms)
		doc.RoomControls = append(doc.RoomControls, control)

		result = CreateRoomResult{Room: room, Permissions: perms, Control: control}
		return nil
	})
	if err != nil {
		return CreateRoomResult{}, s.wrap(err, "failed to create room")
	}
	return result, nil
}

// JoinRoomByCode resolves an invite code case-insensitively and appends the
// user to the member list. Joining twice is a no-op.
func (s *Service) JoinRoomByCode(ctx context.Context, code, userID string) (model.StudyRoomItem, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.StudyRoomItem{}, newError(ErrorCodeValidation, "invite code is required", nil)
	}

	var joined model.StudyRoomItem
	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		if findUser(doc, userID) == nil {
			return newError(ErrorCodeNotFound, "user not found", nil)
		}

		// Low read volume; a linear scan beats maintaining an index.
		idx := -1
		for i := range doc.StudyRooms {
			if strings.EqualFold(doc.StudyRooms[i].InviteCode, code) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return newError(ErrorCodeNotFound, "unknown invite code", nil)
		}

		appendMember(&doc.StudyRooms[idx], userID)
		joined = doc.StudyRooms[idx]
		return nil
	})
	if err != nil {
		return model.StudyRoomItem{}, s.wrap(err, "failed to join room")
	}
	return joined, nil
}

// JoinRoom appends the user to a room's member list; idempotent.
func (s *Service) JoinRoom(ctx context.Context, roomID, userID string) (model.StudyRoomItem, error) {
	var joined model.StudyRoomItem
	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		if findUser(doc, userID) == nil {
			return newError(ErrorCodeNotFound, "user not found", nil)
		}
		idx := roomIndex(doc, roomID)
		if idx < 0 {
			return newError(ErrorCodeNotFound, "room not found", nil)
		}
		appendMember(&doc.StudyRooms[idx], userID)
		joined = doc.StudyRooms[idx]
		return nil
	})
	if err != nil {
		return model.StudyRoomItem{}, s.wrap(err, "failed to join room")
	}
	return joined, nil
}

type RoomState struct {
	Room        model.StudyRoomItem
	Permissions model.RoomPermissionItem
	Control     model.RoomControlItem
}

// GetRoom returns the room with its permission and control state. Members
// only.
func (s *Service) GetRoom(ctx context.Context, roomID, callerID string) (RoomState, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return RoomState{}, s.wrap(err, "failed to load room")
	}

	room := findRoom(&doc, roomID)
	if room == nil {
		return RoomState{}, newError(ErrorCodeNotFound, "room not found", nil)
	}
	if !isMember(room, callerID) {
		return RoomState{}, newError(ErrorCodeForbidden, "you are not a member of this room", nil)
	}

	return RoomState{
		Room:        *room,
		Permissions: permissionsFor(&doc, roomID),
		Control:     controlFor(&doc, roomID),
	}, nil
}

// ListMembers denormalizes the room's member ids against the user table.
// User details are never stored on the room itself.
func (s *Service) ListMembers(ctx context.Context, roomID, callerID string) ([]model.UserItem, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, s.wrap(err, "failed to load members")
	}

	room := findRoom(&doc, roomID)
	if room == nil {
		return nil, newError(ErrorCodeNotFound, "room not found", nil)
	}
	if !isMember(room, callerID) {
		return nil, newError(ErrorCodeForbidden, "you are not a member of this room", nil)
	}

	members := make([]model.UserItem, 0, len(room.MemberUserIDs))
	for _, id := range room.MemberUserIDs {
		if user := findUser(&doc, id); user != nil {
			user.PasswordHash = ""
			members = append(members, *user)
		}
	}
	return members, nil
}

// IsMember is used by the connection gateway to authorize channel joins.
func (s *Service) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return false, s.wrap(err, "failed to load room")
	}
	room := findRoom(&doc, roomID)
	if room == nil {
		return false, nil
	}
	return isMember(room, userID), nil
}

func (s *Service) PostMessage(ctx context.Context, roomID, fromUserID, message string) (model.RoomMessageItem, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return model.RoomMessageItem{}, newError(ErrorCodeValidation, "message body is required", nil)
	}

	item := model.RoomMessageItem{
		MessageID:  idgen.NewMessageID(),
		RoomID:     roomID,
		FromUserID: fromUserID,
		Message:    message,
		CreatedAt:  s.now().UTC().Format(time.RFC3339),
	}

	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		room := findRoom(doc, roomID)
		if room == nil {
			return newError(ErrorCodeNotFound, "room not found", nil)
		}
		if !isMember(room, fromUserID) {
			return newError(ErrorCodeForbidden, "you are not a member of this room", nil)
		}
		doc.RoomMessages = append(doc.RoomMessages, item)
		return nil
	})
	if err != nil {
		return model.RoomMessageItem{}, s.wrap(err, "failed to post message")
	}
	return item, nil
}

func (s *Service) ListMessages(ctx context.Context, roomID, callerID string) ([]model.RoomMessageItem, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, s.wrap(err, "failed to load messages")
	}

	room := findRoom(&doc, roomID)
	if room == nil {
		return nil, newError(ErrorCodeNotFound, "room not found", nil)
	}
	if !isMember(room, callerID) {
		return nil, newError(ErrorCodeForbidden, "you are not a member of this room", nil)
	}

	messages := make([]model.RoomMessageItem, 0)
	for _, msg := range doc.RoomMessages {
		if msg.RoomID == roomID {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// UpdatePermissions applies any subset of the patch. Each field is
// independently idempotent so a redelivered network event cannot corrupt
// the permission state. Owner only.
func (s *Service) UpdatePermissions(ctx context.Context, roomID, callerID string, patch PermissionsPatch) (model.RoomPermissionItem, error) {
	var updated model.RoomPermissionItem
	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		room := findRoom(doc, roomID)
		if room == nil {
			return newError(ErrorCodeNotFound, "room not found", nil)
		}
		if room.OwnerUserID != callerID {
			return newError(ErrorCodeForbidden, "only the room owner can change permissions", nil)
		}

		idx := permissionsIndex(doc, roomID)
		perms := &doc.RoomPermissions[idx]

		if patch.AskAiEnabled != nil {
			perms.AskAiEnabled = *patch.AskAiEnabled
		}
		if patch.GrantUserID != "" {
			if !contains(perms.MemberAskAi, patch.GrantUserID) {
				perms.MemberAskAi = append(perms.MemberAskAi, patch.GrantUserID)
			}
		}
		if patch.RevokeUserID != "" {
			perms.MemberAskAi = remove(perms.MemberAskAi, patch.RevokeUserID)
		}

		updated = *perms
		return nil
	})
	if err != nil {
		return model.RoomPermissionItem{}, s.wrap(err, "failed to update permissions")
	}
	return updated, nil
}

// SetControl moves the control state machine. A nil controllerUserID
// releases control; a new controller replaces the previous one outright,
// with no handoff negotiation. The caller must be the owner or currently
// eligible to ask per CanAskAI.
func (s *Service) SetControl(ctx context.Context, roomID, callerID string, controllerUserID *string) (model.RoomControlItem, error) {
	var updated model.RoomControlItem
	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		room := findRoom(doc, roomID)
		if room == nil {
			return newError(ErrorCodeNotFound, "room not found", nil)
		}
		if !isMember(room, callerID) {
			return newError(ErrorCodeForbidden, "you are not a member of this room", nil)
		}

		perms := permissionsFor(doc, roomID)
		control := controlFor(doc, roomID)

		if callerID != room.OwnerUserID && !CanAskAI(room.OwnerUserID, perms, control, callerID) {
			return forbiddenControl(control)
		}

		if controllerUserID != nil && !isMember(room, *controllerUserID) {
			return newError(ErrorCodeValidation, "controller must be a room member", nil)
		}

		idx := controlIndex(doc, roomID)
		doc.RoomControls[idx].ControllerUserID = controllerUserID
		updated = doc.RoomControls[idx]
		return nil
	})
	if err != nil {
		return model.RoomControlItem{}, s.wrap(err, "failed to update control")
	}
	return updated, nil
}

// AskAI runs the authorization function against the current snapshot, then
// calls the generation service. The hop can take seconds; it is bounded by
// the generator's timeout, and callers convert errors into a failure event
// on the room channel.
func (s *Service) AskAI(ctx context.Context, roomID, callerID, question string) (AskAIResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return AskAIResult{}, newError(ErrorCodeValidation, "question is required", nil)
	}

	doc, err := s.repo.Read(ctx)
	if err != nil {
		return AskAIResult{}, s.wrap(err, "failed to load room")
	}

	room := findRoom(&doc, roomID)
	if room == nil {
		return AskAIResult{}, newError(ErrorCodeNotFound, "room not found", nil)
	}
	if !isMember(room, callerID) {
		return AskAIResult{}, newError(ErrorCodeForbidden, "you are not a member of this room", nil)
	}

	perms := permissionsFor(&doc, roomID)
	control := controlFor(&doc, roomID)

	if !CanAskAI(room.OwnerUserID, perms, control, callerID) {
		if control.ControllerUserID != nil {
			return AskAIResult{}, forbiddenControl(control)
		}
		return AskAIResult{}, newError(ErrorCodeForbidden, "asking the AI tutor is not enabled for you in this room", nil)
	}

	blocks, err := s.generator.GenerateBlocks(ctx, ai.Prompt{
		RoomID:   roomID,
		UserID:   callerID,
		Subject:  room.Subject,
		Question: question,
	})
	if err != nil {
		return AskAIResult{}, newError(ErrorCodeInternal, "tutor generation failed, try again later", err)
	}

	return AskAIResult{RoomID: roomID, Blocks: blocks}, nil
}

// forbiddenControl builds the NO_CONTROL error, carrying the active
// controller so clients can show who is holding the room.
func forbiddenControl(control model.RoomControlItem) *Error {
	details := map[string]interface{}{"controllerUserId": nil}
	if control.ControllerUserID != nil {
		details["controllerUserId"] = *control.ControllerUserID
	}
	return &Error{
		Code:    ErrorCodeForbidden,
		Message: "another user currently controls the AI tutor",
		Reason:  ReasonNoControl,
		Details: details,
	}
}

func (s *Service) wrap(err error, message string) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if errors.Is(err, store.ErrUnavailable) {
		return newError(ErrorCodeStore, "storage is unavailable, try again later", err)
	}
	return newError(ErrorCodeInternal, message, err)
}

func findUser(doc *model.Document, userID string) *model.UserItem {
	for i := range doc.Users {
		if doc.Users[i].UserID == userID {
			user := doc.Users[i]
			return &user
		}
	}
	return nil
}

func roomIndex(doc *model.Document, roomID string) int {
	for i := range doc.StudyRooms {
		if doc.StudyRooms[i].RoomID == roomID {
			return i
		}
	}
	return -1
}

func findRoom(doc *model.Document, roomID string) *model.StudyRoomItem {
	if idx := roomIndex(doc, roomID); idx >= 0 {
		return &doc.StudyRooms[idx]
	}
	return nil
}

// permissionsIndex backfills a default row for rooms created before the
// permissions section existed.
func permissionsIndex(doc *model.Document, roomID string) int {
	for i := range doc.RoomPermissions {
		if doc.RoomPermissions[i].RoomID == roomID {
			return i
		}
	}
	doc.RoomPermissions = append(doc.RoomPermissions, model.RoomPermissionItem{
		RoomID:       roomID,
		AskAiEnabled: true,
		MemberAskAi:  []string{},
	})
	return len(doc.RoomPermissions) - 1
}

func controlIndex(doc *model.Document, roomID string) int {
	for i := range doc.RoomControls {
		if doc.RoomControls[i].RoomID == roomID {
			return i
		}
	}
	doc.RoomControls = append(doc.RoomControls, model.RoomControlItem{RoomID: roomID})
	return len(doc.RoomControls) - 1
}

func permissionsFor(doc *model.Document, roomID string) model.RoomPermissionItem {
	for _, perms := range doc.RoomPermissions {
		if perms.RoomID == roomID {
			return perms
		}
	}
	return model.RoomPermissionItem{RoomID: roomID, AskAiEnabled: true, MemberAskAi: []string{}}
}

func controlFor(doc *model.Document, roomID string) model.RoomControlItem {
	for _, control := range doc.RoomControls {
		if control.RoomID == roomID {
			return control
		}
	}
	return model.RoomControlItem{RoomID: roomID}
}

func isMember(room *model.StudyRoomItem, userID string) bool {
	return contains(room.MemberUserIDs, userID)
}

func appendMember(room *model.StudyRoomItem, userID string) {
	if !contains(room.MemberUserIDs, userID) {
		room.MemberUserIDs = append(room.MemberUserIDs, userID)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func freeInviteCode(doc *model.Document) (string, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code := utils.CreateInviteCode()
		taken := false
		for _, room := range doc.StudyRooms {
			if strings.EqualFold(room.InviteCode, code) {
				taken = true
				break
			}
		}
		if !taken {
			return code, nil
		}
	}
	return "", newError(ErrorCodeInternal, "failed to generate a unique invite code", fmt.Errorf("exhausted %d attempts", inviteCodeAttempts))
}

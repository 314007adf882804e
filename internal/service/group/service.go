package group

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"tutor-app-backend/internal/idgen"
	"tutor-app-backend/internal/model"
	"tutor-app-backend/internal/store"
)

const (
	minNameLength = 3
	maxNameLength = 60
)

type Service struct {
	repo store.DocumentStore
	now  func() time.Time
}

func New(repo store.DocumentStore) *Service {
	return &Service{repo: repo, now: time.Now}
}

func NewWithClock(repo store.DocumentStore, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

func (s *Service) CreateGroupChat(ctx context.Context, ownerID, name, schoolID string) (model.GroupChatItem, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
		return model.GroupChatItem{}, newError(ErrorCodeValidation, "group name must be between 3 and 60 characters", nil)
	}

	now := s.now().UTC().Format(time.RFC3339)
	item := model.GroupChatItem{
		GroupID:       uuid.NewString(),
		Name:          name,
		OwnerUserID:   ownerID,
		MemberUserIDs: []string{ownerID},
		SchoolID:      schoolID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		if findUser(doc, ownerID) == nil {
			return newError(ErrorCodeNotFound, "owner not found", nil)
		}
		doc.GroupChats = append(doc.GroupChats, item)
		return nil
	})
	if err != nil {
		return model.GroupChatItem{}, s.wrap(err, "failed to create group chat")
	}
	return item, nil
}

// AddMember is owner-only and idempotent.
func (s *Service) AddMember(ctx context.Context, groupID, callerID, userID string) (model.GroupChatItem, error) {
	var updated model.GroupChatItem
	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		idx := groupIndex(doc, groupID)
		if idx < 0 {
			return newError(ErrorCodeNotFound, "group not found", nil)
		}
		group := &doc.GroupChats[idx]
		if group.OwnerUserID != callerID {
			return newError(ErrorCodeForbidden, "only the group owner can add members", nil)
		}
		if findUser(doc, userID) == nil {
			return newError(ErrorCodeNotFound, "user not found", nil)
		}
		if !contains(group.MemberUserIDs, userID) {
			group.MemberUserIDs = append(group.MemberUserIDs, userID)
		}
		updated = *group
		return nil
	})
	if err != nil {
		return model.GroupChatItem{}, s.wrap(err, "failed to add member")
	}
	return updated, nil
}

// RemoveMember is callable by the owner or by a member leaving on their own.
// The owner cannot be removed. Removal only filters the member list; the
// user's past messages stay in place.
func (s *Service) RemoveMember(ctx context.Context, groupID, callerID, userID string) (model.GroupChatItem, error) {
	var updated model.GroupChatItem
	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		idx := groupIndex(doc, groupID)
		if idx < 0 {
			return newError(ErrorCodeNotFound, "group not found", nil)
		}
		group := &doc.GroupChats[idx]
		if callerID != group.OwnerUserID && callerID != userID {
			return newError(ErrorCodeForbidden, "only the group owner can remove other members", nil)
		}
		if userID == group.OwnerUserID {
			return newError(ErrorCodeValidation, "the group owner cannot be removed", nil)
		}
		group.MemberUserIDs = remove(group.MemberUserIDs, userID)
		updated = *group
		return nil
	})
	if err != nil {
		return model.GroupChatItem{}, s.wrap(err, "failed to remove member")
	}
	return updated, nil
}

func (s *Service) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return false, s.wrap(err, "failed to load group")
	}
	idx := groupIndex(&doc, groupID)
	if idx < 0 {
		return false, nil
	}
	return contains(doc.GroupChats[idx].MemberUserIDs, userID), nil
}

// ListGroups returns the caller's groups, most recently active first.
func (s *Service) ListGroups(ctx context.Context, userID string) ([]model.GroupChatItem, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, s.wrap(err, "failed to load groups")
	}

	groups := make([]model.GroupChatItem, 0)
	for _, group := range doc.GroupChats {
		if contains(group.MemberUserIDs, userID) {
			groups = append(groups, group)
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].UpdatedAt > groups[j].UpdatedAt
	})
	return groups, nil
}

// PostMessage appends the message and bumps the group's UpdatedAt so the
// group sorts to the top of ListGroups.
func (s *Service) PostMessage(ctx context.Context, groupID, fromUserID, message string) (model.GroupMessageItem, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return model.GroupMessageItem{}, newError(ErrorCodeValidation, "message body is required", nil)
	}

	now := s.now().UTC().Format(time.RFC3339)
	item := model.GroupMessageItem{
		MessageID:  idgen.NewMessageID(),
		GroupID:    groupID,
		FromUserID: fromUserID,
		Message:    message,
		CreatedAt:  now,
	}

	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		idx := groupIndex(doc, groupID)
		if idx < 0 {
			return newError(ErrorCodeNotFound, "group not found", nil)
		}
		group := &doc.GroupChats[idx]
		if !contains(group.MemberUserIDs, fromUserID) {
			return newError(ErrorCodeForbidden, "you are not a member of this group", nil)
		}
		doc.GroupMessages = append(doc.GroupMessages, item)
		group.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.GroupMessageItem{}, s.wrap(err, "failed to post message")
	}
	return item, nil
}

func (s *Service) ListMessages(ctx context.Context, groupID, callerID string) ([]model.GroupMessageItem, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, s.wrap(err, "failed to load messages")
	}

	idx := groupIndex(&doc, groupID)
	if idx < 0 {
		return nil, newError(ErrorCodeNotFound, "group not found", nil)
	}
	if !contains(doc.GroupChats[idx].MemberUserIDs, callerID) {
		return nil, newError(ErrorCodeForbidden, "you are not a member of this group", nil)
	}

	messages := make([]model.GroupMessageItem, 0)
	for _, msg := range doc.GroupMessages {
		if msg.GroupID == groupID {
			messages = append(messages, msg)
		}
	}
	return messages, nil
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
			return &doc.Users[i]
		}
	}
	return nil
}

func groupIndex(doc *model.Document, groupID string) int {
	for i := range doc.GroupChats {
		if doc.GroupChats[i].GroupID == groupID {
			return i
		}
	}
	return -1
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

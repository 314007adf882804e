package dm

import (
	"context"
	"errors"
	"strings"
	"time"

	"tutor-app-backend/internal/idgen"
	"tutor-app-backend/internal/model"
	"tutor-app-backend/internal/store"
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

// RoomKey returns the conversation key for a user pair. Commutative:
// RoomKey(a, b) == RoomKey(b, a).
func RoomKey(a, b string) string {
	return model.DMRoomKey(a, b)
}

// AddFriend records a symmetric friendship. Adding an existing friendship
// is a no-op regardless of which side repeats it.
func (s *Service) AddFriend(ctx context.Context, userID, friendID string) error {
	if userID == friendID {
		return newError(ErrorCodeValidation, "cannot befriend yourself", nil)
	}

	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		if findUser(doc, userID) == nil || findUser(doc, friendID) == nil {
			return newError(ErrorCodeNotFound, "user not found", nil)
		}
		if friendshipExists(doc, userID, friendID) {
			return nil
		}
		doc.Friendships = append(doc.Friendships, model.FriendshipItem{
			AUserID:   userID,
			BUserID:   friendID,
			CreatedAt: s.now().UTC().Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		return s.wrap(err, "failed to add friend")
	}
	return nil
}

// RemoveFriend drops the friendship from either side; idempotent.
func (s *Service) RemoveFriend(ctx context.Context, userID, friendID string) error {
	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		kept := doc.Friendships[:0]
		for _, f := range doc.Friendships {
			if samePair(f, userID, friendID) {
				continue
			}
			kept = append(kept, f)
		}
		doc.Friendships = kept
		return nil
	})
	if err != nil {
		return s.wrap(err, "failed to remove friend")
	}
	return nil
}

func (s *Service) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return false, s.wrap(err, "failed to load friendships")
	}
	return friendshipExists(&doc, userID, friendID), nil
}

func (s *Service) ListFriends(ctx context.Context, userID string) ([]model.UserItem, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, s.wrap(err, "failed to load friendships")
	}

	friends := make([]model.UserItem, 0)
	for _, f := range doc.Friendships {
		var otherID string
		switch userID {
		case f.AUserID:
			otherID = f.BUserID
		case f.BUserID:
			otherID = f.AUserID
		default:
			continue
		}
		if other := findUser(&doc, otherID); other != nil {
			other.PasswordHash = ""
			friends = append(friends, *other)
		}
	}
	return friends, nil
}

// SendDM persists a direct message. The recipient must exist and the pair
// must be friends.
func (s *Service) SendDM(ctx context.Context, fromID, toID, message string) (model.DirectMessageItem, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return model.DirectMessageItem{}, newError(ErrorCodeValidation, "message body is required", nil)
	}
	if fromID == toID {
		return model.DirectMessageItem{}, newError(ErrorCodeValidation, "cannot message yourself", nil)
	}

	item := model.DirectMessageItem{
		MessageID:  idgen.NewMessageID(),
		RoomKey:    RoomKey(fromID, toID),
		FromUserID: fromID,
		ToUserID:   toID,
		Message:    message,
		CreatedAt:  s.now().UTC().Format(time.RFC3339),
	}

	_, err := s.repo.Mutate(ctx, func(doc *model.Document) error {
		if findUser(doc, toID) == nil {
			return newError(ErrorCodeNotFound, "recipient not found", nil)
		}
		if !friendshipExists(doc, fromID, toID) {
			return newError(ErrorCodeForbidden, "you can only message your friends", nil)
		}
		doc.DirectMessages = append(doc.DirectMessages, item)
		return nil
	})
	if err != nil {
		return model.DirectMessageItem{}, s.wrap(err, "failed to send message")
	}
	return item, nil
}

// ListDMs returns the conversation between the caller and the other user.
func (s *Service) ListDMs(ctx context.Context, callerID, otherID string) ([]model.DirectMessageItem, error) {
	doc, err := s.repo.Read(ctx)
	if err != nil {
		return nil, s.wrap(err, "failed to load messages")
	}

	key := RoomKey(callerID, otherID)
	messages := make([]model.DirectMessageItem, 0)
	for _, msg := range doc.DirectMessages {
		if msg.RoomKey == key {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// CanAccessConversation reports whether the user is one of the two sides of
// the given pair key. Used by the connection gateway to authorize dm
// channel joins.
func CanAccessConversation(pairKey, userID string) bool {
	parts := strings.SplitN(pairKey, ":", 2)
	if len(parts) != 2 {
		return false
	}
	return parts[0] == userID || parts[1] == userID
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

func friendshipExists(doc *model.Document, a, b string) bool {
	for _, f := range doc.Friendships {
		if samePair(f, a, b) {
			return true
		}
	}
	return false
}

func samePair(f model.FriendshipItem, a, b string) bool {
	return (f.AUserID == a && f.BUserID == b) || (f.AUserID == b && f.BUserID == a)
}

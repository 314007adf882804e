package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tutor-app-backend/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSeedsEmptySections(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if doc.Users == nil || doc.StudyRooms == nil || doc.RoomPermissions == nil ||
		doc.RoomControls == nil || doc.GroupChats == nil || doc.GroupMessages == nil ||
		doc.Friendships == nil || doc.DirectMessages == nil || doc.RoomMessages == nil {
		t.Fatalf("seeded document has nil sections: %+v", doc)
	}
	if doc.Version != model.DocumentVersion {
		t.Fatalf("expected version %d, got %d", model.DocumentVersion, doc.Version)
	}
}

func TestMigratesOlderDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	// An older store knows nothing about permissions, controls or groups.
	legacy := `{"users":[{"userId":"u1","displayName":"Ada","email":"ada@example.com","role":"student","createdAt":"2024-01-01T00:00:00Z"}],"studyRooms":[]}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy store: %v", err)
	}

	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	doc, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(doc.Users) != 1 {
		t.Fatalf("expected existing user to survive migration, got %d users", len(doc.Users))
	}
	if doc.RoomPermissions == nil || doc.RoomControls == nil || doc.GroupChats == nil {
		t.Fatal("migration did not add missing sections")
	}
}

func TestMutatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = s.Mutate(context.Background(), func(doc *model.Document) error {
		doc.StudyRooms = append(doc.StudyRooms, model.StudyRoomItem{
			RoomID:        "r1",
			Name:          "Algebra",
			Subject:       "math",
			OwnerUserID:   "u1",
			MemberUserIDs: []string{"u1"},
			InviteCode:    "ABCD2345",
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	s.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	doc, err := reopened.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(doc.StudyRooms) != 1 || doc.StudyRooms[0].RoomID != "r1" {
		t.Fatalf("expected persisted room, got %+v", doc.StudyRooms)
	}
}

func TestFailedMutationLeavesDocumentUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Mutate(ctx, func(doc *model.Document) error {
		doc.Users = append(doc.Users, model.UserItem{UserID: "u1"})
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected mutation error")
	}

	doc, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(doc.Users) != 0 {
		t.Fatalf("failed mutation leaked into document: %+v", doc.Users)
	}
}

func TestReadReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	doc.Users = append(doc.Users, model.UserItem{UserID: "sneaky"})

	again, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(again.Users) != 0 {
		t.Fatal("mutating a Read result leaked into the store")
	}
}

// Concurrent mutations must end in the same document as applying the same
// operations sequentially: every append survives, no lost updates.
func TestConcurrentMutationsAreSerialized(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const writers = 32
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := s.Mutate(ctx, func(doc *model.Document) error {
				doc.Users = append(doc.Users, model.UserItem{
					UserID:      fmt.Sprintf("u%d", i),
					DisplayName: fmt.Sprintf("user %d", i),
				})
				return nil
			})
			if err != nil {
				t.Errorf("Mutate %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	doc, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(doc.Users) != writers {
		t.Fatalf("expected %d users after concurrent writes, got %d", writers, len(doc.Users))
	}
	seen := make(map[string]bool)
	for _, u := range doc.Users {
		if seen[u.UserID] {
			t.Fatalf("duplicate user %s", u.UserID)
		}
		seen[u.UserID] = true
	}
}

// Each queued mutation must observe the result of the previous one even when
// submissions race: a chain of increments encoded as appends never skips.
func TestMutationsObservePriorResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const rounds = 20
	var wg sync.WaitGroup
	wg.Add(rounds)
	for i := 0; i < rounds; i++ {
		go func() {
			defer wg.Done()
			_, err := s.Mutate(ctx, func(doc *model.Document) error {
				// Every mutation appends a message numbered by what it sees.
				doc.RoomMessages = append(doc.RoomMessages, model.RoomMessageItem{
					MessageID: fmt.Sprintf("m%d", len(doc.RoomMessages)),
					RoomID:    "r1",
				})
				return nil
			})
			if err != nil {
				t.Errorf("Mutate: %v", err)
			}
		}()
	}
	wg.Wait()

	doc, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(doc.RoomMessages) != rounds {
		t.Fatalf("expected %d messages, got %d", rounds, len(doc.RoomMessages))
	}
	for i, msg := range doc.RoomMessages {
		if msg.MessageID != fmt.Sprintf("m%d", i) {
			t.Fatalf("message %d observed a stale document: id %s", i, msg.MessageID)
		}
	}
}

func TestMutateHonorsContext(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Mutate(ctx, func(doc *model.Document) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The store keeps serving callers with live contexts.
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if _, err := s.Read(ctx2); err != nil {
		t.Fatalf("Read after canceled Mutate: %v", err)
	}
}

package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ndudnik/pairchat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createUser(t *testing.T, s *SQLiteStore, username string) *store.User {
	t.Helper()

	user, err := s.CreateUser(context.Background(), username, "hash")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func createMessage(t *testing.T, s *SQLiteStore, convID string, senderID, receiverID int64, content string) *store.Message {
	t.Helper()

	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := s.CreateMessage(context.Background(), msg); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	return msg
}

func TestUserCRUDAndPresence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	if alice.IsOnline {
		t.Fatalf("new user should be offline")
	}

	byName, err := s.GetUserByUsername(ctx, "alice")
	if err != nil || byName.ID != alice.ID {
		t.Fatalf("lookup by username failed: %v", err)
	}

	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	lastSeen := time.Now().UTC().Truncate(time.Second)
	if err := s.SetPresence(ctx, alice.ID, true, lastSeen); err != nil {
		t.Fatalf("set presence: %v", err)
	}
	updated, err := s.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !updated.IsOnline {
		t.Fatalf("expected online flag set")
	}

	if err := s.SetPresence(ctx, 999, true, lastSeen); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestListUsersExcludesCaller(t *testing.T) {
	s := newTestStore(t)

	alice := createUser(t, s, "alice")
	createUser(t, s, "bob")
	createUser(t, s, "carol")

	users, err := s.ListUsers(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.ID == alice.ID {
			t.Fatalf("caller must be excluded")
		}
	}
}

func TestConversationPairKeyDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	key := store.PairKey(alice.ID, bob.ID)
	first, err := s.CreateConversation(ctx, key, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	// Same pair in either order resolves to the same conversation.
	second, err := s.CreateConversation(ctx, store.PairKey(bob.ID, alice.ID), bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("create conversation again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected idempotent creation, got %s and %s", first.ID, second.ID)
	}

	byKey, err := s.GetConversationByPairKey(ctx, key)
	if err != nil || byKey.ID != first.ID {
		t.Fatalf("lookup by pair key failed: %v", err)
	}
}

func TestListConversationsOrdersByActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	carol := createUser(t, s, "carol")

	withBob, err := s.CreateConversation(ctx, store.PairKey(alice.ID, bob.ID), alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	withCarol, err := s.CreateConversation(ctx, store.PairKey(alice.ID, carol.ID), alice.ID, carol.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	msg := createMessage(t, s, withBob.ID, alice.ID, bob.ID, "hi")
	if err := s.SetLastMessage(ctx, withBob.ID, msg.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("set last message: %v", err)
	}

	conversations, err := s.ListConversations(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(conversations))
	}
	if conversations[0].ID != withBob.ID {
		t.Fatalf("expected most recently active first, got %s", conversations[0].ID)
	}
	if conversations[0].LastMessageID == nil || *conversations[0].LastMessageID != msg.ID {
		t.Fatalf("expected last message pointer set")
	}
	_ = withCarol
}

func TestMessagePaginationOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	conv, err := s.CreateConversation(ctx, store.PairKey(alice.ID, bob.ID), alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	var ids []string
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		msg := &store.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			SenderID:       alice.ID,
			ReceiverID:     bob.ID,
			Content:        "m",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("create message: %v", err)
		}
		ids = append(ids, msg.ID)
	}

	page, err := s.ListMessages(ctx, conv.ID, 2, nil)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[3] || page[1].ID != ids[4] {
		t.Fatalf("expected the two newest in chronological order, got %+v", page)
	}

	older, err := s.ListMessages(ctx, conv.ID, 2, &page[0].ID)
	if err != nil {
		t.Fatalf("list older messages: %v", err)
	}
	if len(older) != 2 || older[0].ID != ids[1] || older[1].ID != ids[2] {
		t.Fatalf("expected the preceding page, got %+v", older)
	}
}

func TestMarkDeliveredAndReadIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	conv, err := s.CreateConversation(ctx, store.PairKey(alice.ID, bob.ID), alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	msg := createMessage(t, s, conv.ID, alice.ID, bob.ID, "hi")

	first, err := s.MarkDelivered(ctx, msg.ID)
	if err != nil || !first.Delivered {
		t.Fatalf("mark delivered: %v %+v", err, first)
	}
	again, err := s.MarkDelivered(ctx, msg.ID)
	if err != nil || !again.Delivered {
		t.Fatalf("second mark delivered: %v %+v", err, again)
	}

	readAt := time.Now()
	read, err := s.MarkRead(ctx, msg.ID, readAt)
	if err != nil || !read.Read || read.ReadAt == nil {
		t.Fatalf("mark read: %v %+v", err, read)
	}
	if !read.Delivered {
		t.Fatalf("read must imply delivered")
	}

	if _, err := s.MarkDelivered(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.MarkRead(ctx, "missing", readAt); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListUndelivered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	conv, err := s.CreateConversation(ctx, store.PairKey(alice.ID, bob.ID), alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	pending := createMessage(t, s, conv.ID, alice.ID, bob.ID, "pending")
	done := createMessage(t, s, conv.ID, alice.ID, bob.ID, "done")
	if _, err := s.MarkDelivered(ctx, done.ID); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}

	undelivered, err := s.ListUndelivered(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(undelivered) != 1 || undelivered[0].ID != pending.ID {
		t.Fatalf("expected only the pending message, got %+v", undelivered)
	}

	// Nothing pending for the sender.
	none, err := s.ListUndelivered(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no pending messages for alice, got %d", len(none))
	}
}

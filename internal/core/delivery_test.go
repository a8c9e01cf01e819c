package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ndudnik/pairchat-server/internal/store"
)

func seedMessage(t *testing.T, st store.Store, conv *store.Conversation, senderID, receiverID int64) *store.Message {
	t.Helper()

	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        "hi",
		CreatedAt:      time.Now(),
	}
	if err := st.CreateMessage(context.Background(), msg); err != nil {
		t.Fatalf("create message: %v", err)
	}
	return msg
}

func TestMarkDeliveredNotifiesSender(t *testing.T) {
	st := newTestStore(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	conv := seedConversation(t, st, alice.ID, bob.ID)
	msg := seedMessage(t, st, conv, alice.ID, bob.ID)

	registry := NewRegistry()
	delivery := NewDelivery(registry, st, testLogger())

	aliceSession := NewSession(alice.ID, alice.Username, 0)
	registry.Admit(aliceSession)

	delivery.MarkDelivered(context.Background(), msg.ID, conv.ID)

	ev := mustEvent(t, aliceSession, EventMessageDelivered)
	if ev.Receipt.MessageID != msg.ID || ev.Receipt.ConversationID != conv.ID {
		t.Fatalf("unexpected receipt: %+v", ev.Receipt)
	}

	stored, err := st.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("load message: %v", err)
	}
	if !stored.Delivered {
		t.Fatalf("expected delivered marker set")
	}
	if stored.Read {
		t.Fatalf("delivered must not imply read")
	}
}

func TestMarkReadSetsBothMarkersAndNotifies(t *testing.T) {
	st := newTestStore(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	conv := seedConversation(t, st, alice.ID, bob.ID)
	msg := seedMessage(t, st, conv, alice.ID, bob.ID)

	registry := NewRegistry()
	delivery := NewDelivery(registry, st, testLogger())

	aliceSession := NewSession(alice.ID, alice.Username, 0)
	registry.Admit(aliceSession)

	delivery.MarkRead(context.Background(), msg.ID, conv.ID)

	ev := mustEvent(t, aliceSession, EventMessageRead)
	if ev.Receipt.MessageID != msg.ID || ev.Receipt.ReadAt == nil {
		t.Fatalf("unexpected receipt: %+v", ev.Receipt)
	}

	stored, err := st.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("load message: %v", err)
	}
	if !stored.Read || stored.ReadAt == nil {
		t.Fatalf("expected read marker set")
	}
	// Read implies delivered.
	if !stored.Delivered {
		t.Fatalf("expected delivered marker set by read")
	}
}

func TestMarkTransitionsAreIdempotent(t *testing.T) {
	st := newTestStore(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	conv := seedConversation(t, st, alice.ID, bob.ID)
	msg := seedMessage(t, st, conv, alice.ID, bob.ID)

	registry := NewRegistry()
	delivery := NewDelivery(registry, st, testLogger())
	ctx := context.Background()

	delivery.MarkDelivered(ctx, msg.ID, conv.ID)
	delivery.MarkDelivered(ctx, msg.ID, conv.ID)
	delivery.MarkRead(ctx, msg.ID, conv.ID)
	delivery.MarkRead(ctx, msg.ID, conv.ID)

	stored, err := st.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("load message: %v", err)
	}
	if !stored.Delivered || !stored.Read {
		t.Fatalf("expected both markers set, got %+v", stored)
	}
}

func TestMarkUnknownMessageIsNoOp(t *testing.T) {
	st := newTestStore(t)
	alice := seedUser(t, st, "alice")

	registry := NewRegistry()
	delivery := NewDelivery(registry, st, testLogger())

	aliceSession := NewSession(alice.ID, alice.Username, 0)
	registry.Admit(aliceSession)

	// Fire-and-forget: unknown IDs are absorbed, nothing notified.
	delivery.MarkDelivered(context.Background(), "missing", "conv-1")
	delivery.MarkRead(context.Background(), "missing", "conv-1")

	mustNoEvent(t, aliceSession)
}

func TestMarkWithOfflineSenderStillPersists(t *testing.T) {
	st := newTestStore(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	conv := seedConversation(t, st, alice.ID, bob.ID)
	msg := seedMessage(t, st, conv, alice.ID, bob.ID)

	registry := NewRegistry()
	delivery := NewDelivery(registry, st, testLogger())

	delivery.MarkDelivered(context.Background(), msg.ID, conv.ID)

	stored, err := st.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("load message: %v", err)
	}
	if !stored.Delivered {
		t.Fatalf("expected delivered marker set even with sender offline")
	}
}

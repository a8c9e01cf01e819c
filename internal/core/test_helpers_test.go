package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndudnik/pairchat-server/internal/store"
	"github.com/ndudnik/pairchat-server/internal/store/sqlite"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return &logger
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedUser(t *testing.T, st store.Store, username string) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), username, "hash")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func seedConversation(t *testing.T, st store.Store, a, b int64) *store.Conversation {
	t.Helper()

	conv, err := st.CreateConversation(context.Background(), store.PairKey(a, b), a, b)
	if err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}
	return conv
}

func mustEvent(t *testing.T, session *Session, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-session.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

func mustNoEvent(t *testing.T, session *Session) {
	t.Helper()

	select {
	case ev := <-session.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

package core

import "testing"

func TestTypingRelayForwardsToLivePeer(t *testing.T) {
	registry := NewRegistry()
	relay := NewTypingRelay(registry)

	bobSession := NewSession(2, "bob", 0)
	registry.Admit(bobSession)

	relay.Start(1, 2, "conv-1")
	ev := mustEvent(t, bobSession, EventTypingStart)
	if ev.Typing.UserID != 1 || ev.Typing.ConversationID != "conv-1" {
		t.Fatalf("unexpected typing event: %+v", ev.Typing)
	}

	relay.Stop(1, 2, "conv-1")
	ev = mustEvent(t, bobSession, EventTypingStop)
	if ev.Typing.UserID != 1 {
		t.Fatalf("unexpected typing event: %+v", ev.Typing)
	}
}

func TestTypingRelayDropsForOfflinePeer(t *testing.T) {
	registry := NewRegistry()
	relay := NewTypingRelay(registry)

	aliceSession := NewSession(1, "alice", 0)
	registry.Admit(aliceSession)

	// Peer 2 has no session; both signals vanish without error.
	relay.Start(1, 2, "conv-1")
	relay.Stop(1, 2, "conv-1")

	mustNoEvent(t, aliceSession)
}

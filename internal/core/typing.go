package core

// TypingRelay forwards ephemeral typing signals between exactly two peers.
// Nothing is stored, buffered, or deduplicated; a signal to an unreachable
// peer is silently dropped. The sending client is responsible for
// eventually emitting stop.
type TypingRelay struct {
	registry *Registry
}

// NewTypingRelay constructs a typing relay over the given registry.
func NewTypingRelay(registry *Registry) *TypingRelay {
	return &TypingRelay{registry: registry}
}

// Start relays a typing-start signal from one peer to the other.
func (t *TypingRelay) Start(fromUserID, toUserID int64, conversationID string) {
	t.relay(EventTypingStart, fromUserID, toUserID, conversationID)
}

// Stop relays a typing-stop signal from one peer to the other.
func (t *TypingRelay) Stop(fromUserID, toUserID int64, conversationID string) {
	t.relay(EventTypingStop, fromUserID, toUserID, conversationID)
}

func (t *TypingRelay) relay(kind EventKind, fromUserID, toUserID int64, conversationID string) {
	session := t.registry.Lookup(toUserID)
	if session == nil {
		return
	}
	session.Deliver(&Event{
		Kind:   kind,
		Typing: &Typing{UserID: fromUserID, ConversationID: conversationID},
	})
}

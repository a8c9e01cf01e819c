package core

import (
	"time"

	"github.com/ndudnik/pairchat-server/internal/store"
)

// EventKind is a notification the core emits to sessions.
type EventKind int

const (
	// EventMessageNew delivers a freshly sent message to its receiver.
	EventMessageNew EventKind = iota
	// EventMessageDelivered tells the original sender the receiver got the message.
	EventMessageDelivered
	// EventMessageRead tells the original sender the receiver read the message.
	EventMessageRead
	// EventTypingStart tells the peer the other participant started typing.
	EventTypingStart
	// EventTypingStop tells the peer the other participant stopped typing.
	EventTypingStop
	// EventUserOnline announces a user coming online to all other sessions.
	EventUserOnline
	// EventUserOffline announces a user going offline to all other sessions.
	EventUserOffline
)

// Event is sent to sessions to describe what happened in the system.
type Event struct {
	Kind EventKind

	// Message is set for EventMessageNew.
	Message *store.Message

	// Receipt is set for EventMessageDelivered and EventMessageRead.
	Receipt *Receipt

	// Typing is set for EventTypingStart and EventTypingStop.
	Typing *Typing

	// Presence is set for EventUserOnline and EventUserOffline.
	Presence *Presence
}

// Receipt carries a delivery-marker transition back to the message sender.
type Receipt struct {
	MessageID      string
	ConversationID string
	ReadAt         *time.Time
}

// Typing is the transient typing signal. Never persisted.
type Typing struct {
	UserID         int64
	ConversationID string
}

// Presence announces a user's online state change.
type Presence struct {
	UserID   int64
	IsOnline bool
	LastSeen *time.Time
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsOnline     bool
	LastSeen     time.Time
	CreatedAt    time.Time
}

// Conversation is a 1:1 thread between exactly two users.
// PairKey is "dm:{minUserID}:{maxUserID}" and makes creation idempotent.
type Conversation struct {
	ID            string
	PairKey       string
	UserAID       int64
	UserBID       int64
	LastMessageID *string
	LastMessageAt time.Time
	CreatedAt     time.Time
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID int64) int64 {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID int64) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// PairKey builds the canonical dedup key for a participant pair.
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%d:%d", a, b)
}

// Message is a persisted chat message with its delivery markers.
// Delivered and Read only ever move from unset to set.
type Message struct {
	ID             string
	ConversationID string
	SenderID       int64
	ReceiverID     int64
	Content        string
	Delivered      bool
	Read           bool
	ReadAt         *time.Time
	CreatedAt      time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ListUsers lists all users except excludeID, ordered by username.
	ListUsers(ctx context.Context, excludeID int64) ([]*User, error)

	// SetPresence updates a user's online flag and last-seen timestamp.
	SetPresence(ctx context.Context, userID int64, online bool, lastSeen time.Time) error
}

// ConversationStore handles conversation persistence.
type ConversationStore interface {
	// CreateConversation creates a conversation between two users.
	// Returns the existing conversation if the pair key is already taken.
	CreateConversation(ctx context.Context, pairKey string, userA, userB int64) (*Conversation, error)

	// GetConversationByID retrieves a conversation by ID.
	GetConversationByID(ctx context.Context, id string) (*Conversation, error)

	// GetConversationByPairKey retrieves a conversation by its pair key.
	GetConversationByPairKey(ctx context.Context, pairKey string) (*Conversation, error)

	// ListConversations lists a user's conversations, most recently active first.
	ListConversations(ctx context.Context, userID int64) ([]*Conversation, error)

	// SetLastMessage updates the conversation's last-message pointer.
	SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error
}

// MessageStore handles message persistence and delivery markers.
type MessageStore interface {
	// CreateMessage persists a new message.
	CreateMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// ListMessages retrieves messages from a conversation, oldest first.
	// If before is non-nil, only messages created strictly before that
	// message are returned. Limit caps the result size.
	ListMessages(ctx context.Context, conversationID string, limit int, before *string) ([]*Message, error)

	// MarkDelivered idempotently sets the delivered marker and returns the
	// updated message. Returns ErrNotFound for an unknown ID.
	MarkDelivered(ctx context.Context, id string) (*Message, error)

	// MarkRead idempotently sets the read marker (and delivered, since a
	// read message has necessarily reached the receiver) and returns the
	// updated message. Returns ErrNotFound for an unknown ID.
	MarkRead(ctx context.Context, id string, at time.Time) (*Message, error)

	// ListUndelivered returns messages addressed to receiverID that were
	// never delivered, oldest first. Lets a reconnecting client reconcile.
	ListUndelivered(ctx context.Context, receiverID int64) ([]*Message, error)
}

// Store combines all storage interfaces.
type Store interface {
	UserStore
	ConversationStore
	MessageStore

	// Close releases underlying resources.
	Close() error
}

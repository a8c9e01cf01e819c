package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ndudnik/pairchat-server/internal/store"
)

// Sender validates and persists new messages, keeps the owning
// conversation's summary pointer current, and routes the message to the
// receiver's live session.
type Sender struct {
	registry      *Registry
	messages      store.MessageStore
	conversations store.ConversationStore
	log           *zerolog.Logger
}

// NewSender constructs the send pipeline.
func NewSender(registry *Registry, messages store.MessageStore, conversations store.ConversationStore, logger *zerolog.Logger) *Sender {
	return &Sender{
		registry:      registry,
		messages:      messages,
		conversations: conversations,
		log:           logger,
	}
}

// Send runs the pipeline for one message and returns the persisted record.
// Validation and persistence failures abort fail-fast; the caller reports
// them through its acknowledgement path. There is no automatic retry.
func (s *Sender) Send(ctx context.Context, conversationID string, senderID, receiverID int64, content string) (*store.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, coreError(ErrCodeEmptyContent, "message content is empty")
	}
	if conversationID == "" {
		return nil, coreError(ErrCodeBadRequest, "conversation id is required")
	}
	if receiverID == 0 {
		return nil, coreError(ErrCodeBadRequest, "receiver id is required")
	}

	now := time.Now()
	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		// Point-in-time check: the receiver may connect between here and
		// the write, in which case the row stays delivered=false and the
		// receiver reconciles through the undelivered pull.
		Delivered: s.registry.Lookup(receiverID) != nil,
		CreatedAt: now,
	}

	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	// Not atomic with the insert. A stale pointer is recoverable from the
	// newest message in the conversation.
	if err := s.conversations.SetLastMessage(ctx, conversationID, msg.ID, now); err != nil {
		return nil, err
	}

	// Re-checked rather than reused to narrow the race window.
	if session := s.registry.Lookup(receiverID); session != nil {
		if !session.Deliver(&Event{Kind: EventMessageNew, Message: msg}) {
			s.log.Debug().Str("message_id", msg.ID).Int64("receiver_id", receiverID).Msg("dropped message event")
		}
	}

	return msg, nil
}

package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndudnik/pairchat-server/internal/store"
)

// Delivery owns the Sent -> Delivered -> Read lifecycle of a message.
// Both transitions are monotonic and idempotent; an unknown message ID is
// absorbed as a no-op since these events have no acknowledgement channel.
type Delivery struct {
	registry *Registry
	messages store.MessageStore
	log      *zerolog.Logger
}

// NewDelivery constructs the delivery state machine.
func NewDelivery(registry *Registry, messages store.MessageStore, logger *zerolog.Logger) *Delivery {
	return &Delivery{
		registry: registry,
		messages: messages,
		log:      logger,
	}
}

// MarkDelivered sets the delivered marker on the message and notifies the
// original sender's live session, if any.
func (d *Delivery) MarkDelivered(ctx context.Context, messageID, conversationID string) {
	msg, err := d.messages.MarkDelivered(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.log.Debug().Str("message_id", messageID).Msg("delivered for unknown message")
			return
		}
		d.log.Warn().Err(err).Str("message_id", messageID).Msg("mark delivered")
		return
	}

	d.notifySender(msg.SenderID, &Event{
		Kind: EventMessageDelivered,
		Receipt: &Receipt{
			MessageID:      messageID,
			ConversationID: conversationID,
		},
	})
}

// MarkRead sets the read marker (which implies delivered) with the current
// time and notifies the original sender's live session, if any.
func (d *Delivery) MarkRead(ctx context.Context, messageID, conversationID string) {
	readAt := time.Now()
	msg, err := d.messages.MarkRead(ctx, messageID, readAt)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.log.Debug().Str("message_id", messageID).Msg("read for unknown message")
			return
		}
		d.log.Warn().Err(err).Str("message_id", messageID).Msg("mark read")
		return
	}

	if msg.ReadAt != nil {
		readAt = *msg.ReadAt
	}
	d.notifySender(msg.SenderID, &Event{
		Kind: EventMessageRead,
		Receipt: &Receipt{
			MessageID:      messageID,
			ConversationID: conversationID,
			ReadAt:         &readAt,
		},
	})
}

func (d *Delivery) notifySender(senderID int64, event *Event) {
	session := d.registry.Lookup(senderID)
	if session == nil {
		return
	}
	session.Deliver(event)
}

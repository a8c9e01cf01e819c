package http

import (
	"errors"
	"strings"

	"github.com/ndudnik/pairchat-server/internal/core"
	"github.com/ndudnik/pairchat-server/internal/proto"
	"github.com/ndudnik/pairchat-server/internal/store"
)

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func sendAck(ref string, data *proto.AckData) *proto.Outbound {
	return &proto.Outbound{Type: proto.OutboundAck, Ref: ref, Data: data}
}

func protocolError(ref, code, msg string) *proto.Outbound {
	return &proto.Outbound{
		Type:  proto.OutboundError,
		Ref:   ref,
		Error: &proto.Error{Code: code, Msg: msg},
	}
}

// ackError renders a send failure for the acknowledgement callback.
// Core validation errors keep their message; anything else is opaque.
func ackError(err error) string {
	var coreErr *core.CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Message
	}
	return "failed to send message"
}

func messageDTO(m *store.Message) *proto.MessageDTO {
	dto := &proto.MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		Delivered:      m.Delivered,
		Read:           m.Read,
		CreatedAt:      m.CreatedAt.Unix(),
	}
	if m.ReadAt != nil {
		readAt := m.ReadAt.Unix()
		dto.ReadAt = &readAt
	}
	return dto
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessageNew:
		return proto.Outbound{
			Type: proto.OutboundMessageNew,
			Data: messageDTO(event.Message),
		}
	case core.EventMessageDelivered:
		return proto.Outbound{
			Type: proto.OutboundMessageDelivered,
			Data: proto.ReceiptEvent{
				MessageID:      event.Receipt.MessageID,
				ConversationID: event.Receipt.ConversationID,
			},
		}
	case core.EventMessageRead:
		receipt := proto.ReceiptEvent{
			MessageID:      event.Receipt.MessageID,
			ConversationID: event.Receipt.ConversationID,
		}
		if event.Receipt.ReadAt != nil {
			readAt := event.Receipt.ReadAt.Unix()
			receipt.ReadAt = &readAt
		}
		return proto.Outbound{
			Type: proto.OutboundMessageRead,
			Data: receipt,
		}
	case core.EventTypingStart, core.EventTypingStop:
		outType := proto.OutboundTypingStart
		if event.Kind == core.EventTypingStop {
			outType = proto.OutboundTypingStop
		}
		return proto.Outbound{
			Type: outType,
			Data: proto.TypingEvent{
				UserID:         event.Typing.UserID,
				ConversationID: event.Typing.ConversationID,
			},
		}
	case core.EventUserOnline, core.EventUserOffline:
		outType := proto.OutboundUserOnline
		if event.Kind == core.EventUserOffline {
			outType = proto.OutboundUserOffline
		}
		presence := proto.PresenceEvent{
			UserID:   event.Presence.UserID,
			IsOnline: event.Presence.IsOnline,
		}
		if event.Presence.LastSeen != nil {
			lastSeen := event.Presence.LastSeen.Unix()
			presence.LastSeen = &lastSeen
		}
		return proto.Outbound{
			Type: outType,
			Data: presence,
		}
	default:
		return proto.Outbound{
			Type:  proto.OutboundError,
			Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown event"},
		}
	}
}

package proto

import "encoding/json"

// Inbound is the envelope for events coming from the client. Ref, when set
// on message:send, correlates the server's ack with the request.
type Inbound struct {
	Type string          `json:"type"`
	Ref  string          `json:"ref,omitempty"`
	Data json.RawMessage `json:"data"`
}

// Inbound event types.
const (
	InboundMessageSend      = "message:send"
	InboundMessageDelivered = "message:delivered"
	InboundMessageRead      = "message:read"
	InboundTypingStart      = "typing:start"
	InboundTypingStop       = "typing:stop"
)

// Outbound event types.
const (
	OutboundAck              = "ack"
	OutboundError            = "error"
	OutboundMessageNew       = "message:new"
	OutboundMessageDelivered = "message:delivered"
	OutboundMessageRead      = "message:read"
	OutboundTypingStart      = "typing:start"
	OutboundTypingStop       = "typing:stop"
	OutboundUserOnline       = "user:online"
	OutboundUserOffline      = "user:offline"
)

// SendData carries a new message from the client.
type SendData struct {
	ConversationID string `json:"conversationId"`
	ReceiverID     int64  `json:"receiverId"`
	Content        string `json:"content"`
}

// ReceiptData marks a message delivered or read.
type ReceiptData struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

// TypingData signals the peer about typing activity.
type TypingData struct {
	ReceiverID     int64  `json:"receiverId"`
	ConversationID string `json:"conversationId"`
}

// Outbound is the envelope for events sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Ref   string `json:"ref,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// AckData acknowledges a message:send. Message is set on success.
type AckData struct {
	Success bool        `json:"success"`
	Message *MessageDTO `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// MessageDTO is the wire form of a persisted message.
type MessageDTO struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	SenderID       int64  `json:"senderId"`
	ReceiverID     int64  `json:"receiverId"`
	Content        string `json:"content"`
	Delivered      bool   `json:"delivered"`
	Read           bool   `json:"read"`
	ReadAt         *int64 `json:"readAt,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

// ReceiptEvent notifies the original sender about a marker transition.
type ReceiptEvent struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	ReadAt         *int64 `json:"readAt,omitempty"`
}

// TypingEvent notifies the peer about typing activity.
type TypingEvent struct {
	UserID         int64  `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// PresenceEvent announces a user's online state change.
type PresenceEvent struct {
	UserID   int64  `json:"userId"`
	IsOnline bool   `json:"isOnline"`
	LastSeen *int64 `json:"lastSeen,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

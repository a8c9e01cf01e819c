package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ndudnik/pairchat-server/internal/store"
)

// ConversationHandlers provides HTTP handlers for conversation and message
// CRUD endpoints.
type ConversationHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewConversationHandlers creates a new conversation handlers instance.
func NewConversationHandlers(st store.Store, logger *zerolog.Logger) *ConversationHandlers {
	return &ConversationHandlers{
		store: st,
		log:   logger,
	}
}

// CreateConversationRequest asks for a conversation with another user.
type CreateConversationRequest struct {
	ParticipantID int64 `json:"participantId" binding:"required"`
}

// ConversationResponse is the wire form of a conversation.
type ConversationResponse struct {
	ID            string  `json:"id"`
	ParticipantIDs []int64 `json:"participantIds"`
	LastMessageID *string `json:"lastMessageId,omitempty"`
	LastMessageAt int64   `json:"lastMessageAt"`
	CreatedAt     int64   `json:"createdAt"`
}

func conversationResponse(c *store.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:             c.ID,
		ParticipantIDs: []int64{c.UserAID, c.UserBID},
		LastMessageID:  c.LastMessageID,
		LastMessageAt:  c.LastMessageAt.Unix(),
		CreatedAt:      c.CreatedAt.Unix(),
	}
}

// MessageResponse is the wire form of a message.
type MessageResponse struct {
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

func messageResponse(m *store.Message) MessageResponse {
	resp := MessageResponse{
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
		resp.ReadAt = &readAt
	}
	return resp
}

// GetOrCreateConversation returns the conversation with the given
// participant, creating it lazily on first contact. Idempotent via the
// canonical pair key.
// POST /api/conversations
func (h *ConversationHandlers) GetOrCreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "participant id is required"})
		return
	}

	userID := currentUserID(c)
	if req.ParticipantID == userID {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot start a conversation with yourself"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetUserByID(ctx, req.ParticipantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "participant not found"})
			return
		}
		h.log.Error().Err(err).Int64("participant_id", req.ParticipantID).Msg("failed to load participant")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	conv, err := h.store.CreateConversation(ctx, store.PairKey(userID, req.ParticipantID), userID, req.ParticipantID)
	if err != nil {
		h.log.Error().Err(err).Int64("participant_id", req.ParticipantID).Msg("failed to create conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conversationResponse(conv)})
}

// ListConversations returns the caller's conversations, most recently
// active first.
// GET /api/conversations
func (h *ConversationHandlers) ListConversations(c *gin.Context) {
	conversations, err := h.store.ListConversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list conversations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		resp = append(resp, conversationResponse(conv))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": resp})
}

// ListMessages returns a page of messages from a conversation the caller
// participates in, oldest first. Query params: limit, before (message id).
// GET /api/conversations/:id/messages
func (h *ConversationHandlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	convID := c.Param("id")

	conv, err := h.store.GetConversationByID(ctx, convID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
			return
		}
		h.log.Error().Err(err).Str("conversation_id", convID).Msg("failed to load conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if !conv.HasParticipant(currentUserID(c)) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	var before *string
	if raw := c.Query("before"); raw != "" {
		before = &raw
	}

	messages, err := h.store.ListMessages(ctx, convID, limit, before)
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", convID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, messageResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// ListUndelivered returns messages addressed to the caller that were never
// delivered over a live session. A reconnecting client pulls these once to
// reconcile deliveries missed while offline.
// GET /api/messages/undelivered
func (h *ConversationHandlers) ListUndelivered(c *gin.Context) {
	messages, err := h.store.ListUndelivered(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list undelivered messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, messageResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

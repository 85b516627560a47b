package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/amity-server/internal/core"
	"github.com/vovakirdan/amity-server/internal/store"
)

// ChatHandlers provides HTTP handlers for chat and history endpoints.
type ChatHandlers struct {
	store store.Store
	chats *core.MembershipIndex
	log   *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(st store.Store, chats *core.MembershipIndex, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		store: st,
		chats: chats,
		log:   logger,
	}
}

// CreateChatRequest represents the create chat request body.
type CreateChatRequest struct {
	Type           string   `json:"type" binding:"required,oneof=private group"`
	Name           string   `json:"name" binding:"max=64"`
	ParticipantIDs []string `json:"participant_ids" binding:"required,min=1"`
}

// ChatResponse represents a chat in API responses.
type ChatResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID        string  `json:"id"`
	Seq       int64   `json:"seq"`
	ChatID    string  `json:"chat_id"`
	SenderID  string  `json:"sender_id"`
	Content   string  `json:"content"`
	Type      string  `json:"type"`
	ReplyTo   *string `json:"reply_to,omitempty"`
	Edited    bool    `json:"edited"`
	CreatedAt string  `json:"created_at"`
}

func chatResponse(chat *store.Chat) ChatResponse {
	return ChatResponse{
		ID:        chat.ID,
		Type:      string(chat.Type),
		Name:      chat.Name,
		CreatedBy: chat.CreatedBy,
		CreatedAt: chat.CreatedAt.Format(time.RFC3339),
		UpdatedAt: chat.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateChat handles chat creation.
// POST /api/chats
func (h *ChatHandlers) CreateChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create chat request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	// The creator always participates.
	participants := append([]string{userID}, req.ParticipantIDs...)
	if req.Type == string(store.ChatTypePrivate) && len(participants) != 2 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "private chats have exactly two participants"})
		return
	}

	chat, err := h.store.CreateChat(c.Request.Context(), store.ChatType(req.Type), req.Name, userID, participants)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to create chat")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.chats.Invalidate(chat.ID)

	h.log.Info().Str("chat_id", chat.ID).Str("created_by", userID).Msg("chat created")
	c.JSON(http.StatusCreated, chatResponse(chat))
}

// ListChats handles listing the user's chats.
// GET /api/chats
func (h *ChatHandlers) ListChats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	chats, err := h.store.ListChats(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to list chats")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ChatResponse, 0, len(chats))
	for _, chat := range chats {
		response = append(response, chatResponse(chat))
	}
	c.JSON(http.StatusOK, response)
}

// AddParticipant handles adding a user to a group chat.
// POST /api/chats/:chatID/participants
func (h *ChatHandlers) AddParticipant(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	chatID := c.Param("chatID")

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	chat, err := h.store.GetChatByID(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "chat not found"})
			return
		}
		h.log.Error().Err(err).Str("chat_id", chatID).Msg("failed to load chat")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if chat.Type != store.ChatTypeGroup {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "participants can only be added to group chats"})
		return
	}

	isMember, err := h.chats.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		h.log.Error().Err(err).Str("chat_id", chatID).Msg("participant lookup failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a participant of this chat"})
		return
	}

	if err := h.store.AddParticipant(c.Request.Context(), chatID, req.UserID); err != nil {
		h.log.Error().Err(err).Str("chat_id", chatID).Msg("failed to add participant")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	// Membership changed; the realtime index must reload the chat.
	h.chats.Invalidate(chatID)

	c.Status(http.StatusNoContent)
}

// ListMessages handles paginated chat history.
// GET /api/chats/:chatID/messages?limit=&before=
func (h *ChatHandlers) ListMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	chatID := c.Param("chatID")

	isMember, err := h.chats.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		h.log.Error().Err(err).Str("chat_id", chatID).Msg("participant lookup failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a participant of this chat"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	var beforeSeq *int64
	if raw := c.Query("before"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			beforeSeq = &parsed
		}
	}

	messages, err := h.store.ListMessages(c.Request.Context(), chatID, limit, beforeSeq)
	if err != nil {
		h.log.Error().Err(err).Str("chat_id", chatID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, MessageResponse{
			ID:        msg.ID,
			Seq:       msg.Seq,
			ChatID:    msg.ChatID,
			SenderID:  msg.SenderID,
			Content:   msg.Content,
			Type:      string(msg.Type),
			ReplyTo:   msg.ReplyTo,
			Edited:    msg.Edited,
			CreatedAt: msg.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, response)
}

package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/amity-server/internal/service/friends"
	"github.com/vovakirdan/amity-server/internal/store"
)

// FriendsHandlers provides HTTP handlers for friend management endpoints.
type FriendsHandlers struct {
	service *friends.Service
	store   store.Store
	log     *zerolog.Logger
}

// NewFriendsHandlers creates a new friends handlers instance.
func NewFriendsHandlers(svc *friends.Service, st store.Store, logger *zerolog.Logger) *FriendsHandlers {
	return &FriendsHandlers{
		service: svc,
		store:   st,
		log:     logger,
	}
}

// SendFriendRequestRequest represents the request body for sending a friend request.
type SendFriendRequestRequest struct {
	ToUsername string `json:"to_username" binding:"required"`
}

// ResolveFriendRequestRequest represents the accept/reject body.
type ResolveFriendRequestRequest struct {
	Action string `json:"action" binding:"required,oneof=accept reject"`
}

// FriendRequestResponse represents a friend request in API responses.
type FriendRequestResponse struct {
	ID           string `json:"id"`
	FromUserID   string `json:"from_user_id"`
	FromUsername string `json:"from_username,omitempty"`
	ToUserID     string `json:"to_user_id"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

func (h *FriendsHandlers) requestResponse(c *gin.Context, req *store.FriendRequest) FriendRequestResponse {
	resp := FriendRequestResponse{
		ID:         req.ID,
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Status:     string(req.Status),
		CreatedAt:  req.CreatedAt.Format(time.RFC3339),
	}
	if user, err := h.store.GetUserByID(c.Request.Context(), req.FromUserID); err == nil {
		resp.FromUsername = user.Username
	}
	return resp
}

// SendRequest handles sending a friend request.
// POST /api/friend-requests
func (h *FriendsHandlers) SendRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	created, err := h.service.SendRequest(c.Request.Context(), userID, req.ToUsername)
	if err != nil {
		switch {
		case errors.Is(err, friends.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		case errors.Is(err, friends.ErrCannotFriendSelf):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot send friend request to yourself"})
		case errors.Is(err, friends.ErrAlreadyFriends):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "already friends"})
		default:
			h.log.Error().Err(err).Str("user_id", userID).Msg("failed to send friend request")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, h.requestResponse(c, created))
}

// ListRequests handles listing pending incoming friend requests.
// GET /api/friend-requests
func (h *FriendsHandlers) ListRequests(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	requests, err := h.service.PendingRequests(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to list friend requests")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]FriendRequestResponse, 0, len(requests))
	for _, req := range requests {
		response = append(response, h.requestResponse(c, req))
	}
	c.JSON(http.StatusOK, response)
}

// ResolveRequest handles accepting or rejecting a friend request.
// PUT /api/friend-requests/:requestID
func (h *FriendsHandlers) ResolveRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req ResolveFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	resolved, err := h.service.Resolve(c.Request.Context(), c.Param("requestID"), userID, req.Action == "accept")
	if err != nil {
		if errors.Is(err, friends.ErrRequestNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "friend request not found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to resolve friend request")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, h.requestResponse(c, resolved))
}

// ListFriends handles listing accepted friends with their presence.
// GET /api/friends
func (h *FriendsHandlers) ListFriends(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	users, err := h.service.Friends(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to list friends")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserPayload, 0, len(users))
	for _, u := range users {
		response = append(response, userPayload(u))
	}
	c.JSON(http.StatusOK, response)
}

package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ndudnik/pairchat-server/internal/store"
)

// UserHandlers provides HTTP handlers for user discovery endpoints.
type UserHandlers struct {
	users store.UserStore
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(users store.UserStore, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		users: users,
		log:   logger,
	}
}

// UserResponse is the wire form of a user, without credentials.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
	LastSeen int64  `json:"lastSeen"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen.Unix(),
	}
}

// ListUsers returns every user except the caller.
// GET /api/users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": resp})
}

// GetMe returns the caller's own record.
// GET /api/users/me
func (h *UserHandlers) GetMe(c *gin.Context) {
	user, err := h.users.GetUserByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load current user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userResponse(user)})
}

// GetUser returns one user by ID.
// GET /api/users/:id
func (h *UserHandlers) GetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", id).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userResponse(user)})
}

package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/loomchat/loom-server/internal/service/friends"
	"github.com/loomchat/loom-server/internal/store"
)

// FriendsHandlers provides HTTP handlers for friend request endpoints.
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
	UserID string `json:"user_id" binding:"required"`
}

// FriendRequestResponse represents a friend request in API responses.
type FriendRequestResponse struct {
	ID        string `json:"id"`
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	// Username of the other party, resolved when available.
	OtherUsername string `json:"other_username,omitempty"`
}

// requestToResponse converts a store.FriendRequest to FriendRequestResponse.
func (h *FriendsHandlers) requestToResponse(c *gin.Context, r *store.FriendRequest, currentUserID string) FriendRequestResponse {
	resp := FriendRequestResponse{
		ID:        r.ID,
		FromID:    r.FromID,
		ToID:      r.ToID,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}

	otherID := r.ToID
	if r.ToID == currentUserID {
		otherID = r.FromID
	}
	if user, err := h.store.GetUserByID(c.Request.Context(), otherID); err == nil {
		resp.OtherUsername = user.Username
	}

	return resp
}

// SendRequest handles sending a friend request.
// POST /api/friend-requests
func (h *FriendsHandlers) SendRequest(c *gin.Context) {
	userID, _, ok := principalFromContext(c, h.log)
	if !ok {
		return
	}

	var req SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send friend request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	request, err := h.service.SendRequest(c.Request.Context(), userID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, friends.ErrCannotFriendSelf):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot send friend request to yourself"})
		case errors.Is(err, friends.ErrAlreadyFriends):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "already friends"})
		case errors.Is(err, friends.ErrRequestAlreadyExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "friend request already exists"})
		case errors.Is(err, friends.ErrReversePending):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "this user already sent you a request"})
		case errors.Is(err, friends.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		default:
			h.log.Error().Err(err).Str("from_id", userID).Str("to_id", req.UserID).Msg("failed to send friend request")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("from_id", userID).Str("to_id", req.UserID).Msg("friend request sent")
	c.JSON(http.StatusCreated, h.requestToResponse(c, request, userID))
}

// Accept handles accepting a friend request. Only the receiver may accept.
// POST /api/friend-requests/:id/accept
func (h *FriendsHandlers) Accept(c *gin.Context) {
	userID, _, ok := principalFromContext(c, h.log)
	if !ok {
		return
	}

	request, err := h.service.AcceptRequest(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, friends.ErrRequestNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "friend request not found"})
		case errors.Is(err, friends.ErrNotAllowed):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not allowed"})
		default:
			h.log.Error().Err(err).Str("request_id", c.Param("id")).Msg("failed to accept friend request")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, h.requestToResponse(c, request, userID))
}

// Delete handles withdrawing, declining or unfriending.
// DELETE /api/friend-requests/:id
func (h *FriendsHandlers) Delete(c *gin.Context) {
	userID, _, ok := principalFromContext(c, h.log)
	if !ok {
		return
	}

	if err := h.service.DeleteRequest(c.Request.Context(), c.Param("id"), userID); err != nil {
		switch {
		case errors.Is(err, friends.ErrRequestNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "friend request not found"})
		case errors.Is(err, friends.ErrNotAllowed):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not allowed"})
		default:
			h.log.Error().Err(err).Str("request_id", c.Param("id")).Msg("failed to delete friend request")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// ListIncoming handles listing pending requests addressed to the caller.
// GET /api/friend-requests/incoming
func (h *FriendsHandlers) ListIncoming(c *gin.Context) {
	h.list(c, h.service.ListIncoming)
}

// ListSent handles listing pending requests the caller has sent.
// GET /api/friend-requests/sent
func (h *FriendsHandlers) ListSent(c *gin.Context) {
	h.list(c, h.service.ListSent)
}

func (h *FriendsHandlers) list(c *gin.Context, fetch func(ctx context.Context, userID string) ([]*store.FriendRequest, error)) {
	userID, _, ok := principalFromContext(c, h.log)
	if !ok {
		return
	}

	requests, err := fetch(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to list friend requests")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]FriendRequestResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, h.requestToResponse(c, r, userID))
	}
	c.JSON(http.StatusOK, out)
}

package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/loomchat/loom-server/internal/core"
	"github.com/loomchat/loom-server/internal/proto"
	"github.com/loomchat/loom-server/internal/room"
	"github.com/loomchat/loom-server/internal/store"
)

// MessageHandlers provides HTTP handlers for the message history and the
// REST leg of the delivery pipeline.
type MessageHandlers struct {
	hub   *core.Hub
	authz *room.Authorizer
	store store.Store
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(hub *core.Hub, authz *room.Authorizer, st store.Store, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		hub:   hub,
		authz: authz,
		store: st,
		log:   logger,
	}
}

// PostMessageRequest represents the request body for posting a message.
type PostMessageRequest struct {
	RoomID      string                 `json:"roomId" binding:"required"`
	Text        string                 `json:"text"`
	Attachments []proto.AttachmentData `json:"attachments"`
}

// List returns the full message history of a room, oldest first.
// GET /api/messages?roomId=...
func (h *MessageHandlers) List(c *gin.Context) {
	userID, _, ok := principalFromContext(c, h.log)
	if !ok {
		return
	}

	roomID := c.Query("roomId")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "roomId is required"})
		return
	}

	decision, err := h.authz.CanAccess(c.Request.Context(), roomID, userID)
	if err != nil {
		h.log.Error().Err(err).Str("room", roomID).Str("user_id", userID).Msg("access check failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !decision.OK {
		if decision.Reason == room.ReasonGroupNotFound {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
			return
		}
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})
		return
	}

	messages, err := h.store.ListMessagesByRoom(c.Request.Context(), roomID)
	if err != nil {
		h.log.Error().Err(err).Str("room", roomID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]proto.MessageData, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageData(msg))
	}
	c.JSON(http.StatusOK, out)
}

// Post runs the delivery pipeline for an HTTP client: validate, authorize,
// persist, broadcast to live room subscribers, echo the stored message.
// POST /api/messages
func (h *MessageHandlers) Post(c *gin.Context) {
	userID, username, ok := principalFromContext(c, h.log)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid post message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	p := core.Principal{UserID: userID, Username: username}
	msg, err := h.hub.PostMessage(c.Request.Context(), p, req.RoomID, req.Text, attachmentsFromData(req.Attachments))
	if err != nil {
		var denied *core.AccessDeniedError
		switch {
		case errors.Is(err, core.ErrInvalidMessage):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message must have text or attachments"})
		case errors.As(err, &denied):
			if denied.Reason == room.ReasonGroupNotFound {
				c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
				return
			}
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})
		default:
			h.log.Error().Err(err).Str("room", req.RoomID).Str("user_id", userID).Msg("failed to post message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, messageData(msg))
}

package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/loomchat/loom-server/internal/room"
	"github.com/loomchat/loom-server/internal/service/groups"
	"github.com/loomchat/loom-server/internal/store"
)

// GroupHandlers provides HTTP handlers for group management endpoints.
type GroupHandlers struct {
	service *groups.Service
	log     *zerolog.Logger
}

// NewGroupHandlers creates a new group handlers instance.
func NewGroupHandlers(svc *groups.Service, logger *zerolog.Logger) *GroupHandlers {
	return &GroupHandlers{
		service: svc,
		log:     logger,
	}
}

// CreateGroupRequest represents the request body for creating a group.
type CreateGroupRequest struct {
	Name    string   `json:"name" binding:"required"`
	Members []string `json:"members"`
}

// AddMemberRequest represents the request body for adding a group member.
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID        string   `json:"id"`
	RoomID    string   `json:"room_id"`
	Name      string   `json:"name"`
	CreatorID string   `json:"creator_id"`
	Members   []string `json:"members"`
	Admins    []string `json:"admins"`
	CreatedAt string   `json:"created_at"`
}

func groupToResponse(g *store.Group) GroupResponse {
	return GroupResponse{
		ID:        g.ID,
		RoomID:    room.GroupRoomID(g.ID),
		Name:      g.Name,
		CreatorID: g.CreatorID,
		Members:   g.Members,
		Admins:    g.Admins,
		CreatedAt: g.CreatedAt.Format(time.RFC3339),
	}
}

// Create handles group creation.
// POST /api/groups
func (h *GroupHandlers) Create(c *gin.Context) {
	userID, _, ok := principalFromContext(c, h.log)
	if !ok {
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create group request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	group, err := h.service.Create(c.Request.Context(), userID, req.Name, req.Members)
	if err != nil {
		switch {
		case errors.Is(err, groups.ErrEmptyName):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "group name is required"})
		case errors.Is(err, groups.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		default:
			h.log.Error().Err(err).Str("user_id", userID).Msg("failed to create group")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("group_id", group.ID).Str("creator_id", userID).Msg("group created")
	c.JSON(http.StatusCreated, groupToResponse(group))
}

// List handles listing the caller's groups.
// GET /api/groups
func (h *GroupHandlers) List(c *gin.Context) {
	userID, _, ok := principalFromContext(c, h.log)
	if !ok {
		return
	}

	list, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to list groups")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]GroupResponse, 0, len(list))
	for _, g := range list {
		out = append(out, groupToResponse(g))
	}
	c.JSON(http.StatusOK, out)
}

// Get handles fetching a single group with its roster.
// GET /api/groups/:id
func (h *GroupHandlers) Get(c *gin.Context) {
	if _, _, ok := principalFromContext(c, h.log); !ok {
		return
	}

	group, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, groups.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
			return
		}
		h.log.Error().Err(err).Str("group_id", c.Param("id")).Msg("failed to get group")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, groupToResponse(group))
}

// AddMember handles adding a user to a group.
// POST /api/groups/:id/members
func (h *GroupHandlers) AddMember(c *gin.Context) {
	userID, _, ok := principalFromContext(c, h.log)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add member request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	group, err := h.service.AddMember(c.Request.Context(), c.Param("id"), userID, req.UserID)
	if err != nil {
		h.writeRosterError(c, err, userID)
		return
	}

	c.JSON(http.StatusOK, groupToResponse(group))
}

// RemoveMember handles removing a user from a group.
// DELETE /api/groups/:id/members/:userId
func (h *GroupHandlers) RemoveMember(c *gin.Context) {
	userID, _, ok := principalFromContext(c, h.log)
	if !ok {
		return
	}

	group, err := h.service.RemoveMember(c.Request.Context(), c.Param("id"), userID, c.Param("userId"))
	if err != nil {
		h.writeRosterError(c, err, userID)
		return
	}

	c.JSON(http.StatusOK, groupToResponse(group))
}

func (h *GroupHandlers) writeRosterError(c *gin.Context, err error, actorID string) {
	switch {
	case errors.Is(err, groups.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
	case errors.Is(err, groups.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
	case errors.Is(err, groups.ErrNotAdmin):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only group admins can do that"})
	case errors.Is(err, groups.ErrCreatorImmovable):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "group creator cannot be removed"})
	case errors.Is(err, groups.ErrAlreadyMember):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "user is already a member"})
	case errors.Is(err, groups.ErrNotMember):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "user is not a member"})
	default:
		h.log.Error().Err(err).Str("actor_id", actorID).Msg("group roster change failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

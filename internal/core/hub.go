package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/loomchat/loom-server/internal/room"
	"github.com/loomchat/loom-server/internal/store"
)

// ErrInvalidMessage is returned by PostMessage when validation fails.
var ErrInvalidMessage = errors.New("invalid message")

// AccessDeniedError is returned when the room access check refuses an
// action. The reason is for logs and the REST layer only; it is never sent
// over the socket.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return "room access denied: " + e.Reason
}

// Hub coordinates live connections: room subscriptions, message delivery,
// call presence and signaling relay. All socket event handlers funnel
// through here; each one first awaits the connection's authentication
// outcome, then runs the access check, then takes effect.
type Hub struct {
	registry *Registry
	presence *Presence
	authz    *room.Authorizer
	store    store.Store
	log      *zerolog.Logger
}

// NewHub creates a hub backed by the given store and authorizer.
func NewHub(st store.Store, authz *room.Authorizer, logger *zerolog.Logger) *Hub {
	return &Hub{
		registry: NewRegistry(),
		presence: NewPresence(),
		authz:    authz,
		store:    st,
		log:      logger,
	}
}

// Registry exposes the connection registry (used by the REST boundary to
// broadcast on successful POST /messages).
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Presence exposes the call presence tracker.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// Register makes a new connection known. Listeners are live immediately;
// authentication resolves in the background via Attach or FailAuth.
func (h *Hub) Register(c *Client) {
	h.registry.Register(c)
}

// Attach completes a connection's authentication and subscribes it to the
// per-user broadcast channel. A connection that disconnected while auth was
// still in flight is left unbound.
func (h *Hub) Attach(c *Client, p Principal) {
	c.Resolve(p)
	if !h.registry.Bind(c, p.UserID) {
		h.log.Debug().Str("conn_id", c.ID).Str("user_id", p.UserID).Msg("connection gone before auth resolved")
		return
	}
	h.log.Debug().Str("conn_id", c.ID).Str("user_id", p.UserID).Msg("connection authenticated")
}

// FailAuth marks a connection's authentication as permanently failed.
func (h *Hub) FailAuth(c *Client) {
	c.FailAuth()
}

// Disconnect tears a connection down: removes it from every room's
// subscriber set and from call presence. Presence cleanup is unconditional;
// authorization data may have changed since the user joined.
func (h *Hub) Disconnect(c *Client) {
	h.registry.Unregister(c)

	p, ok := c.Resolved()
	if !ok {
		return
	}
	for _, roomID := range h.presence.DropUser(p.UserID) {
		h.registry.BroadcastRoom(roomID, &Event{
			Kind:   EventCallLeft,
			Room:   roomID,
			UserID: p.UserID,
		}, nil)
	}
}

// JoinRoom subscribes the connection to a room after the access check.
// Joining is fire-and-forget: a failed check is a logged no-op, never a
// protocol error.
func (h *Hub) JoinRoom(ctx context.Context, c *Client, roomID string) {
	p, err := c.Principal(ctx)
	if err != nil {
		h.drop(c, "join_room", roomID, err)
		return
	}
	if !h.allowed(ctx, "join_room", roomID, p.UserID) {
		return
	}
	h.registry.JoinRoom(c, roomID)
	h.log.Debug().Str("room", roomID).Str("user_id", p.UserID).Msg("joined room")
}

// SendMessage is the socket path of the delivery pipeline: any failure is a
// silent drop.
func (h *Hub) SendMessage(ctx context.Context, c *Client, roomID, text string, attachments []store.Attachment) {
	p, err := c.Principal(ctx)
	if err != nil {
		h.drop(c, "send_message", roomID, err)
		return
	}
	if _, err := h.PostMessage(ctx, p, roomID, text, attachments); err != nil {
		h.drop(c, "send_message", roomID, err)
	}
}

// PostMessage validates, authorizes, persists and broadcasts one message.
// Shared by the socket and REST boundaries. Broadcast is at-most-once per
// subscribed connection, best effort; clients not joined to the room get the
// message only via the history query.
func (h *Hub) PostMessage(ctx context.Context, p Principal, roomID, text string, attachments []store.Attachment) (*store.Message, error) {
	if roomID == "" || p.Username == "" {
		return nil, fmt.Errorf("%w: missing room or sender", ErrInvalidMessage)
	}
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return nil, fmt.Errorf("%w: empty text and no attachments", ErrInvalidMessage)
	}

	decision, err := h.authz.CanAccess(ctx, roomID, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	if !decision.OK {
		return nil, &AccessDeniedError{Reason: decision.Reason}
	}

	// Past this point the message must land. The caller's ctx is typically
	// connection-scoped; a disconnect racing the send must not cancel the
	// write after authorization passed.
	ctx = context.WithoutCancel(ctx)

	msg := &store.Message{
		RoomID:      roomID,
		Sender:      p.Username,
		Text:        text,
		Attachments: attachments,
		CreatedAt:   time.Now(),
	}
	if err := h.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	h.registry.BroadcastRoom(roomID, &Event{
		Kind:    EventNewMessage,
		Room:    roomID,
		Message: msg,
	}, nil)

	return msg, nil
}

// CallJoin adds the user to the room's call presence. The joiner receives
// the full participant set; existing subscribers see a joined event.
func (h *Hub) CallJoin(ctx context.Context, c *Client, roomID string) {
	p, err := c.Principal(ctx)
	if err != nil {
		h.drop(c, "call_join", roomID, err)
		return
	}
	if !h.allowed(ctx, "call_join", roomID, p.UserID) {
		return
	}

	participants := h.presence.Join(roomID, p.UserID)
	c.send(&Event{
		Kind:         EventCallParticipants,
		Room:         roomID,
		Participants: participants,
	})
	h.registry.BroadcastRoom(roomID, &Event{
		Kind:     EventCallJoined,
		Room:     roomID,
		UserID:   p.UserID,
		Username: p.Username,
	}, c)
}

// CallLeave removes the user from the room's call presence.
func (h *Hub) CallLeave(ctx context.Context, c *Client, roomID string) {
	p, err := c.Principal(ctx)
	if err != nil {
		h.drop(c, "call_leave", roomID, err)
		return
	}
	if !h.allowed(ctx, "call_leave", roomID, p.UserID) {
		return
	}

	h.presence.Leave(roomID, p.UserID)
	h.registry.BroadcastRoom(roomID, &Event{
		Kind:   EventCallLeft,
		Room:   roomID,
		UserID: p.UserID,
	}, c)
}

// CallInvite fans an invite out to the users who should ring. Direct rooms
// target the other participant's user channel; group rooms target every
// roster member except the inviter; legacy rooms reach room subscribers
// only. Room subscribers always get the event too, covering a callee
// already viewing the thread.
func (h *Hub) CallInvite(ctx context.Context, c *Client, roomID string) {
	p, err := c.Principal(ctx)
	if err != nil {
		h.drop(c, "call_invite", roomID, err)
		return
	}
	if !h.allowed(ctx, "call_invite", roomID, p.UserID) {
		return
	}

	ev := &Event{
		Kind:     EventIncomingCall,
		Room:     roomID,
		UserID:   p.UserID,
		Username: p.Username,
		TS:       time.Now().Unix(),
	}

	switch cls := room.Classify(roomID); cls.Kind {
	case room.KindDirect:
		other := cls.UserA
		if other == p.UserID {
			other = cls.UserB
		}
		h.registry.BroadcastUser(other, ev)
	case room.KindGroup:
		group, err := h.store.GetGroup(ctx, cls.GroupID)
		if err != nil {
			h.log.Warn().Err(err).Str("room", roomID).Str("op", "call_invite").Msg("group roster lookup failed")
			return
		}
		for _, member := range group.Members {
			if member == p.UserID {
				continue
			}
			h.registry.BroadcastUser(member, ev)
		}
	}

	h.registry.BroadcastRoom(roomID, ev, nil)
}

// CallAccept broadcasts an accept to all room subscribers, sender included.
func (h *Hub) CallAccept(ctx context.Context, c *Client, roomID string) {
	h.callResponse(ctx, c, roomID, "call_accept", EventCallAccept)
}

// CallReject broadcasts a reject to all room subscribers, sender included.
func (h *Hub) CallReject(ctx context.Context, c *Client, roomID string) {
	h.callResponse(ctx, c, roomID, "call_reject", EventCallReject)
}

func (h *Hub) callResponse(ctx context.Context, c *Client, roomID, op string, kind EventKind) {
	p, err := c.Principal(ctx)
	if err != nil {
		h.drop(c, op, roomID, err)
		return
	}
	if !h.allowed(ctx, op, roomID, p.UserID) {
		return
	}
	h.registry.BroadcastRoom(roomID, &Event{
		Kind:     kind,
		Room:     roomID,
		UserID:   p.UserID,
		Username: p.Username,
	}, nil)
}

// CallEnd clears the room's call presence and broadcasts the ended event.
func (h *Hub) CallEnd(ctx context.Context, c *Client, roomID string) {
	p, err := c.Principal(ctx)
	if err != nil {
		h.drop(c, "call_end", roomID, err)
		return
	}
	if !h.allowed(ctx, "call_end", roomID, p.UserID) {
		return
	}

	h.presence.End(roomID)
	h.registry.BroadcastRoom(roomID, &Event{
		Kind:   EventCallEnded,
		Room:   roomID,
		UserID: p.UserID,
	}, nil)
}

// RelaySignal forwards a WebRTC offer/answer/ICE payload to room subscribers
// excluding the sender's own connection. Pure passthrough; the target
// filters client-side by user id.
func (h *Hub) RelaySignal(ctx context.Context, c *Client, kind EventKind, roomID, targetUserID string, payload json.RawMessage) {
	if roomID == "" || targetUserID == "" || len(payload) == 0 {
		h.drop(c, "webrtc_relay", roomID, fmt.Errorf("%w: missing room, target or payload", ErrInvalidMessage))
		return
	}
	p, err := c.Principal(ctx)
	if err != nil {
		h.drop(c, "webrtc_relay", roomID, err)
		return
	}
	if !h.allowed(ctx, "webrtc_relay", roomID, p.UserID) {
		return
	}

	h.registry.BroadcastRoom(roomID, &Event{
		Kind: kind,
		Room: roomID,
		Signal: &SignalPayload{
			FromUserID:   p.UserID,
			TargetUserID: targetUserID,
			Payload:      payload,
		},
	}, c)
}

// allowed runs the access check for one event, logging denials. The socket
// never learns why an action was refused.
func (h *Hub) allowed(ctx context.Context, op, roomID, userID string) bool {
	decision, err := h.authz.CanAccess(ctx, roomID, userID)
	if err != nil {
		h.log.Error().Err(err).Str("room", roomID).Str("user_id", userID).Str("op", op).Msg("access check failed")
		return false
	}
	if !decision.OK {
		h.log.Debug().Str("room", roomID).Str("user_id", userID).Str("op", op).Str("reason", decision.Reason).Msg("access denied")
		return false
	}
	return true
}

func (h *Hub) drop(c *Client, op, roomID string, err error) {
	h.log.Debug().Err(err).Str("conn_id", c.ID).Str("room", roomID).Str("op", op).Msg("event dropped")
}

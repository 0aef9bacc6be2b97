package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeHello        = "hello"
	InboundTypeJoinRoom     = "join_room"
	InboundTypeSendMessage  = "send_message"
	InboundTypeCallJoin     = "call_join"
	InboundTypeCallLeave    = "call_leave"
	InboundTypeCallInvite   = "call_invite"
	InboundTypeCallAccept   = "call_accept"
	InboundTypeCallReject   = "call_reject"
	InboundTypeCallEnd      = "call_end"
	InboundTypeWebRTCOffer  = "webrtc_offer"
	InboundTypeWebRTCAnswer = "webrtc_answer"
	InboundTypeWebRTCICE    = "webrtc_ice_candidate"

	OutboundTypeEvent = "event"

	EventNewMessage       = "new_message"
	EventIncomingCall     = "incoming_call"
	EventCallAccept       = "call_accept"
	EventCallReject       = "call_reject"
	EventCallEnded        = "call_ended"
	EventCallParticipants = "call_participants"
	EventCallJoined       = "call_joined"
	EventCallLeft         = "call_left"
)

// HelloData carries the auth token when it is not passed in the query.
type HelloData struct {
	Token string `json:"token"`
}

// RoomData addresses a room-scoped event with no further payload.
type RoomData struct {
	RoomID string `json:"roomId"`
}

// AttachmentData describes one media attachment on a message.
type AttachmentData struct {
	URL       string `json:"url"`
	StorageID string `json:"publicId,omitempty"`
	Kind      string `json:"type,omitempty"`
	Width     *int   `json:"width,omitempty"`
	Height    *int   `json:"height,omitempty"`
	Duration  *int   `json:"duration,omitempty"`
	Name      string `json:"name,omitempty"`
}

// SendMessageData is a chat message from the client.
type SendMessageData struct {
	RoomID      string           `json:"roomId"`
	Text        string           `json:"text"`
	Attachments []AttachmentData `json:"attachments"`
}

// SignalData carries a WebRTC payload addressed at one user in a room.
type SignalData struct {
	RoomID       string          `json:"roomId"`
	TargetUserID string          `json:"targetUserId"`
	Payload      json.RawMessage `json:"payload"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// MessageData is a persisted message as delivered to clients.
type MessageData struct {
	ID          int64            `json:"id"`
	RoomID      string           `json:"roomId"`
	Sender      string           `json:"sender"`
	Text        string           `json:"text"`
	Attachments []AttachmentData `json:"attachments,omitempty"`
	TS          int64            `json:"ts"`
}

// CallUserData identifies the acting user of a call event.
type CallUserData struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	TS       int64  `json:"ts,omitempty"`
}

// CallParticipantsData is the current in-call set, sent to a joiner.
type CallParticipantsData struct {
	RoomID       string   `json:"roomId"`
	Participants []string `json:"participants"`
}

// SignalEventData is a relayed WebRTC payload.
type SignalEventData struct {
	RoomID       string          `json:"roomId"`
	FromUserID   string          `json:"fromUserId"`
	TargetUserID string          `json:"targetUserId"`
	Payload      json.RawMessage `json:"payload"`
}

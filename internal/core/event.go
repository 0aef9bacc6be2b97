package core

import (
	"encoding/json"

	"github.com/loomchat/loom-server/internal/store"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewMessage carries a persisted chat message to room subscribers.
	EventNewMessage EventKind = iota

	// Call lifecycle events
	// EventIncomingCall notifies the callee(s) of a call invite.
	EventIncomingCall
	// EventCallAccept notifies room subscribers that a user accepted.
	EventCallAccept
	// EventCallReject notifies room subscribers that a user rejected.
	EventCallReject
	// EventCallEnded notifies room subscribers that the call ended.
	EventCallEnded
	// EventCallParticipants delivers the current participant set to a joiner.
	EventCallParticipants
	// EventCallJoined notifies existing participants that someone joined.
	EventCallJoined
	// EventCallLeft notifies participants that someone left.
	EventCallLeft

	// WebRTC payload relays, passthrough only.
	EventWebRTCOffer
	EventWebRTCAnswer
	EventWebRTCICECandidate
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind EventKind
	Room string

	// UserID/Username identify the acting user for call events.
	UserID   string
	Username string
	// TS is a unix timestamp carried on call invites.
	TS int64

	// Message is non-nil for EventNewMessage.
	Message *store.Message

	// Participants is set for EventCallParticipants.
	Participants []string

	// Signal is non-nil for the WebRTC relays.
	Signal *SignalPayload
}

// SignalPayload is an opaque WebRTC payload relayed between peers. The
// server never interprets the SDP/ICE content; the target filters
// client-side by TargetUserID.
type SignalPayload struct {
	FromUserID   string
	TargetUserID string
	Payload      json.RawMessage
}

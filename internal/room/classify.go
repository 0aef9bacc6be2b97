// Package room classifies room identifiers and decides who may use them.
//
// A room id is an opaque string with three recognized shapes:
//
//	dm:<userA>:<userB>   direct conversation between two users
//	group:<groupId>      group conversation
//	anything else        legacy public room, open to any authenticated user
package room

import "strings"

// Kind identifies the conversation type a room id resolves to.
type Kind int

const (
	// KindLegacy is an open public room predating the access-control model.
	KindLegacy Kind = iota
	// KindDirect is a two-party conversation.
	KindDirect
	// KindGroup is a group conversation.
	KindGroup
)

// Classified is the typed form of a room id. For KindDirect, UserA and UserB
// hold the two participant ids in the order they appear in the string; the
// order carries no meaning beyond the string form. For KindGroup, GroupID may
// be empty ("group:" with nothing after it); that case fails closed in the
// authorizer rather than falling back to a legacy room.
type Classified struct {
	Kind    Kind
	UserA   string
	UserB   string
	GroupID string
	Raw     string
}

const groupPrefix = "group:"

// Classify parses a room id into its typed variant. Total and deterministic:
// every string maps to exactly one variant.
func Classify(raw string) Classified {
	parts := strings.Split(raw, ":")
	if len(parts) == 3 && parts[0] == "dm" {
		return Classified{Kind: KindDirect, UserA: parts[1], UserB: parts[2], Raw: raw}
	}
	if strings.HasPrefix(raw, groupPrefix) {
		return Classified{Kind: KindGroup, GroupID: raw[len(groupPrefix):], Raw: raw}
	}
	return Classified{Kind: KindLegacy, Raw: raw}
}

// DirectRoomID builds the canonical room id for a direct conversation as
// given: dm:<a>:<b>. No ordering is applied.
func DirectRoomID(a, b string) string {
	return "dm:" + a + ":" + b
}

// GroupRoomID builds the room id for a group.
func GroupRoomID(groupID string) string {
	return groupPrefix + groupID
}

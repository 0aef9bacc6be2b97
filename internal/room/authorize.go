package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomchat/loom-server/internal/store"
)

// Denial reasons reported by CanAccess. These never reach socket clients;
// the REST layer maps them to status codes.
const (
	ReasonMissing       = "missing room or user"
	ReasonDMMismatch    = "dm member mismatch"
	ReasonNotFriends    = "friend request not accepted"
	ReasonGroupNotFound = "group not found"
	ReasonNotMember     = "not a group member"
)

// Decision is the outcome of an access check.
type Decision struct {
	OK     bool
	Reason string
}

func deny(reason string) Decision {
	return Decision{OK: false, Reason: reason}
}

var allow = Decision{OK: true}

// Authorizer decides whether a user may act in a room. It is side-effect
// free and safe to call redundantly; it runs on every join, send and
// signaling action.
type Authorizer struct {
	groups  store.GroupStore
	friends store.FriendStore
}

// NewAuthorizer creates an authorizer backed by group and friend storage.
func NewAuthorizer(groups store.GroupStore, friends store.FriendStore) *Authorizer {
	return &Authorizer{groups: groups, friends: friends}
}

// CanAccess decides membership of userID in roomID. A non-nil error means a
// collaborator lookup failed, not that access was denied.
//
//   - Direct rooms require the caller to be one of the two named users AND an
//     accepted friendship edge between them. Both checks are mandatory.
//   - Group rooms require current membership in the stored roster. An empty
//     group id fails closed as "group not found".
//   - Legacy rooms are open to any authenticated caller.
func (a *Authorizer) CanAccess(ctx context.Context, roomID, userID string) (Decision, error) {
	if roomID == "" || userID == "" {
		return deny(ReasonMissing), nil
	}

	switch c := Classify(roomID); c.Kind {
	case KindDirect:
		if userID != c.UserA && userID != c.UserB {
			return deny(ReasonDMMismatch), nil
		}
		accepted, err := a.friends.HasAcceptedEdge(ctx, c.UserA, c.UserB)
		if err != nil {
			return deny(ReasonNotFriends), fmt.Errorf("check friendship: %w", err)
		}
		if !accepted {
			return deny(ReasonNotFriends), nil
		}
		return allow, nil

	case KindGroup:
		if c.GroupID == "" {
			return deny(ReasonGroupNotFound), nil
		}
		group, err := a.groups.GetGroup(ctx, c.GroupID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return deny(ReasonGroupNotFound), nil
			}
			return deny(ReasonGroupNotFound), fmt.Errorf("get group: %w", err)
		}
		for _, member := range group.Members {
			if member == userID {
				return allow, nil
			}
		}
		return deny(ReasonNotMember), nil

	default:
		return allow, nil
	}
}

package room

import (
	"context"
	"testing"

	"github.com/loomchat/loom-server/internal/store"
	"github.com/loomchat/loom-server/internal/store/sqlite"
)

func newTestAuthorizer(t *testing.T) (*Authorizer, store.Store) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return NewAuthorizer(st, st), st
}

func createUser(t *testing.T, st store.Store, username string) *store.User {
	t.Helper()
	u, err := st.CreateUser(context.Background(), username, "x")
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func makeFriends(t *testing.T, st store.Store, a, b string) {
	t.Helper()
	ctx := context.Background()
	req, err := st.CreateFriendRequest(ctx, a, b)
	if err != nil {
		t.Fatalf("create friend request: %v", err)
	}
	if err := st.UpdateFriendRequestStatus(ctx, req.ID, store.FriendStatusAccepted); err != nil {
		t.Fatalf("accept friend request: %v", err)
	}
}

func TestCanAccessLegacyRoomIsOpen(t *testing.T) {
	authz, _ := newTestAuthorizer(t)

	d, err := authz.CanAccess(context.Background(), "general", "anyone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.OK {
		t.Fatalf("expected legacy room to be open, denied with %q", d.Reason)
	}
}

func TestCanAccessRejectsEmptyInputs(t *testing.T) {
	authz, _ := newTestAuthorizer(t)
	ctx := context.Background()

	for _, tc := range []struct{ room, user string }{
		{"", "u1"},
		{"general", ""},
		{"", ""},
	} {
		d, err := authz.CanAccess(ctx, tc.room, tc.user)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.OK {
			t.Fatalf("CanAccess(%q, %q): expected denial", tc.room, tc.user)
		}
	}
}

func TestCanAccessDirectRequiresMembershipAndFriendship(t *testing.T) {
	authz, st := newTestAuthorizer(t)
	ctx := context.Background()

	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")
	carol := createUser(t, st, "carol")

	roomID := DirectRoomID(alice.ID, bob.ID)

	// Not friends yet: members are denied.
	d, err := authz.CanAccess(ctx, roomID, alice.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.OK || d.Reason != ReasonNotFriends {
		t.Fatalf("expected not-friends denial, got %+v", d)
	}

	makeFriends(t, st, alice.ID, bob.ID)

	// Friendship accepted: both members allowed.
	for _, uid := range []string{alice.ID, bob.ID} {
		d, err := authz.CanAccess(ctx, roomID, uid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.OK {
			t.Fatalf("expected access for member %s, denied with %q", uid, d.Reason)
		}
	}

	// A third user is denied even though the named pair are friends.
	d, err = authz.CanAccess(ctx, roomID, carol.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.OK || d.Reason != ReasonDMMismatch {
		t.Fatalf("expected dm mismatch denial, got %+v", d)
	}
}

func TestCanAccessDirectFriendshipIsSymmetric(t *testing.T) {
	authz, st := newTestAuthorizer(t)
	ctx := context.Background()

	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")

	// Edge stored as bob -> alice; room id names alice first.
	makeFriends(t, st, bob.ID, alice.ID)

	d, err := authz.CanAccess(ctx, DirectRoomID(alice.ID, bob.ID), alice.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.OK {
		t.Fatalf("expected access, denied with %q", d.Reason)
	}
}

func TestCanAccessGroupMembership(t *testing.T) {
	authz, st := newTestAuthorizer(t)
	ctx := context.Background()

	creator := createUser(t, st, "creator")
	member := createUser(t, st, "member")
	outsider := createUser(t, st, "outsider")

	group, err := st.CreateGroup(ctx, "team", creator.ID, nil)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := st.AddGroupMember(ctx, group.ID, member.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}

	roomID := GroupRoomID(group.ID)

	for _, uid := range []string{creator.ID, member.ID} {
		d, err := authz.CanAccess(ctx, roomID, uid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.OK {
			t.Fatalf("expected access for %s, denied with %q", uid, d.Reason)
		}
	}

	d, err := authz.CanAccess(ctx, roomID, outsider.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.OK || d.Reason != ReasonNotMember {
		t.Fatalf("expected not-member denial, got %+v", d)
	}
}

func TestCanAccessGroupRevocationIsImmediate(t *testing.T) {
	authz, st := newTestAuthorizer(t)
	ctx := context.Background()

	creator := createUser(t, st, "creator")
	member := createUser(t, st, "member")

	group, err := st.CreateGroup(ctx, "team", creator.ID, nil)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := st.AddGroupMember(ctx, group.ID, member.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}

	roomID := GroupRoomID(group.ID)
	if d, _ := authz.CanAccess(ctx, roomID, member.ID); !d.OK {
		t.Fatalf("expected access before removal")
	}

	if err := st.RemoveGroupMember(ctx, group.ID, member.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}

	d, err := authz.CanAccess(ctx, roomID, member.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.OK {
		t.Fatalf("expected denial after roster removal")
	}
}

func TestCanAccessGroupUnknownOrEmptyID(t *testing.T) {
	authz, st := newTestAuthorizer(t)
	ctx := context.Background()

	user := createUser(t, st, "alice")

	for _, roomID := range []string{"group:does-not-exist", "group:"} {
		d, err := authz.CanAccess(ctx, roomID, user.ID)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", roomID, err)
		}
		if d.OK || d.Reason != ReasonGroupNotFound {
			t.Fatalf("CanAccess(%q): expected group-not-found denial, got %+v", roomID, d)
		}
	}
}

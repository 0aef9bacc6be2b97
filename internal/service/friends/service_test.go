package friends

import (
	"context"
	"errors"
	"testing"

	"github.com/loomchat/loom-server/internal/store"
	"github.com/loomchat/loom-server/internal/store/sqlite"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return New(st), st
}

func createUser(t *testing.T, st store.Store, username string) *store.User {
	t.Helper()
	u, err := st.CreateUser(context.Background(), username, "x")
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func TestSendRequest_RejectsSelf(t *testing.T) {
	svc, st := newTestService(t)
	alice := createUser(t, st, "alice")

	if _, err := svc.SendRequest(context.Background(), alice.ID, alice.ID); !errors.Is(err, ErrCannotFriendSelf) {
		t.Fatalf("expected ErrCannotFriendSelf, got %v", err)
	}
}

func TestSendRequest_RejectsUnknownTarget(t *testing.T) {
	svc, st := newTestService(t)
	alice := createUser(t, st, "alice")

	if _, err := svc.SendRequest(context.Background(), alice.ID, "no-such-user"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSendRequest_RejectsDuplicateAndReverse(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")

	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("send request: %v", err)
	}

	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); !errors.Is(err, ErrRequestAlreadyExists) {
		t.Fatalf("expected ErrRequestAlreadyExists, got %v", err)
	}
	if _, err := svc.SendRequest(ctx, bob.ID, alice.ID); !errors.Is(err, ErrReversePending) {
		t.Fatalf("expected ErrReversePending, got %v", err)
	}
}

func TestAcceptRequest_OnlyReceiverMayAccept(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")

	req, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}

	if _, err := svc.AcceptRequest(ctx, req.ID, alice.ID); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("sender accepting own request: expected ErrNotAllowed, got %v", err)
	}

	accepted, err := svc.AcceptRequest(ctx, req.ID, bob.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != store.FriendStatusAccepted {
		t.Fatalf("unexpected status: %s", accepted.Status)
	}

	friends, err := svc.AreFriends(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("are friends: %v", err)
	}
	if !friends {
		t.Fatalf("expected accepted edge")
	}
}

func TestAcceptRequest_AfterAcceptBothDirectionsBlocked(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")

	req, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if _, err := svc.AcceptRequest(ctx, req.ID, bob.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); !errors.Is(err, ErrAlreadyFriends) {
		t.Fatalf("expected ErrAlreadyFriends, got %v", err)
	}
	if _, err := svc.SendRequest(ctx, bob.ID, alice.ID); !errors.Is(err, ErrAlreadyFriends) {
		t.Fatalf("expected ErrAlreadyFriends for reverse, got %v", err)
	}
}

func TestDeleteRequest_EitherPartySeversEdge(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")
	carol := createUser(t, st, "carol")

	req, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if _, err := svc.AcceptRequest(ctx, req.ID, bob.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := svc.DeleteRequest(ctx, req.ID, carol.ID); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("third party delete: expected ErrNotAllowed, got %v", err)
	}

	if err := svc.DeleteRequest(ctx, req.ID, bob.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	friends, err := svc.AreFriends(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("are friends: %v", err)
	}
	if friends {
		t.Fatalf("edge should be gone after delete")
	}
}

func TestListIncomingAndSent(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")
	carol := createUser(t, st, "carol")

	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("send request: %v", err)
	}
	if _, err := svc.SendRequest(ctx, carol.ID, bob.ID); err != nil {
		t.Fatalf("send request: %v", err)
	}

	incoming, err := svc.ListIncoming(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list incoming: %v", err)
	}
	if len(incoming) != 2 {
		t.Fatalf("expected 2 incoming requests, got %d", len(incoming))
	}

	sent, err := svc.ListSent(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list sent: %v", err)
	}
	if len(sent) != 1 || sent[0].ToID != bob.ID {
		t.Fatalf("unexpected sent list: %+v", sent)
	}
}

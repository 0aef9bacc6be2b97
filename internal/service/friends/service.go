package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomchat/loom-server/internal/store"
)

// Common errors for friend request operations.
var (
	ErrCannotFriendSelf     = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends       = errors.New("already friends")
	ErrRequestAlreadyExists = errors.New("friend request already exists")
	ErrReversePending       = errors.New("this user already sent you a request")
	ErrRequestNotFound      = errors.New("friend request not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotAllowed           = errors.New("not allowed")
)

// Service provides friend request business logic. Accepted requests form
// the symmetric friendship edges the room authorizer checks for dm rooms.
type Service struct {
	store store.Store
}

// New creates a friends service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// SendRequest sends a friend request from one user to another. Duplicate
// pending requests collapse into the existing one; a reverse pending request
// is rejected while one is outstanding, so at most one effective edge exists
// per unordered pair.
func (s *Service) SendRequest(ctx context.Context, fromID, toID string) (*store.FriendRequest, error) {
	if fromID == toID {
		return nil, ErrCannotFriendSelf
	}

	if _, err := s.store.GetUserByID(ctx, toID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	existing, err := s.store.GetFriendRequestBetween(ctx, fromID, toID)
	if err == nil {
		switch existing.Status {
		case store.FriendStatusAccepted:
			return nil, ErrAlreadyFriends
		case store.FriendStatusPending:
			return nil, ErrRequestAlreadyExists
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check existing request: %w", err)
	}

	reverse, err := s.store.GetFriendRequestBetween(ctx, toID, fromID)
	if err == nil {
		switch reverse.Status {
		case store.FriendStatusAccepted:
			return nil, ErrAlreadyFriends
		case store.FriendStatusPending:
			return nil, ErrReversePending
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check reverse request: %w", err)
	}

	request, err := s.store.CreateFriendRequest(ctx, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("create friend request: %w", err)
	}
	return request, nil
}

// AcceptRequest accepts a pending request. Only the receiver may accept.
func (s *Service) AcceptRequest(ctx context.Context, requestID, userID string) (*store.FriendRequest, error) {
	request, err := s.store.GetFriendRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	if request.ToID != userID {
		return nil, ErrNotAllowed
	}
	if request.Status != store.FriendStatusPending {
		return nil, ErrRequestNotFound
	}

	if err := s.store.UpdateFriendRequestStatus(ctx, requestID, store.FriendStatusAccepted); err != nil {
		return nil, fmt.Errorf("accept request: %w", err)
	}

	request.Status = store.FriendStatusAccepted
	return request, nil
}

// DeleteRequest removes a request. Either party may delete; deleting an
// accepted request severs the friendship edge.
func (s *Service) DeleteRequest(ctx context.Context, requestID, userID string) error {
	request, err := s.store.GetFriendRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("get request: %w", err)
	}
	if request.FromID != userID && request.ToID != userID {
		return ErrNotAllowed
	}

	if err := s.store.DeleteFriendRequest(ctx, requestID); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}

// ListIncoming returns pending requests addressed to the user.
func (s *Service) ListIncoming(ctx context.Context, userID string) ([]*store.FriendRequest, error) {
	requests, err := s.store.ListIncomingPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	return requests, nil
}

// ListSent returns pending requests the user has sent.
func (s *Service) ListSent(ctx context.Context, userID string) ([]*store.FriendRequest, error) {
	requests, err := s.store.ListSentPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sent requests: %w", err)
	}
	return requests, nil
}

// AreFriends reports whether an accepted edge exists between two users.
func (s *Service) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	return s.store.HasAcceptedEdge(ctx, userA, userB)
}

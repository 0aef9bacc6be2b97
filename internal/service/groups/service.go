package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loomchat/loom-server/internal/store"
)

// Common errors for group operations.
var (
	ErrEmptyName        = errors.New("group name is required")
	ErrGroupNotFound    = errors.New("group not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrNotAdmin         = errors.New("only group admins can do that")
	ErrCreatorImmovable = errors.New("group creator cannot be removed")
	ErrAlreadyMember    = errors.New("user is already a member")
	ErrNotMember        = errors.New("user is not a member")
)

// Service provides group roster business logic. The roster is the sole
// authority for group room access.
type Service struct {
	store store.Store
}

// New creates a groups service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// Create creates a group with an optional initial roster. The creator
// becomes a member and an admin; unknown initial members are rejected.
func (s *Service) Create(ctx context.Context, creatorID, name string, memberIDs []string) (*store.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	for _, memberID := range memberIDs {
		if memberID == creatorID {
			continue
		}
		if _, err := s.store.GetUserByID(ctx, memberID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("get user: %w", err)
		}
	}

	group, err := s.store.CreateGroup(ctx, name, creatorID, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return group, nil
}

// Get returns a group with its roster.
func (s *Service) Get(ctx context.Context, groupID string) (*store.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return group, nil
}

// ListForUser returns all groups the user is a member of.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*store.Group, error) {
	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// AddMember adds a user to the group roster. Only admins may add members.
func (s *Service) AddMember(ctx context.Context, groupID, actorID, userID string) (*store.Group, error) {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !contains(group.Admins, actorID) {
		return nil, ErrNotAdmin
	}
	if contains(group.Members, userID) {
		return nil, ErrAlreadyMember
	}

	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := s.store.AddGroupMember(ctx, groupID, userID); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return s.Get(ctx, groupID)
}

// RemoveMember removes a user from the roster. Admins can remove anyone but
// the creator; a member can remove themselves (leave).
func (s *Service) RemoveMember(ctx context.Context, groupID, actorID, userID string) (*store.Group, error) {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if userID == group.CreatorID {
		return nil, ErrCreatorImmovable
	}
	if actorID != userID && !contains(group.Admins, actorID) {
		return nil, ErrNotAdmin
	}
	if !contains(group.Members, userID) {
		return nil, ErrNotMember
	}

	if err := s.store.RemoveGroupMember(ctx, groupID, userID); err != nil {
		return nil, fmt.Errorf("remove member: %w", err)
	}
	return s.Get(ctx, groupID)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

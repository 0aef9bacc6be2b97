package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a registered user.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Group represents a named group chat. The creator is always a member and
// always an admin, and can never be removed from the member set.
type Group struct {
	ID        string
	Name      string
	CreatorID string
	Members   []string
	Admins    []string
	CreatedAt time.Time
}

// FriendStatus defines friend request status.
type FriendStatus string

const (
	FriendStatusPending  FriendStatus = "pending"
	FriendStatusAccepted FriendStatus = "accepted"
)

// FriendRequest is a directional friend request. An accepted request forms a
// symmetric friendship edge between FromID and ToID.
type FriendRequest struct {
	ID        string
	FromID    string
	ToID      string
	Status    FriendStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attachment is a media reference carried by a message. Width, Height and
// Duration are nil when the upload pipeline did not report them.
type Attachment struct {
	URL       string
	StorageID string
	Kind      string
	Width     *int
	Height    *int
	Duration  *int
	Name      string
}

// Message is a persisted chat message. Sender holds the display name as it
// was at send time, not a user id.
type Message struct {
	ID          int64
	RoomID      string
	Sender      string
	Text        string
	Attachments []Attachment
	CreatedAt   time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// GroupStore handles group persistence.
type GroupStore interface {
	// CreateGroup creates a group. The creator is added to members and admins
	// regardless of whether it appears in memberIDs.
	CreateGroup(ctx context.Context, name, creatorID string, memberIDs []string) (*Group, error)

	// GetGroup retrieves a group with its full roster.
	GetGroup(ctx context.Context, id string) (*Group, error)

	// ListGroupsForUser lists groups the user is a member of.
	ListGroupsForUser(ctx context.Context, userID string) ([]*Group, error)

	// AddGroupMember adds a user to the group member set. Idempotent.
	AddGroupMember(ctx context.Context, groupID, userID string) error

	// RemoveGroupMember removes a user from the member and admin sets.
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
}

// FriendStore handles friend request persistence.
type FriendStore interface {
	// CreateFriendRequest creates a pending request from one user to another.
	CreateFriendRequest(ctx context.Context, fromID, toID string) (*FriendRequest, error)

	// GetFriendRequest retrieves a request by ID.
	GetFriendRequest(ctx context.Context, id string) (*FriendRequest, error)

	// GetFriendRequestBetween retrieves the request with the exact given
	// direction, regardless of status.
	GetFriendRequestBetween(ctx context.Context, fromID, toID string) (*FriendRequest, error)

	// UpdateFriendRequestStatus updates the status of a request.
	UpdateFriendRequestStatus(ctx context.Context, id string, status FriendStatus) error

	// DeleteFriendRequest removes a request record.
	DeleteFriendRequest(ctx context.Context, id string) error

	// ListIncomingPending lists pending requests addressed to the user.
	ListIncomingPending(ctx context.Context, userID string) ([]*FriendRequest, error)

	// ListSentPending lists pending requests the user has sent.
	ListSentPending(ctx context.Context, userID string) ([]*FriendRequest, error)

	// HasAcceptedEdge reports whether an accepted request exists between the
	// two users in either direction.
	HasAcceptedEdge(ctx context.Context, userA, userB string) (bool, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists a message and its attachments. Sets msg.ID.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessagesByRoom retrieves all messages in a room, oldest first.
	ListMessagesByRoom(ctx context.Context, roomID string) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	GroupStore
	FriendStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}

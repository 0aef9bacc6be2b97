package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/loomchat/loom-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chat_groups (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	creator_id TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (creator_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id  TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	is_admin  BOOLEAN NOT NULL DEFAULT 0,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (group_id, user_id),
	FOREIGN KEY (group_id) REFERENCES chat_groups(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS friend_requests (
	id         TEXT PRIMARY KEY,
	from_id    TEXT NOT NULL,
	to_id      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (from_id, to_id),
	FOREIGN KEY (from_id) REFERENCES users(id),
	FOREIGN KEY (to_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    TEXT NOT NULL,
	sender     TEXT NOT NULL,
	body       TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS message_attachments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id INTEGER NOT NULL,
	position   INTEGER NOT NULL,
	url        TEXT NOT NULL,
	storage_id TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL DEFAULT 'raw',
	width      INTEGER,
	height     INTEGER,
	duration   INTEGER,
	name       TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at);
CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id);
CREATE INDEX IF NOT EXISTS idx_friend_requests_to ON friend_requests(to_id, status);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO users (id, username, password_hash)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, username, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== GroupStore implementation ====

// CreateGroup creates a group. The creator is added to members and admins
// regardless of whether it appears in memberIDs.
func (s *SQLiteStore) CreateGroup(ctx context.Context, name, creatorID string, memberIDs []string) (*store.Group, error) {
	id := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_groups (id, name, creator_id) VALUES (?, ?, ?)`,
		id, name, creatorID,
	); err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}

	memberQuery := `
		INSERT OR IGNORE INTO group_members (group_id, user_id, is_admin)
		VALUES (?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, memberQuery, id, creatorID, true); err != nil {
		return nil, fmt.Errorf("add creator to members: %w", err)
	}
	for _, memberID := range memberIDs {
		if memberID == creatorID {
			continue
		}
		if _, err := tx.ExecContext(ctx, memberQuery, id, memberID, false); err != nil {
			return nil, fmt.Errorf("add member %s: %w", memberID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetGroup(ctx, id)
}

// GetGroup retrieves a group with its full roster.
func (s *SQLiteStore) GetGroup(ctx context.Context, id string) (*store.Group, error) {
	query := `
		SELECT id, name, creator_id, created_at
		FROM chat_groups
		WHERE id = ?
	`
	var group store.Group
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.CreatorID,
		&group.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query group: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, is_admin FROM group_members WHERE group_id = ? ORDER BY joined_at ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		var isAdmin bool
		if err := rows.Scan(&userID, &isAdmin); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		group.Members = append(group.Members, userID)
		if isAdmin {
			group.Admins = append(group.Admins, userID)
		}
	}

	return &group, rows.Err()
}

// ListGroupsForUser lists groups the user is a member of.
func (s *SQLiteStore) ListGroupsForUser(ctx context.Context, userID string) ([]*store.Group, error) {
	query := `
		SELECT g.id
		FROM chat_groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = ?
		ORDER BY g.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groups := make([]*store.Group, 0, len(ids))
	for _, id := range ids {
		group, err := s.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}

	return groups, nil
}

// AddGroupMember adds a user to the group member set. Idempotent.
func (s *SQLiteStore) AddGroupMember(ctx context.Context, groupID, userID string) error {
	query := `
		INSERT OR IGNORE INTO group_members (group_id, user_id, is_admin)
		VALUES (?, ?, 0)
	`
	if _, err := s.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("insert group member: %w", err)
	}
	return nil
}

// RemoveGroupMember removes a user from the member and admin sets.
func (s *SQLiteStore) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	query := `
		DELETE FROM group_members
		WHERE group_id = ? AND user_id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("delete group member: %w", err)
	}
	return nil
}

// ==== FriendStore implementation ====

// CreateFriendRequest creates a pending request from one user to another.
func (s *SQLiteStore) CreateFriendRequest(ctx context.Context, fromID, toID string) (*store.FriendRequest, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO friend_requests (id, from_id, to_id, status)
		VALUES (?, ?, ?, 'pending')
	`
	if _, err := s.db.ExecContext(ctx, query, id, fromID, toID); err != nil {
		return nil, fmt.Errorf("insert friend request: %w", err)
	}

	return s.GetFriendRequest(ctx, id)
}

// GetFriendRequest retrieves a request by ID.
func (s *SQLiteStore) GetFriendRequest(ctx context.Context, id string) (*store.FriendRequest, error) {
	query := `
		SELECT id, from_id, to_id, status, created_at, updated_at
		FROM friend_requests
		WHERE id = ?
	`
	return s.scanFriendRequest(s.db.QueryRowContext(ctx, query, id))
}

// GetFriendRequestBetween retrieves the request with the exact given
// direction, regardless of status.
func (s *SQLiteStore) GetFriendRequestBetween(ctx context.Context, fromID, toID string) (*store.FriendRequest, error) {
	query := `
		SELECT id, from_id, to_id, status, created_at, updated_at
		FROM friend_requests
		WHERE from_id = ? AND to_id = ?
	`
	return s.scanFriendRequest(s.db.QueryRowContext(ctx, query, fromID, toID))
}

func (s *SQLiteStore) scanFriendRequest(row *sql.Row) (*store.FriendRequest, error) {
	var fr store.FriendRequest
	var status string
	err := row.Scan(
		&fr.ID,
		&fr.FromID,
		&fr.ToID,
		&status,
		&fr.CreatedAt,
		&fr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("friend request: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query friend request: %w", err)
	}
	fr.Status = store.FriendStatus(status)
	return &fr, nil
}

// UpdateFriendRequestStatus updates the status of a request.
func (s *SQLiteStore) UpdateFriendRequestStatus(ctx context.Context, id string, status store.FriendStatus) error {
	query := `
		UPDATE friend_requests
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("update friend request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("friend request %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// DeleteFriendRequest removes a request record.
func (s *SQLiteStore) DeleteFriendRequest(ctx context.Context, id string) error {
	query := `DELETE FROM friend_requests WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	return nil
}

// ListIncomingPending lists pending requests addressed to the user.
func (s *SQLiteStore) ListIncomingPending(ctx context.Context, userID string) ([]*store.FriendRequest, error) {
	query := `
		SELECT id, from_id, to_id, status, created_at, updated_at
		FROM friend_requests
		WHERE to_id = ? AND status = 'pending'
		ORDER BY created_at DESC
	`
	return s.listFriendRequests(ctx, query, userID)
}

// ListSentPending lists pending requests the user has sent.
func (s *SQLiteStore) ListSentPending(ctx context.Context, userID string) ([]*store.FriendRequest, error) {
	query := `
		SELECT id, from_id, to_id, status, created_at, updated_at
		FROM friend_requests
		WHERE from_id = ? AND status = 'pending'
		ORDER BY created_at DESC
	`
	return s.listFriendRequests(ctx, query, userID)
}

func (s *SQLiteStore) listFriendRequests(ctx context.Context, query string, args ...interface{}) ([]*store.FriendRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query friend requests: %w", err)
	}
	defer rows.Close()

	var requests []*store.FriendRequest
	for rows.Next() {
		var fr store.FriendRequest
		var status string
		if err := rows.Scan(&fr.ID, &fr.FromID, &fr.ToID, &status, &fr.CreatedAt, &fr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		fr.Status = store.FriendStatus(status)
		requests = append(requests, &fr)
	}

	return requests, rows.Err()
}

// HasAcceptedEdge reports whether an accepted request exists between the two
// users in either direction.
func (s *SQLiteStore) HasAcceptedEdge(ctx context.Context, userA, userB string) (bool, error) {
	query := `
		SELECT 1 FROM friend_requests
		WHERE ((from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?))
		AND status = 'accepted'
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, userA, userB, userB, userA).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query friendship: %w", err)
	}
	return true, nil
}

// ==== MessageStore implementation ====

// AppendMessage persists a message and its attachments. Sets msg.ID.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO messages (room_id, sender, body, created_at) VALUES (?, ?, ?, ?)`,
		msg.RoomID, msg.Sender, msg.Text, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	attachQuery := `
		INSERT INTO message_attachments (message_id, position, url, storage_id, kind, width, height, duration, name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, att := range msg.Attachments {
		if _, err := tx.ExecContext(ctx, attachQuery,
			id, i, att.URL, att.StorageID, att.Kind, att.Width, att.Height, att.Duration, att.Name,
		); err != nil {
			return fmt.Errorf("insert attachment %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	msg.ID = id
	return nil
}

// ListMessagesByRoom retrieves all messages in a room, oldest first.
func (s *SQLiteStore) ListMessagesByRoom(ctx context.Context, roomID string) ([]*store.Message, error) {
	query := `
		SELECT id, room_id, sender, body, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	byID := make(map[int64]*store.Message)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Sender, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
		byID[msg.ID] = &msg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return messages, nil
	}

	attachQuery := `
		SELECT a.message_id, a.url, a.storage_id, a.kind, a.width, a.height, a.duration, a.name
		FROM message_attachments a
		JOIN messages m ON m.id = a.message_id
		WHERE m.room_id = ?
		ORDER BY a.message_id ASC, a.position ASC
	`
	attRows, err := s.db.QueryContext(ctx, attachQuery, roomID)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer attRows.Close()

	for attRows.Next() {
		var messageID int64
		var att store.Attachment
		var width, height, duration sql.NullInt64
		if err := attRows.Scan(&messageID, &att.URL, &att.StorageID, &att.Kind, &width, &height, &duration, &att.Name); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		if width.Valid {
			w := int(width.Int64)
			att.Width = &w
		}
		if height.Valid {
			h := int(height.Int64)
			att.Height = &h
		}
		if duration.Valid {
			d := int(duration.Int64)
			att.Duration = &d
		}
		if msg, ok := byID[messageID]; ok {
			msg.Attachments = append(msg.Attachments, att)
		}
	}

	return messages, attRows.Err()
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/chatsphere-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	username      TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL DEFAULT '',
	avatar_url    TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'active',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen     DATETIME
);

CREATE TABLE IF NOT EXISTS messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	from_user_id TEXT NOT NULL,
	chat_type    TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	content      TEXT NOT NULL,
	message_type TEXT NOT NULL DEFAULT 'text',
	reply_to_id  INTEGER,
	is_edited    BOOLEAN NOT NULL DEFAULT 0,
	is_deleted   BOOLEAN NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (from_user_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_type, target_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_user_id, created_at);

CREATE TABLE IF NOT EXISTS conversations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id         TEXT NOT NULL,
	chat_type       TEXT NOT NULL,
	chat_id         TEXT NOT NULL,
	last_message_id INTEGER,
	unread_count    INTEGER NOT NULL DEFAULT 0,
	is_muted        BOOLEAN NOT NULL DEFAULT 0,
	is_pinned       BOOLEAN NOT NULL DEFAULT 0,
	is_archived     BOOLEAN NOT NULL DEFAULT 0,
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (user_id, chat_type, chat_id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at);

CREATE TABLE IF NOT EXISTS rooms (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	is_public   BOOLEAN NOT NULL DEFAULT 1,
	max_members INTEGER NOT NULL DEFAULT 1000,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS groups (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	avatar_url TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (owner_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id  TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (group_id, user_id),
	FOREIGN KEY (group_id) REFERENCES groups(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	expires_at DATETIME NOT NULL,
	revoked    BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(id)
);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function
// instead of the embedded schema. Useful for tests that need a
// non-standard layout.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits before setup
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	// Test connection
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

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ==== UserStore implementation ====

// CreateUser creates an active user with a hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, username, displayName, passwordHash string) (*store.User, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO users (id, email, username, display_name, password_hash, status)
		VALUES (?, ?, ?, ?, ?, 'active')
	`
	if _, err := s.db.ExecContext(ctx, query, id, email, username, displayName, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by id regardless of status.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*store.User, error) {
	query := `
		SELECT id, email, username, display_name, avatar_url, password_hash, status, created_at, last_seen
		FROM users
		WHERE ` + where

	var (
		user     store.User
		status   string
		lastSeen sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.DisplayName,
		&user.AvatarURL,
		&user.PasswordHash,
		&status,
		&user.CreatedAt,
		&lastSeen,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	user.Status = store.UserStatus(status)
	if lastSeen.Valid {
		t := lastSeen.Time
		user.LastSeen = &t
	}
	return &user, nil
}

// TouchLastSeen records the most recent connect/disconnect time.
func (s *SQLiteStore) TouchLastSeen(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_seen = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, at.UTC(), userID); err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}
	return nil
}

// UpdateUserStatus activates, deactivates or bans an account.
func (s *SQLiteStore) UpdateUserStatus(ctx context.Context, userID string, status store.UserStatus) error {
	query := `UPDATE users SET status = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, string(status), userID)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountUsers returns the total number of accounts.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills in ID and CreatedAt.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.MessageType == "" {
		msg.MessageType = store.MessageTypeText
	}
	msg.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO messages (from_user_id, chat_type, target_id, content, message_type, reply_to_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var replyTo sql.NullInt64
	if msg.ReplyToID != nil {
		replyTo = sql.NullInt64{Int64: *msg.ReplyToID, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, query,
		msg.FromUserID, string(msg.ChatType), msg.TargetID, msg.Content, string(msg.MessageType), replyTo, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// GetMessageByID retrieves a single message.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, from_user_id, chat_type, target_id, content, message_type, reply_to_id, is_edited, is_deleted, created_at
		FROM messages
		WHERE id = ?
	`
	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message not found: %w", err)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// ListMessages pages through a chat's history, newest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatType store.ChatType, chatID, viewerID string, limit, offset int) ([]*store.Message, error) {
	var (
		query string
		args  []any
	)
	if chatType == store.ChatTypePrivate {
		query = `
			SELECT id, from_user_id, chat_type, target_id, content, message_type, reply_to_id, is_edited, is_deleted, created_at
			FROM messages
			WHERE chat_type = ? AND is_deleted = 0
			  AND ((from_user_id = ? AND target_id = ?) OR (from_user_id = ? AND target_id = ?))
			ORDER BY created_at DESC, id DESC
			LIMIT ? OFFSET ?
		`
		args = []any{string(chatType), viewerID, chatID, chatID, viewerID, limit, offset}
	} else {
		query = `
			SELECT id, from_user_id, chat_type, target_id, content, message_type, reply_to_id, is_edited, is_deleted, created_at
			FROM messages
			WHERE chat_type = ? AND target_id = ? AND is_deleted = 0
			ORDER BY created_at DESC, id DESC
			LIMIT ? OFFSET ?
		`
		args = []any{string(chatType), chatID, limit, offset}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// CountMessages returns the total number of stored messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// CountMessagesSince counts messages created at or after the given time.
func (s *SQLiteStore) CountMessagesSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM messages WHERE created_at >= ?`
	if err := s.db.QueryRowContext(ctx, query, since.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages since: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg      store.Message
		chatType string
		msgType  string
		replyTo  sql.NullInt64
	)
	err := row.Scan(
		&msg.ID,
		&msg.FromUserID,
		&chatType,
		&msg.TargetID,
		&msg.Content,
		&msgType,
		&replyTo,
		&msg.IsEdited,
		&msg.IsDeleted,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.ChatType = store.ChatType(chatType)
	msg.MessageType = store.MessageType(msgType)
	if replyTo.Valid {
		v := replyTo.Int64
		msg.ReplyToID = &v
	}
	return &msg, nil
}

// ==== ConversationStore implementation ====

// UpsertConversation points the summary row at messageID, bumps updated_at,
// and bumps the unread counter when incrementUnread is set.
func (s *SQLiteStore) UpsertConversation(ctx context.Context, userID string, chatType store.ChatType, chatID string, messageID int64, incrementUnread bool) error {
	initial := 0
	increment := 0
	if incrementUnread {
		initial = 1
		increment = 1
	}

	query := `
		INSERT INTO conversations (user_id, chat_type, chat_id, last_message_id, unread_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, chat_type, chat_id) DO UPDATE SET
			last_message_id = excluded.last_message_id,
			unread_count    = unread_count + ?,
			updated_at      = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		userID, string(chatType), chatID, messageID, initial, time.Now().UTC(), increment)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

// MarkConversationRead resets the unread counter. Returns true only when
// a positive counter was reset.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, userID string, chatType store.ChatType, chatID string) (bool, error) {
	query := `
		UPDATE conversations
		SET unread_count = 0, updated_at = ?
		WHERE user_id = ? AND chat_type = ? AND chat_id = ? AND unread_count > 0
	`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), userID, string(chatType), chatID)
	if err != nil {
		return false, fmt.Errorf("mark conversation read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetConversation retrieves one summary row.
func (s *SQLiteStore) GetConversation(ctx context.Context, userID string, chatType store.ChatType, chatID string) (*store.Conversation, error) {
	query := `
		SELECT id, user_id, chat_type, chat_id, last_message_id, unread_count, is_muted, is_pinned, is_archived, updated_at
		FROM conversations
		WHERE user_id = ? AND chat_type = ? AND chat_id = ?
	`
	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, userID, string(chatType), chatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation not found: %w", err)
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns non-archived summaries, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string, limit int) ([]*store.Conversation, error) {
	query := `
		SELECT id, user_id, chat_type, chat_id, last_message_id, unread_count, is_muted, is_pinned, is_archived, updated_at
		FROM conversations
		WHERE user_id = ? AND is_archived = 0
		ORDER BY updated_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*store.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return conversations, nil
}

// ListRoomConversationUserIDs returns the users holding a summary row for
// the room.
func (s *SQLiteStore) ListRoomConversationUserIDs(ctx context.Context, roomID string) ([]string, error) {
	query := `
		SELECT DISTINCT user_id
		FROM conversations
		WHERE chat_type = 'room' AND chat_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query room conversation users: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return userIDs, nil
}

func scanConversation(row rowScanner) (*store.Conversation, error) {
	var (
		conv     store.Conversation
		chatType string
		lastMsg  sql.NullInt64
	)
	err := row.Scan(
		&conv.ID,
		&conv.UserID,
		&chatType,
		&conv.ChatID,
		&lastMsg,
		&conv.UnreadCount,
		&conv.IsMuted,
		&conv.IsPinned,
		&conv.IsArchived,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	conv.ChatType = store.ChatType(chatType)
	if lastMsg.Valid {
		v := lastMsg.Int64
		conv.LastMessageID = &v
	}
	return &conv, nil
}

// ==== RoomStore implementation ====

// CreateRoom inserts a room with the given slug id.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *store.Room) error {
	if room.MaxMembers <= 0 {
		room.MaxMembers = 1000
	}
	query := `
		INSERT INTO rooms (id, name, description, is_public, max_members)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, room.ID, room.Name, room.Description, room.IsPublic, room.MaxMembers); err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// GetRoomByID retrieves a room.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id string) (*store.Room, error) {
	query := `
		SELECT id, name, description, is_public, max_members, created_at
		FROM rooms
		WHERE id = ?
	`
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID,
		&room.Name,
		&room.Description,
		&room.IsPublic,
		&room.MaxMembers,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room not found: %w", err)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return &room, nil
}

// ListPublicRooms lists public rooms up to limit.
func (s *SQLiteStore) ListPublicRooms(ctx context.Context, limit int) ([]*store.Room, error) {
	query := `
		SELECT id, name, description, is_public, max_members, created_at
		FROM rooms
		WHERE is_public = 1
		ORDER BY created_at
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Description, &room.IsPublic, &room.MaxMembers, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

// ==== GroupStore implementation ====

// CreateGroup creates a group owned by ownerID, who becomes its first member.
func (s *SQLiteStore) CreateGroup(ctx context.Context, name, ownerID string) (*store.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	if _, err := tx.ExecContext(ctx, `INSERT INTO groups (id, name, owner_id) VALUES (?, ?, ?)`, id, name, ownerID); err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`, id, ownerID); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.GetGroupByID(ctx, id)
}

// GetGroupByID retrieves a group.
func (s *SQLiteStore) GetGroupByID(ctx context.Context, id string) (*store.Group, error) {
	query := `
		SELECT id, name, owner_id, avatar_url, created_at
		FROM groups
		WHERE id = ?
	`
	var group store.Group
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.OwnerID,
		&group.AvatarURL,
		&group.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group not found: %w", err)
		}
		return nil, fmt.Errorf("query group: %w", err)
	}
	return &group, nil
}

// AddGroupMember inserts a membership row; adding twice is a no-op.
func (s *SQLiteStore) AddGroupMember(ctx context.Context, groupID, userID string) error {
	query := `INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("insert group member: %w", err)
	}
	return nil
}

// ListGroupMembers returns the member user ids of a group.
func (s *SQLiteStore) ListGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	query := `
		SELECT user_id
		FROM group_members
		WHERE group_id = ?
		ORDER BY joined_at
	`
	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// ==== TokenStore implementation ====

// SaveRefreshToken stores a freshly issued refresh token.
func (s *SQLiteStore) SaveRefreshToken(ctx context.Context, token, userID string, expiresAt time.Time) error {
	query := `INSERT INTO refresh_tokens (token, user_id, expires_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, token, userID, expiresAt.UTC()); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken retrieves a refresh token row.
func (s *SQLiteStore) GetRefreshToken(ctx context.Context, token string) (*store.RefreshToken, error) {
	query := `
		SELECT token, user_id, expires_at, revoked, created_at
		FROM refresh_tokens
		WHERE token = ?
	`
	var rt store.RefreshToken
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&rt.Token,
		&rt.UserID,
		&rt.ExpiresAt,
		&rt.Revoked,
		&rt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("refresh token not found: %w", err)
		}
		return nil, fmt.Errorf("query refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token revoked; revoking twice is a no-op.
func (s *SQLiteStore) RevokeRefreshToken(ctx context.Context, token string) error {
	query := `UPDATE refresh_tokens SET revoked = 1 WHERE token = ?`
	if _, err := s.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Compile-time check that SQLiteStore satisfies the Store interface.
var _ store.Store = (*SQLiteStore)(nil)

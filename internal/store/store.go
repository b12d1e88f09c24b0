package store

import (
	"context"
	"time"
)

// UserStatus gates login and WebSocket handshakes.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusBanned   UserStatus = "banned"
)

// User represents an account row.
type User struct {
	ID           string // UUID
	Email        string
	Username     string
	DisplayName  string
	AvatarURL    string
	PasswordHash string
	Status       UserStatus
	CreatedAt    time.Time
	LastSeen     *time.Time
}

// ChatType is the routing kind of a message or conversation.
type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
	ChatTypeRoom    ChatType = "room"
)

// MessageType classifies message content.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
	MessageTypeEmoji  MessageType = "emoji"
)

// Message is a persisted chat message. TargetID is the peer user id,
// group id, or room id depending on ChatType.
type Message struct {
	ID          int64
	FromUserID  string
	ChatType    ChatType
	TargetID    string
	Content     string
	MessageType MessageType
	ReplyToID   *int64
	IsEdited    bool
	IsDeleted   bool
	CreatedAt   time.Time
}

// Conversation is a per-user rollup of one chat: unread counter and
// last-message pointer, distinct from the message log itself.
type Conversation struct {
	ID            int64
	UserID        string
	ChatType      ChatType
	ChatID        string
	LastMessageID *int64
	UnreadCount   int
	IsMuted       bool
	IsPinned      bool
	IsArchived    bool
	UpdatedAt     time.Time
}

// Room is a public channel. IDs are slugs ("general").
type Room struct {
	ID          string
	Name        string
	Description string
	IsPublic    bool
	MaxMembers  int
	CreatedAt   time.Time
}

// Group is a closed member list for group chats.
type Group struct {
	ID        string // UUID
	Name      string
	OwnerID   string
	AvatarURL string
	CreatedAt time.Time
}

// RefreshToken is an opaque long-lived credential backing token rotation.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates an active user with a hashed password.
	CreateUser(ctx context.Context, email, username, displayName, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by id regardless of status.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// TouchLastSeen records the most recent connect/disconnect time.
	TouchLastSeen(ctx context.Context, userID string, at time.Time) error

	// UpdateUserStatus activates, deactivates or bans an account.
	UpdateUserStatus(ctx context.Context, userID string, status UserStatus) error

	// CountUsers returns the total number of accounts.
	CountUsers(ctx context.Context) (int64, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessageByID retrieves a single message.
	GetMessageByID(ctx context.Context, id int64) (*Message, error)

	// ListMessages pages through a chat's history, newest first.
	// For private chats the result covers both directions between
	// viewerID and the target user.
	ListMessages(ctx context.Context, chatType ChatType, chatID, viewerID string, limit, offset int) ([]*Message, error)

	// CountMessages returns the total number of stored messages.
	CountMessages(ctx context.Context) (int64, error)

	// CountMessagesSince counts messages created at or after the given time.
	CountMessagesSince(ctx context.Context, since time.Time) (int64, error)
}

// ConversationStore handles conversation summary persistence.
type ConversationStore interface {
	// UpsertConversation points the summary row at messageID, bumps
	// updated_at, and increments the unread counter when incrementUnread
	// is set. Missing rows are created with unread 0 or 1 accordingly.
	UpsertConversation(ctx context.Context, userID string, chatType ChatType, chatID string, messageID int64, incrementUnread bool) error

	// MarkConversationRead resets the unread counter. Returns true only
	// when a positive counter was reset; repeated calls are no-ops.
	MarkConversationRead(ctx context.Context, userID string, chatType ChatType, chatID string) (bool, error)

	// GetConversation retrieves one summary row.
	GetConversation(ctx context.Context, userID string, chatType ChatType, chatID string) (*Conversation, error)

	// ListConversations returns non-archived summaries, newest first.
	ListConversations(ctx context.Context, userID string, limit int) ([]*Conversation, error)

	// ListRoomConversationUserIDs returns the users holding a summary row
	// for the room. Used as the participant fallback when the presence
	// store is unavailable.
	ListRoomConversationUserIDs(ctx context.Context, roomID string) ([]string, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom inserts a room with the given slug id.
	CreateRoom(ctx context.Context, room *Room) error

	// GetRoomByID retrieves a room.
	GetRoomByID(ctx context.Context, id string) (*Room, error)

	// ListPublicRooms lists public rooms up to limit.
	ListPublicRooms(ctx context.Context, limit int) ([]*Room, error)
}

// GroupStore handles group persistence.
type GroupStore interface {
	// CreateGroup creates a group owned by ownerID, who becomes its
	// first member.
	CreateGroup(ctx context.Context, name, ownerID string) (*Group, error)

	// GetGroupByID retrieves a group.
	GetGroupByID(ctx context.Context, id string) (*Group, error)

	// AddGroupMember inserts a membership row; adding twice is a no-op.
	AddGroupMember(ctx context.Context, groupID, userID string) error

	// ListGroupMembers returns the member user ids of a group.
	ListGroupMembers(ctx context.Context, groupID string) ([]string, error)
}

// TokenStore handles refresh token persistence.
type TokenStore interface {
	// SaveRefreshToken stores a freshly issued refresh token.
	SaveRefreshToken(ctx context.Context, token, userID string, expiresAt time.Time) error

	// GetRefreshToken retrieves a refresh token row.
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)

	// RevokeRefreshToken marks a token revoked; revoking twice is a no-op.
	RevokeRefreshToken(ctx context.Context, token string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore
	ConversationStore
	RoomStore
	GroupStore
	TokenStore

	// Ping verifies the underlying database connection.
	Ping(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}

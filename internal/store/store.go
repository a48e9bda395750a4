package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// RoomType defines different types of rooms.
type RoomType string

const (
	RoomTypePublic  RoomType = "public"
	RoomTypePrivate RoomType = "private"
	RoomTypeDirect  RoomType = "direct"
)

// Room represents a chat room. Direct rooms materialize DM conversations;
// they are keyed by direct_key ("dm:{minUserId}:{maxUserId}").
type Room struct {
	ID         int64
	Name       string
	Type       RoomType
	OwnerID    *int64  // nil for direct rooms
	InviteCode *string // set for private rooms only
	DirectKey  *string // set for direct rooms only
	CreatedAt  time.Time
}

// Message represents a persisted chat message. Username is populated on
// reads by joining the users table; it is not written.
type Message struct {
	ID             int64
	RoomID         int64
	UserID         int64
	Username       string
	Body           string
	AttachmentURL  string
	AttachmentKind string
	Edited         bool
	EditedAt       *time.Time
	CreatedAt      time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers searches for users by username substring.
	SearchUsers(ctx context.Context, query string) ([]*User, error)
}

// RoomStore handles room persistence and membership.
type RoomStore interface {
	// CreateRoom creates a new public or private room. The name is guarded
	// by a UNIQUE constraint at the schema level.
	CreateRoom(ctx context.Context, name string, roomType RoomType, ownerID *int64, inviteCode *string) (*Room, error)

	// CreateDirectRoom creates a direct room between two users, deduplicated
	// via directKey. Both users become members.
	CreateDirectRoom(ctx context.Context, directKey string, user1ID, user2ID int64) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// GetRoomByDirectKey retrieves a direct room by its direct_key.
	GetRoomByDirectKey(ctx context.Context, directKey string) (*Room, error)

	// ListRooms lists all rooms accessible to a user.
	ListRooms(ctx context.Context, userID int64) ([]*Room, error)

	// AddMember adds a user to a room. Idempotent.
	AddMember(ctx context.Context, userID, roomID int64) error

	// RemoveMember removes a user from a room.
	RemoveMember(ctx context.Context, userID, roomID int64) error

	// IsMember checks if user is a member of the room.
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)
}

// MessageStore handles message persistence. Deletions are physical; there
// are no tombstones.
type MessageStore interface {
	// SaveMessage persists a message and fills in its assigned ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a single message by ID.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// ListMessages retrieves up to limit messages from a room in
	// chronological order. If beforeID is set, only messages older than
	// that ID are returned.
	ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*Message, error)

	// UpdateMessageBody replaces a message's text and marks it edited.
	UpdateMessageBody(ctx context.Context, id int64, body string, editedAt time.Time) error

	// DeleteMessage removes a single message.
	DeleteMessage(ctx context.Context, id int64) error

	// DeleteUserMessages removes every message by one author in one room.
	// Returns the number of rows removed.
	DeleteUserMessages(ctx context.Context, roomID, userID int64) (int64, error)

	// ClearRoomMessages removes every message in a room.
	ClearRoomMessages(ctx context.Context, roomID int64) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}

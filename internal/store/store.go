package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// UserStatus is the persisted presence state of a user.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusAway    UserStatus = "away"
	UserStatusOffline UserStatus = "offline"
)

// User represents a user in the system.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Avatar       string
	Status       UserStatus
	LastSeen     time.Time
	CreatedAt    time.Time
}

// ChatType defines the kind of chat.
type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
)

// Chat represents a private or group chat.
type Chat struct {
	ID        string
	Type      ChatType
	Name      string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageType defines the content type of a message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// Message represents a persisted chat message. Seq is assigned by the
// database in insert order and defines the delivery order within a chat.
type Message struct {
	Seq       int64
	ID        string
	ChatID    string
	SenderID  string
	Content   string
	Type      MessageType
	ReplyTo   *string
	Edited    bool
	CreatedAt time.Time
}

// FriendRequestStatus defines the state of a friend request.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest represents a pending or resolved friend request.
type FriendRequest struct {
	ID         string
	FromUserID string
	ToUserID   string
	Status     FriendRequestStatus
	CreatedAt  time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers searches for users by username prefix or fragment.
	SearchUsers(ctx context.Context, query string) ([]*User, error)

	// SetStatus updates the authoritative presence status and last-seen time.
	SetStatus(ctx context.Context, userID string, status UserStatus, lastSeen time.Time) error
}

// ChatStore handles chat and participant persistence.
type ChatStore interface {
	// CreateChat creates a chat and adds the given participants.
	CreateChat(ctx context.Context, chatType ChatType, name, createdBy string, participantIDs []string) (*Chat, error)

	// GetChatByID retrieves a chat by ID.
	GetChatByID(ctx context.Context, id string) (*Chat, error)

	// ListChats lists chats the user participates in, most recent activity first.
	ListChats(ctx context.Context, userID string) ([]*Chat, error)

	// AddParticipant adds a user to a chat. Idempotent.
	AddParticipant(ctx context.Context, chatID, userID string) error

	// ParticipantsOf returns the user IDs participating in a chat.
	ParticipantsOf(ctx context.Context, chatID string) ([]string, error)

	// ChatsOf returns the chat IDs a user participates in.
	ChatsOf(ctx context.Context, userID string) ([]string, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// InsertMessage durably stores a message and returns it with its
	// assigned sequence number, ID and timestamp.
	InsertMessage(ctx context.Context, chatID, senderID, content string, msgType MessageType, replyTo *string) (*Message, error)

	// IsMessageInChat reports whether the message exists and belongs to the chat.
	IsMessageInChat(ctx context.Context, messageID, chatID string) (bool, error)

	// ListMessages retrieves messages from a chat in ascending sequence order.
	// If beforeSeq is provided, only messages older than that sequence are returned.
	ListMessages(ctx context.Context, chatID string, limit int, beforeSeq *int64) ([]*Message, error)
}

// FriendStore handles friend-request and friendship persistence.
type FriendStore interface {
	// CreateFriendRequest creates a pending friend request.
	CreateFriendRequest(ctx context.Context, fromUserID, toUserID string) (*FriendRequest, error)

	// GetFriendRequest retrieves a friend request by ID.
	GetFriendRequest(ctx context.Context, id string) (*FriendRequest, error)

	// ListPendingRequests lists pending requests addressed to the user.
	ListPendingRequests(ctx context.Context, toUserID string) ([]*FriendRequest, error)

	// UpdateFriendRequestStatus resolves a request.
	UpdateFriendRequestStatus(ctx context.Context, id string, status FriendRequestStatus) error

	// CreateFriendship records an accepted friendship between two users.
	CreateFriendship(ctx context.Context, user1ID, user2ID string) error

	// AreFriends reports whether a friendship exists in either direction.
	AreFriends(ctx context.Context, user1ID, user2ID string) (bool, error)

	// ListFriends lists the users the given user is friends with.
	ListFriends(ctx context.Context, userID string) ([]*User, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChatStore
	MessageStore
	FriendStore

	// Close closes the underlying database connection.
	Close() error
}

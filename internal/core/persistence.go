package core

import (
	"context"
	"time"

	"github.com/vovakirdan/amity-server/internal/store"
)

// Persistence is the narrow storage surface the realtime core depends on.
// store.Store satisfies it; tests substitute fakes.
type Persistence interface {
	// InsertMessage durably stores a message and returns it with its
	// assigned sequence number. Fan-out never happens before this returns.
	InsertMessage(ctx context.Context, chatID, senderID, content string, msgType store.MessageType, replyTo *string) (*store.Message, error)

	// IsMessageInChat reports whether the message exists and belongs to the chat.
	IsMessageInChat(ctx context.Context, messageID, chatID string) (bool, error)

	// ParticipantsOf returns the user IDs participating in a chat.
	ParticipantsOf(ctx context.Context, chatID string) ([]string, error)

	// ChatsOf returns the chat IDs a user participates in.
	ChatsOf(ctx context.Context, userID string) ([]string, error)

	// SetStatus updates the authoritative presence status and last-seen time.
	SetStatus(ctx context.Context, userID string, status store.UserStatus, lastSeen time.Time) error
}

// TokenVerifier checks a bearer token and resolves it to an identity.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

package core

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/amity-server/internal/store"
)

const routerStripes = 64

var validMessageTypes = map[string]struct{}{
	string(store.MessageTypeText):  {},
	string(store.MessageTypeImage): {},
	string(store.MessageTypeFile):  {},
}

// MessageRouter validates, persists and fans out chat messages. Durability
// precedes visibility: an envelope is broadcast only after persistence has
// assigned its sequence number, and a failed persist produces no fan-out.
//
// Persist and fan-out run under a per-chat stripe lock, so every connection
// of a chat observes envelopes in assigned sequence order. Unrelated chats
// map to different stripes and do not contend.
//
// No echo suppression: the envelope is delivered to every live participant
// connection, the originating one included, and clients dedup by message ID.
type MessageRouter struct {
	store      Persistence
	chats      *MembershipIndex
	typing     *TypingTracker
	log        *zerolog.Logger
	maxContent int

	stripes [routerStripes]sync.Mutex
}

// NewMessageRouter constructs a router. maxContent bounds message content
// length in bytes; zero means no bound.
func NewMessageRouter(p Persistence, chats *MembershipIndex, typing *TypingTracker, logger *zerolog.Logger, maxContent int) *MessageRouter {
	return &MessageRouter{
		store:      p,
		chats:      chats,
		typing:     typing,
		log:        logger,
		maxContent: maxContent,
	}
}

// Submit routes one message intent: authorization, validation, durable
// persist, then fan-out. Errors are local to the submission; nothing about
// the sender's session or other connections changes on failure.
func (r *MessageRouter) Submit(ctx context.Context, sender Identity, chatID, content, msgType string, replyTo *string) (*Message, *CoreError) {
	ok, err := r.chats.IsParticipant(ctx, chatID, sender.ID)
	if err != nil {
		r.log.Error().Err(err).Str("chat_id", chatID).Msg("participant lookup failed")
		return nil, coreError(ErrCodePersistence, "could not verify chat membership")
	}
	if !ok {
		return nil, coreError(ErrCodeForbidden, "not a participant of this chat")
	}

	if content == "" {
		return nil, coreError(ErrCodeInvalidMessage, "message content is empty")
	}
	if r.maxContent > 0 && len(content) > r.maxContent {
		return nil, coreError(ErrCodeInvalidMessage, "message content too long")
	}
	if msgType == "" {
		msgType = string(store.MessageTypeText)
	}
	if _, valid := validMessageTypes[msgType]; !valid {
		return nil, coreError(ErrCodeInvalidMessage, "unrecognized message type")
	}
	if replyTo != nil {
		inChat, err := r.store.IsMessageInChat(ctx, *replyTo, chatID)
		if err != nil {
			r.log.Error().Err(err).Str("chat_id", chatID).Msg("reply target lookup failed")
			return nil, coreError(ErrCodePersistence, "could not verify reply target")
		}
		if !inChat {
			return nil, coreError(ErrCodeInvalidMessage, "reply target is not in this chat")
		}
	}

	stripe := &r.stripes[stripeFor(chatID)]
	stripe.Lock()
	defer stripe.Unlock()

	stored, err := r.store.InsertMessage(ctx, chatID, sender.ID, content, store.MessageType(msgType), replyTo)
	if err != nil {
		r.log.Error().Err(err).Str("chat_id", chatID).Str("sender_id", sender.ID).Msg("message persist failed")
		return nil, coreError(ErrCodePersistence, "failed to store message")
	}

	envelope := &Message{
		Seq:        stored.Seq,
		ID:         stored.ID,
		ChatID:     stored.ChatID,
		SenderID:   stored.SenderID,
		SenderName: sender.Name,
		Content:    stored.Content,
		Type:       string(stored.Type),
		ReplyTo:    stored.ReplyTo,
		CreatedAt:  stored.CreatedAt,
	}

	clients, err := r.chats.LiveConnectionsFor(ctx, chatID)
	if err != nil {
		// The message is durable; recipients will see it via history. Log and
		// report success to the sender.
		r.log.Warn().Err(err).Str("chat_id", chatID).Msg("fan-out target resolution failed")
		return envelope, nil
	}

	senderWasTyping := r.typing != nil && r.typing.StopUser(chatID, sender.ID)

	ev := &Event{Kind: EventNewMessage, ChatID: chatID, Message: *envelope}
	for _, c := range clients {
		c.Send(ev)
		if senderWasTyping {
			if peer, authed := c.Identity(); authed && peer.ID != sender.ID {
				c.Send(&Event{Kind: EventTypingStopped, ChatID: chatID, User: sender})
			}
		}
	}

	return envelope, nil
}

func stripeFor(chatID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chatID))
	return h.Sum32() % routerStripes
}

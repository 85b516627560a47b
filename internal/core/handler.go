package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ConnectionHandler drives the per-connection state machine:
// anonymous -> authenticated -> subscribed. The transport layer calls
// HandleIntent for every inbound intent and Disconnect exactly once when the
// connection goes away. All intents of one connection are processed on that
// connection's goroutine; the shared components synchronize internally.
type ConnectionHandler struct {
	verifier TokenVerifier
	registry *SessionRegistry
	chats    *MembershipIndex
	presence *PresenceTracker
	router   *MessageRouter
	typing   *TypingTracker
	log      *zerolog.Logger

	authTimeout time.Duration
}

// NewConnectionHandler wires the realtime components behind one entry point.
func NewConnectionHandler(
	verifier TokenVerifier,
	registry *SessionRegistry,
	chats *MembershipIndex,
	presence *PresenceTracker,
	router *MessageRouter,
	typing *TypingTracker,
	logger *zerolog.Logger,
	authTimeout time.Duration,
) *ConnectionHandler {
	if authTimeout <= 0 {
		authTimeout = 30 * time.Second
	}
	return &ConnectionHandler{
		verifier:    verifier,
		registry:    registry,
		chats:       chats,
		presence:    presence,
		router:      router,
		typing:      typing,
		log:         logger,
		authTimeout: authTimeout,
	}
}

// AuthTimeout is how long a connection may stay anonymous before the
// transport should close it.
func (h *ConnectionHandler) AuthTimeout() time.Duration {
	return h.authTimeout
}

// HandleIntent processes one inbound intent. Errors are reported back on the
// same connection and never affect other connections.
func (h *ConnectionHandler) HandleIntent(ctx context.Context, c *Client, intent Intent) {
	if intent.Kind == IntentAuthenticate {
		h.authenticate(ctx, c, intent.Token)
		return
	}

	identity, ok := c.Identity()
	if !ok {
		c.Send(&Event{Kind: EventError, Error: coreError(ErrCodeAuthFailure, "not authenticated")})
		return
	}

	// Any intent from an authenticated connection counts as activity.
	h.presence.MarkActive(ctx, identity)

	switch intent.Kind {
	case IntentJoinChat:
		h.join(ctx, c, identity, intent.ChatID)
	case IntentLeaveChat:
		// Leaving is a local unsubscribe; unknown chats are a no-op.
		delete(c.chats, intent.ChatID)
	case IntentSendMessage:
		if _, coreErr := h.router.Submit(ctx, identity, intent.ChatID, intent.Content, intent.Type, intent.ReplyTo); coreErr != nil {
			c.Send(&Event{Kind: EventError, ChatID: intent.ChatID, Error: coreErr})
		}
	case IntentStartTyping:
		h.setTyping(ctx, c, identity, intent.ChatID, true)
	case IntentStopTyping:
		h.setTyping(ctx, c, identity, intent.ChatID, false)
	default:
		c.Send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "unknown intent")})
	}
}

// Disconnect tears down all state tied to the connection: typing indicators,
// the registry entry, and the presence transition if this was the identity's
// last connection. Safe to call for connections that never authenticated.
func (h *ConnectionHandler) Disconnect(ctx context.Context, c *Client) {
	identity, authed := c.Identity()

	for _, key := range h.typing.ClearConnection(c.ConnID) {
		h.relayTyping(ctx, c, key.ChatID, Identity{ID: key.UserID, Name: identity.Name}, false)
	}

	userID, wentOffline := h.registry.Unregister(c.ConnID)
	if authed && userID != "" {
		h.presence.ClientDisconnected(ctx, identity, wentOffline)
	}

	c.Close(nil)
}

func (h *ConnectionHandler) authenticate(ctx context.Context, c *Client, token string) {
	if c.Authenticated() {
		// Repeated authenticate on a bound connection is acknowledged, not
		// re-verified.
		c.Send(&Event{Kind: EventAuthenticated})
		return
	}

	identity, err := h.verifier.Verify(token)
	if err != nil {
		h.log.Debug().Err(err).Str("conn_id", c.ConnID).Msg("authentication failed")
		// The connection stays open and anonymous; the client may retry.
		c.Send(&Event{Kind: EventAuthenticated, Error: coreError(ErrCodeAuthFailure, "invalid token")})
		return
	}

	c.bind(identity)
	if err := h.registry.Register(c); err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			h.log.Error().Str("conn_id", c.ConnID).Str("user_id", identity.ID).
				Msg("connection already registered under another identity")
			c.Send(&Event{Kind: EventError, Error: coreError(ErrCodeAlreadyRegistered, "connection already registered")})
			return
		}
		h.log.Error().Err(err).Str("conn_id", c.ConnID).Msg("registry registration failed")
		c.Send(&Event{Kind: EventAuthenticated, Error: coreError(ErrCodeAuthFailure, "registration failed")})
		return
	}

	h.presence.ClientConnected(ctx, identity)
	h.log.Info().Str("conn_id", c.ConnID).Str("user_id", identity.ID).Str("username", identity.Name).
		Msg("connection authenticated")
	c.Send(&Event{Kind: EventAuthenticated, User: identity})
}

func (h *ConnectionHandler) join(ctx context.Context, c *Client, identity Identity, chatID string) {
	if chatID == "" {
		c.Send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "chat id is required")})
		return
	}

	ok, err := h.chats.IsParticipant(ctx, chatID, identity.ID)
	if err != nil {
		h.log.Error().Err(err).Str("chat_id", chatID).Msg("participant lookup failed")
		c.Send(&Event{Kind: EventError, ChatID: chatID, Error: coreError(ErrCodePersistence, "could not verify chat membership")})
		return
	}
	if !ok {
		c.Send(&Event{Kind: EventError, ChatID: chatID, Error: coreError(ErrCodeForbidden, "not a participant of this chat")})
		return
	}

	c.chats[chatID] = struct{}{}
}

func (h *ConnectionHandler) setTyping(ctx context.Context, c *Client, identity Identity, chatID string, typing bool) {
	if chatID == "" {
		c.Send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "chat id is required")})
		return
	}

	ok, err := h.chats.IsParticipant(ctx, chatID, identity.ID)
	if err != nil || !ok {
		// Typing is best effort; a non-participant's indicator is silently
		// ignored rather than surfaced.
		return
	}

	if typing {
		if h.typing.Start(chatID, identity.ID, c.ConnID) {
			h.relayTyping(ctx, c, chatID, identity, true)
		}
		return
	}
	if h.typing.Stop(chatID, identity.ID, c.ConnID) {
		h.relayTyping(ctx, c, chatID, identity, false)
	}
}

// relayTyping delivers a typing event to the chat's live connections except
// the originating one. The typist's other devices do receive it.
func (h *ConnectionHandler) relayTyping(ctx context.Context, origin *Client, chatID string, identity Identity, started bool) {
	clients, err := h.chats.LiveConnectionsFor(ctx, chatID)
	if err != nil {
		h.log.Warn().Err(err).Str("chat_id", chatID).Msg("typing relay target resolution failed")
		return
	}

	kind := EventTypingStopped
	if started {
		kind = EventTypingStarted
	}
	ev := &Event{Kind: kind, ChatID: chatID, User: identity}
	for _, peer := range clients {
		if peer.ConnID == origin.ConnID {
			continue
		}
		peer.Send(ev)
	}
}

package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/amity-server/internal/store"
)

// Status is the presence state of an identity as derived from its live
// connections and activity. The in-memory value is a cache; the authoritative
// copy lives in persistence and is updated on every transition.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// PresenceTracker drives the per-identity state machine
// offline -> online -> away -> online -> offline and broadcasts transitions
// to the live connections of users who share a chat with the identity.
// Presence is never broadcast globally.
type PresenceTracker struct {
	store    Persistence
	chats    *MembershipIndex
	registry *SessionRegistry
	log      *zerolog.Logger

	mu    sync.Mutex
	state map[string]Status
}

// NewPresenceTracker constructs a tracker over the given collaborators.
func NewPresenceTracker(p Persistence, chats *MembershipIndex, registry *SessionRegistry, logger *zerolog.Logger) *PresenceTracker {
	return &PresenceTracker{
		store:    p,
		chats:    chats,
		registry: registry,
		log:      logger,
		state:    make(map[string]Status),
	}
}

// StatusOf returns the cached presence state of an identity.
func (t *PresenceTracker) StatusOf(userID string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.state[userID]; ok {
		return s
	}
	return StatusOffline
}

// ClientConnected records a newly registered connection. Only the identity's
// first connection fires the offline -> online transition; additional devices
// do not re-announce.
func (t *PresenceTracker) ClientConnected(ctx context.Context, identity Identity) {
	t.mu.Lock()
	current, known := t.state[identity.ID]
	if known && current != StatusOffline {
		t.mu.Unlock()
		return
	}
	t.state[identity.ID] = StatusOnline
	t.mu.Unlock()

	t.announce(ctx, identity, StatusOnline)
}

// ClientDisconnected records an unregistered connection. The offline
// transition fires exactly once, when the last connection goes away.
func (t *PresenceTracker) ClientDisconnected(ctx context.Context, identity Identity, wentOffline bool) {
	if !wentOffline {
		return
	}

	t.mu.Lock()
	delete(t.state, identity.ID)
	t.mu.Unlock()

	t.announce(ctx, identity, StatusOffline)
}

// MarkAway transitions an online identity to away. The idle policy deciding
// when to call this is external.
func (t *PresenceTracker) MarkAway(ctx context.Context, identity Identity) {
	t.mu.Lock()
	if t.state[identity.ID] != StatusOnline {
		t.mu.Unlock()
		return
	}
	t.state[identity.ID] = StatusAway
	t.mu.Unlock()

	t.announce(ctx, identity, StatusAway)
}

// MarkActive transitions an away identity back to online. Any inbound intent
// from an authenticated connection counts as activity.
func (t *PresenceTracker) MarkActive(ctx context.Context, identity Identity) {
	t.mu.Lock()
	if t.state[identity.ID] != StatusAway {
		t.mu.Unlock()
		return
	}
	t.state[identity.ID] = StatusOnline
	t.mu.Unlock()

	t.announce(ctx, identity, StatusOnline)
}

// announce persists the transition, then emits one presence event per live
// connection of every user sharing a chat with the identity. The identity's
// own connections are not notified.
func (t *PresenceTracker) announce(ctx context.Context, identity Identity, status Status) {
	now := time.Now().UTC()
	if err := t.store.SetStatus(ctx, identity.ID, store.UserStatus(status), now); err != nil {
		t.log.Warn().Err(err).Str("user_id", identity.ID).Str("status", string(status)).
			Msg("failed to persist presence status")
	}

	chatIDs, err := t.store.ChatsOf(ctx, identity.ID)
	if err != nil {
		t.log.Warn().Err(err).Str("user_id", identity.ID).Msg("failed to resolve chats for presence broadcast")
		return
	}

	ev := &Event{
		Kind:     EventPresenceChanged,
		User:     identity,
		Status:   status,
		LastSeen: now,
	}

	seen := make(map[string]struct{})
	for _, chatID := range chatIDs {
		clients, err := t.chats.LiveConnectionsFor(ctx, chatID)
		if err != nil {
			t.log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to resolve live connections for presence broadcast")
			continue
		}
		for _, c := range clients {
			if _, dup := seen[c.ConnID]; dup {
				continue
			}
			seen[c.ConnID] = struct{}{}
			if peer, ok := c.Identity(); !ok || peer.ID == identity.ID {
				continue
			}
			c.Send(ev)
		}
	}
}

package core

import (
	"context"
	"sync"
)

// MembershipIndex resolves chat participants and, through the session
// registry, the live connections of a chat. Participant sets are loaded from
// persistence on first use and cached until Invalidate is called for the
// chat. Live connections are always recomputed from the registry, never
// cached, so registry changes are visible to fan-out immediately.
type MembershipIndex struct {
	store    Persistence
	registry *SessionRegistry

	mu    sync.RWMutex
	cache map[string]map[string]struct{}
}

// NewMembershipIndex constructs an index over the given persistence and registry.
func NewMembershipIndex(p Persistence, registry *SessionRegistry) *MembershipIndex {
	return &MembershipIndex{
		store:    p,
		registry: registry,
		cache:    make(map[string]map[string]struct{}),
	}
}

// Participants returns the participant user IDs of a chat.
func (m *MembershipIndex) Participants(ctx context.Context, chatID string) ([]string, error) {
	set, err := m.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out, nil
}

// IsParticipant reports whether the user participates in the chat. Used as
// the authorization check before any send, subscribe or typing relay.
func (m *MembershipIndex) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	set, err := m.load(ctx, chatID)
	if err != nil {
		return false, err
	}
	_, ok := set[userID]
	return ok, nil
}

// LiveConnectionsFor returns every live connection of every chat participant.
func (m *MembershipIndex) LiveConnectionsFor(ctx context.Context, chatID string) ([]*Client, error) {
	set, err := m.load(ctx, chatID)
	if err != nil {
		return nil, err
	}

	clients := make([]*Client, 0)
	for userID := range set {
		clients = append(clients, m.registry.ConnectionsFor(userID)...)
	}
	return clients, nil
}

// Invalidate drops the cached participant set for a chat. Called whenever
// chat membership changes in persistence.
func (m *MembershipIndex) Invalidate(chatID string) {
	m.mu.Lock()
	delete(m.cache, chatID)
	m.mu.Unlock()
}

func (m *MembershipIndex) load(ctx context.Context, chatID string) (map[string]struct{}, error) {
	m.mu.RLock()
	set, ok := m.cache[chatID]
	m.mu.RUnlock()
	if ok {
		return set, nil
	}

	ids, err := m.store.ParticipantsOf(ctx, chatID)
	if err != nil {
		return nil, err
	}

	set = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	m.mu.Lock()
	// A concurrent loader may have won; keep whichever set is already cached
	// so readers observe a single version per load generation.
	if cached, ok := m.cache[chatID]; ok {
		set = cached
	} else {
		m.cache[chatID] = set
	}
	m.mu.Unlock()
	return set, nil
}

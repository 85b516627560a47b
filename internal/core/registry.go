package core

import "sync"

// SessionRegistry maps authenticated identities to their live connections.
// Multi-device is supported: one identity may own several connections. An
// identity is present iff it has at least one live authenticated connection;
// the entry disappears atomically when the last connection unregisters.
type SessionRegistry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Client
	byConn map[string]string
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byUser: make(map[string]map[string]*Client),
		byConn: make(map[string]string),
	}
}

// Register adds the client's connection under its bound identity. Registering
// the same connection twice is idempotent; registering a connection ID that
// is already bound to a different identity fails.
func (r *SessionRegistry) Register(c *Client) error {
	identity, ok := c.Identity()
	if !ok {
		return ErrNotAuthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, exists := r.byConn[c.ConnID]; exists {
		if owner != identity.ID {
			return ErrAlreadyRegistered
		}
		return nil
	}

	conns := r.byUser[identity.ID]
	if conns == nil {
		conns = make(map[string]*Client)
		r.byUser[identity.ID] = conns
	}
	conns[c.ConnID] = c
	r.byConn[c.ConnID] = identity.ID
	return nil
}

// Unregister removes the connection from whichever identity owns it and
// reports whether that identity went offline (last connection closed).
// Unknown connection IDs are a no-op.
func (r *SessionRegistry) Unregister(connID string) (userID string, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, exists := r.byConn[connID]
	if !exists {
		return "", false
	}

	delete(r.byConn, connID)
	conns := r.byUser[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, userID)
		return userID, true
	}
	return userID, false
}

// ConnectionsFor returns the live connections of an identity. The result is
// a copy; an unknown identity yields an empty slice.
func (r *SessionRegistry) ConnectionsFor(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	out := make([]*Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether the identity has at least one live connection.
func (r *SessionRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

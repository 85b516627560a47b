package core

import "sync"

// TypingTracker keeps the ephemeral set of who is typing where. Nothing here
// is persisted; indicators are cleared by a sent message, an explicit stop,
// or the typist's connection going away.
type TypingTracker struct {
	mu sync.Mutex
	// byChat maps chatID -> userID -> the connection IDs currently typing.
	byChat map[string]map[string]map[string]struct{}
}

// TypingKey identifies a (chat, user) typing indicator.
type TypingKey struct {
	ChatID string
	UserID string
}

// NewTypingTracker constructs an empty tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		byChat: make(map[string]map[string]map[string]struct{}),
	}
}

// Start records that a connection began typing. Returns true when the user
// was not typing in the chat before (first device), so callers relay exactly
// one started event per user.
func (t *TypingTracker) Start(chatID, userID, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := t.byChat[chatID]
	if users == nil {
		users = make(map[string]map[string]struct{})
		t.byChat[chatID] = users
	}
	conns := users[userID]
	first := len(conns) == 0
	if conns == nil {
		conns = make(map[string]struct{})
		users[userID] = conns
	}
	conns[connID] = struct{}{}
	return first
}

// Stop records that a connection stopped typing. Returns true when no other
// connection of the user is still typing in the chat.
func (t *TypingTracker) Stop(chatID, userID, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked(chatID, userID, connID)
}

// StopUser clears all of a user's typing state in a chat (a delivered message
// implies the user is done composing). Returns true if the user was typing.
func (t *TypingTracker) StopUser(chatID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := t.byChat[chatID]
	if len(users[userID]) == 0 {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.byChat, chatID)
	}
	return true
}

// ClearConnection removes the connection from every typing set and returns
// the (chat, user) indicators that are now fully stopped.
func (t *TypingTracker) ClearConnection(connID string) []TypingKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	stopped := make([]TypingKey, 0)
	for chatID, users := range t.byChat {
		for userID, conns := range users {
			if _, ok := conns[connID]; !ok {
				continue
			}
			if t.stopLocked(chatID, userID, connID) {
				stopped = append(stopped, TypingKey{ChatID: chatID, UserID: userID})
			}
		}
	}
	return stopped
}

func (t *TypingTracker) stopLocked(chatID, userID, connID string) bool {
	users := t.byChat[chatID]
	conns := users[userID]
	if _, ok := conns[connID]; !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) > 0 {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.byChat, chatID)
	}
	return true
}

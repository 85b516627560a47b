package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/amity-server/internal/store"
)

// fakeStore is an in-memory Persistence used by the core tests.
type fakeStore struct {
	mu           sync.Mutex
	participants map[string][]string // chatID -> user IDs
	chatsOf      map[string][]string // userID -> chat IDs
	replyTargets map[string]string   // messageID -> chatID
	statuses     map[string]store.UserStatus
	seq          int64

	insertErr        error
	participantsErr  error
	participantCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		participants: make(map[string][]string),
		chatsOf:      make(map[string][]string),
		replyTargets: make(map[string]string),
		statuses:     make(map[string]store.UserStatus),
	}
}

func (f *fakeStore) addChat(chatID string, userIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participants[chatID] = append(f.participants[chatID], userIDs...)
	for _, uid := range userIDs {
		f.chatsOf[uid] = append(f.chatsOf[uid], chatID)
	}
}

func (f *fakeStore) InsertMessage(_ context.Context, chatID, senderID, content string, msgType store.MessageType, replyTo *string) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.seq++
	return &store.Message{
		Seq:       f.seq,
		ID:        fmt.Sprintf("msg-%d", f.seq),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Type:      msgType,
		ReplyTo:   replyTo,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeStore) IsMessageInChat(_ context.Context, messageID, chatID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replyTargets[messageID] == chatID, nil
}

func (f *fakeStore) ParticipantsOf(_ context.Context, chatID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participantCalls++
	if f.participantsErr != nil {
		return nil, f.participantsErr
	}
	return append([]string(nil), f.participants[chatID]...), nil
}

func (f *fakeStore) ChatsOf(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chatsOf[userID]...), nil
}

func (f *fakeStore) SetStatus(_ context.Context, userID string, status store.UserStatus, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[userID] = status
	return nil
}

// fakeVerifier resolves tokens from a fixed table.
type fakeVerifier struct {
	tokens map[string]Identity
}

func (v fakeVerifier) Verify(token string) (Identity, error) {
	id, ok := v.tokens[token]
	if !ok {
		return Identity{}, errors.New("bad token")
	}
	return id, nil
}

// testRig wires the realtime components over a fake store.
type testRig struct {
	store    *fakeStore
	registry *SessionRegistry
	chats    *MembershipIndex
	typing   *TypingTracker
	presence *PresenceTracker
	router   *MessageRouter
	handler  *ConnectionHandler
}

func newTestRig(tokens map[string]Identity) *testRig {
	logger := zerolog.Nop()
	st := newFakeStore()
	registry := NewSessionRegistry()
	chats := NewMembershipIndex(st, registry)
	typing := NewTypingTracker()
	presence := NewPresenceTracker(st, chats, registry, &logger)
	router := NewMessageRouter(st, chats, typing, &logger, 1024)
	handler := NewConnectionHandler(fakeVerifier{tokens: tokens}, registry, chats, presence, router, typing, &logger, time.Second)
	return &testRig{
		store:    st,
		registry: registry,
		chats:    chats,
		typing:   typing,
		presence: presence,
		router:   router,
		handler:  handler,
	}
}

// connect builds an authenticated, registered client.
func (r *testRig) connect(t *testing.T, connID string, id Identity) *Client {
	t.Helper()
	c := NewClient(connID, 0)
	c.bind(id)
	if err := r.registry.Register(c); err != nil {
		t.Fatalf("register %s: %v", connID, err)
	}
	r.presence.ClientConnected(context.Background(), id)
	return c
}

func mustEvent(t *testing.T, c *Client, kind EventKind) *Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		ev, err := c.Next(ctx)
		if err != nil {
			t.Fatalf("expected event kind %v, got error: %v", kind, err)
		}
		if ev.Kind == kind {
			return ev
		}
	}
}

func noEvent(t *testing.T, c *Client) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if ev, err := c.Next(ctx); err == nil {
		t.Fatalf("expected no event, got kind %v", ev.Kind)
	}
}

package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/amity-server/internal/auth"
	"github.com/vovakirdan/amity-server/internal/config"
	"github.com/vovakirdan/amity-server/internal/core"
	"github.com/vovakirdan/amity-server/internal/service/friends"
	"github.com/vovakirdan/amity-server/internal/store"
	"github.com/vovakirdan/amity-server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return auth.NewService(st, jwtConfig)
}

type testEnv struct {
	ts      *httptest.Server
	store   store.Store
	auth    *auth.Service
	chats   *core.MembershipIndex
	handler *core.ConnectionHandler
}

// startTestServer wires the full server over an in-memory store.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	st := createTestStore(t)
	authService := createTestAuthService(t, st)
	friendsService := friends.New(st)

	registry := core.NewSessionRegistry()
	chats := core.NewMembershipIndex(st, registry)
	typing := core.NewTypingTracker()
	presence := core.NewPresenceTracker(st, chats, registry, &logger)
	router := core.NewMessageRouter(st, chats, typing, &logger, 4096)
	handler := core.NewConnectionHandler(
		testVerifier{auth: authService},
		registry, chats, presence, router, typing, &logger, 5*time.Second,
	)

	cfg := config.Default()
	cfg.Addr = ":0"
	server := NewServer(handler, chats, authService, friendsService, st, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, auth: authService, chats: chats, handler: handler}
}

type testVerifier struct {
	auth *auth.Service
}

func (v testVerifier) Verify(token string) (core.Identity, error) {
	claims, err := v.auth.ValidateToken(token)
	if err != nil {
		return core.Identity{}, err
	}
	return core.Identity{ID: claims.UserID, Name: claims.Username}, nil
}

// registerUser creates an account and returns its token and record.
func (e *testEnv) registerUser(t *testing.T, username string) (string, *store.User) {
	t.Helper()

	token, user, err := e.auth.Register(context.Background(), username, username+"@example.com", "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return token, user
}

// createChat persists a chat with the given participants.
func (e *testEnv) createChat(t *testing.T, chatType store.ChatType, createdBy string, participantIDs ...string) *store.Chat {
	t.Helper()

	chat, err := e.store.CreateChat(context.Background(), chatType, "test chat", createdBy, participantIDs)
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	e.chats.Invalidate(chat.ID)
	return chat
}

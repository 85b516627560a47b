package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/vovakirdan/amity-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func createUser(t *testing.T, st *SQLiteStore, username string) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), username, username+"@example.com", "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func TestUserRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, st, "alice")
	if alice.Status != store.UserStatusOffline {
		t.Fatalf("new users start offline, got %q", alice.Status)
	}

	byID, err := st.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	byName, err := st.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byID.ID != byName.ID {
		t.Fatal("lookups disagree")
	}

	if _, err := st.GetUserByID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchUsers(t *testing.T) {
	st := newTestStore(t)
	createUser(t, st, "alice")
	createUser(t, st, "alicia")
	createUser(t, st, "bob")

	found, err := st.SearchUsers(context.Background(), "ali")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(found))
	}
}

func TestSetStatusPersists(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice")

	if err := st.SetStatus(ctx, alice.ID, store.UserStatusAway, alice.CreatedAt); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err := st.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.UserStatusAway {
		t.Fatalf("expected away, got %q", got.Status)
	}
}

func TestChatParticipants(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")
	carol := createUser(t, st, "carol")

	chat, err := st.CreateChat(ctx, store.ChatTypeGroup, "plans", alice.ID, []string{alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	participants, err := st.ParticipantsOf(ctx, chat.ID)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(participants))
	}

	if err := st.AddParticipant(ctx, chat.ID, carol.ID); err != nil {
		t.Fatalf("add participant: %v", err)
	}
	// Idempotent.
	if err := st.AddParticipant(ctx, chat.ID, carol.ID); err != nil {
		t.Fatalf("re-add participant: %v", err)
	}
	participants, _ = st.ParticipantsOf(ctx, chat.ID)
	if len(participants) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(participants))
	}

	chats, err := st.ChatsOf(ctx, carol.ID)
	if err != nil {
		t.Fatalf("chats of: %v", err)
	}
	if len(chats) != 1 || chats[0] != chat.ID {
		t.Fatalf("unexpected chats: %v", chats)
	}
}

func TestMessageSequencesAscend(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice")
	chat, err := st.CreateChat(ctx, store.ChatTypeGroup, "seq", alice.ID, []string{alice.ID})
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	var last int64
	for i := 0; i < 5; i++ {
		msg, err := st.InsertMessage(ctx, chat.ID, alice.ID, "hello", store.MessageTypeText, nil)
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if msg.Seq <= last {
			t.Fatalf("sequence regressed: %d after %d", msg.Seq, last)
		}
		last = msg.Seq
	}
}

func TestListMessagesPagination(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice")
	chat, _ := st.CreateChat(ctx, store.ChatTypeGroup, "history", alice.ID, []string{alice.ID})

	for i := 0; i < 10; i++ {
		if _, err := st.InsertMessage(ctx, chat.ID, alice.ID, "m", store.MessageTypeText, nil); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	page, err := st.ListMessages(ctx, chat.ID, 4, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(page))
	}
	for i := 1; i < len(page); i++ {
		if page[i].Seq <= page[i-1].Seq {
			t.Fatalf("page not ascending: %+v", page)
		}
	}

	older, err := st.ListMessages(ctx, chat.ID, 4, &page[0].Seq)
	if err != nil {
		t.Fatalf("older page: %v", err)
	}
	if len(older) != 4 || older[len(older)-1].Seq >= page[0].Seq {
		t.Fatalf("older page overlaps: %+v", older)
	}
}

func TestIsMessageInChat(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice")
	chatA, _ := st.CreateChat(ctx, store.ChatTypeGroup, "a", alice.ID, []string{alice.ID})
	chatB, _ := st.CreateChat(ctx, store.ChatTypeGroup, "b", alice.ID, []string{alice.ID})

	msg, err := st.InsertMessage(ctx, chatA.ID, alice.ID, "hello", store.MessageTypeText, nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if ok, _ := st.IsMessageInChat(ctx, msg.ID, chatA.ID); !ok {
		t.Fatal("message should be in its own chat")
	}
	if ok, _ := st.IsMessageInChat(ctx, msg.ID, chatB.ID); ok {
		t.Fatal("message must not match a different chat")
	}
	if ok, _ := st.IsMessageInChat(ctx, "missing", chatA.ID); ok {
		t.Fatal("missing message must not match")
	}
}

func TestReplyToCarried(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice")
	chat, _ := st.CreateChat(ctx, store.ChatTypeGroup, "replies", alice.ID, []string{alice.ID})

	root, err := st.InsertMessage(ctx, chat.ID, alice.ID, "root", store.MessageTypeText, nil)
	if err != nil {
		t.Fatalf("insert root: %v", err)
	}
	reply, err := st.InsertMessage(ctx, chat.ID, alice.ID, "reply", store.MessageTypeText, &root.ID)
	if err != nil {
		t.Fatalf("insert reply: %v", err)
	}

	page, err := st.ListMessages(ctx, chat.ID, 10, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	last := page[len(page)-1]
	if last.ID != reply.ID || last.ReplyTo == nil || *last.ReplyTo != root.ID {
		t.Fatalf("reply_to not persisted: %+v", last)
	}
}

func TestFriendRequestLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")

	req, err := st.CreateFriendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if req.Status != store.FriendRequestPending {
		t.Fatalf("expected pending, got %q", req.Status)
	}

	pending, err := st.ListPendingRequests(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != req.ID {
		t.Fatalf("unexpected pending: %+v", pending)
	}

	if err := st.UpdateFriendRequestStatus(ctx, req.ID, store.FriendRequestAccepted); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := st.UpdateFriendRequestStatus(ctx, "missing", store.FriendRequestAccepted); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := st.CreateFriendship(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("create friendship: %v", err)
	}
	// Symmetric in either direction.
	for _, pair := range [][2]string{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		ok, err := st.AreFriends(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("are friends: %v", err)
		}
		if !ok {
			t.Fatalf("friendship not visible for pair %v", pair)
		}
	}

	friendsOfAlice, err := st.ListFriends(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list friends: %v", err)
	}
	if len(friendsOfAlice) != 1 || friendsOfAlice[0].ID != bob.ID {
		t.Fatalf("unexpected friends: %+v", friendsOfAlice)
	}
}

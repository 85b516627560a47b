package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/amity-server/internal/store"
	"github.com/vovakirdan/amity-server/internal/utils"
)

// schema is applied on open; every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	avatar        TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'offline',
	last_seen     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL CHECK(type IN ('private', 'group')),
	name       TEXT NOT NULL DEFAULT '',
	created_by TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (created_by) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS chat_participants (
	chat_id   TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (chat_id, user_id),
	FOREIGN KEY (chat_id) REFERENCES chats(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	chat_id    TEXT NOT NULL,
	sender_id  TEXT NOT NULL,
	content    TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT 'text' CHECK(type IN ('text', 'image', 'file')),
	reply_to   TEXT,
	edited     BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (chat_id) REFERENCES chats(id),
	FOREIGN KEY (sender_id) REFERENCES users(id),
	FOREIGN KEY (reply_to) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS friend_requests (
	id           TEXT PRIMARY KEY,
	from_user_id TEXT NOT NULL,
	to_user_id   TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'accepted', 'rejected')),
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(from_user_id, to_user_id),
	FOREIGN KEY (from_user_id) REFERENCES users(id),
	FOREIGN KEY (to_user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS friendships (
	id         TEXT PRIMARY KEY,
	user1_id   TEXT NOT NULL,
	user2_id   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user1_id, user2_id),
	FOREIGN KEY (user1_id) REFERENCES users(id),
	FOREIGN KEY (user2_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, seq);
CREATE INDEX IF NOT EXISTS idx_chat_participants_user ON chat_participants(user_id);
CREATE INDEX IF NOT EXISTS idx_friend_requests_to ON friend_requests(to_user_id, status);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and bootstraps the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs an extra setup function
// after the schema is applied. Useful for seeding data in tests.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}

	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	id := utils.NewID()
	query := `
		INSERT INTO users (id, username, email, password_hash)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, username, email, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, avatar, status, last_seen, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, avatar, status, last_seen, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// SearchUsers searches for users by username fragment.
func (s *SQLiteStore) SearchUsers(ctx context.Context, q string) ([]*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, avatar, status, last_seen, created_at
		FROM users
		WHERE username LIKE ?
		ORDER BY username
		LIMIT 50
	`
	rows, err := s.db.QueryContext(ctx, query, "%"+q+"%")
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	return s.collectUsers(rows)
}

// SetStatus updates a user's presence status and last-seen timestamp.
func (s *SQLiteStore) SetStatus(ctx context.Context, userID string, status store.UserStatus, lastSeen time.Time) error {
	query := `
		UPDATE users SET status = ?, last_seen = ? WHERE id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, string(status), lastSeen.UTC(), userID); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// ==== ChatStore implementation ====

// CreateChat creates a chat and adds the given participants.
func (s *SQLiteStore) CreateChat(ctx context.Context, chatType store.ChatType, name, createdBy string, participantIDs []string) (*store.Chat, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := utils.NewID()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chats (id, type, name, created_by) VALUES (?, ?, ?, ?)`,
		id, string(chatType), name, createdBy,
	); err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}

	for _, uid := range participantIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO chat_participants (chat_id, user_id) VALUES (?, ?)`,
			id, uid,
		); err != nil {
			return nil, fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.GetChatByID(ctx, id)
}

// GetChatByID retrieves a chat by ID.
func (s *SQLiteStore) GetChatByID(ctx context.Context, id string) (*store.Chat, error) {
	query := `
		SELECT id, type, name, COALESCE(created_by, ''), created_at, updated_at
		FROM chats
		WHERE id = ?
	`
	chat := &store.Chat{}
	var chatType string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&chat.ID, &chatType, &chat.Name, &chat.CreatedBy, &chat.CreatedAt, &chat.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	chat.Type = store.ChatType(chatType)
	return chat, nil
}

// ListChats lists chats the user participates in, most recent activity first.
func (s *SQLiteStore) ListChats(ctx context.Context, userID string) ([]*store.Chat, error) {
	query := `
		SELECT c.id, c.type, c.name, COALESCE(c.created_by, ''), c.created_at, c.updated_at
		FROM chats c
		INNER JOIN chat_participants cp ON c.id = cp.chat_id
		WHERE cp.user_id = ?
		ORDER BY c.updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]*store.Chat, 0)
	for rows.Next() {
		chat := &store.Chat{}
		var chatType string
		if err := rows.Scan(&chat.ID, &chatType, &chat.Name, &chat.CreatedBy, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chat.Type = store.ChatType(chatType)
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// AddParticipant adds a user to a chat. Idempotent.
func (s *SQLiteStore) AddParticipant(ctx context.Context, chatID, userID string) error {
	query := `
		INSERT OR IGNORE INTO chat_participants (chat_id, user_id) VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, chatID, userID); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// ParticipantsOf returns the user IDs participating in a chat.
func (s *SQLiteStore) ParticipantsOf(ctx context.Context, chatID string) ([]string, error) {
	query := `
		SELECT user_id FROM chat_participants WHERE chat_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("participants of chat: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// ChatsOf returns the chat IDs a user participates in.
func (s *SQLiteStore) ChatsOf(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT chat_id FROM chat_participants WHERE user_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("chats of user: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// ==== MessageStore implementation ====

// InsertMessage durably stores a message and returns it with the assigned
// sequence number. The chat's updated_at is bumped in the same transaction.
func (s *SQLiteStore) InsertMessage(ctx context.Context, chatID, senderID, content string, msgType store.MessageType, replyTo *string) (*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := utils.NewID()
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, type, reply_to, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, chatID, senderID, content, string(msgType), replyTo, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get message seq: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = ? WHERE id = ?`, now, chatID,
	); err != nil {
		return nil, fmt.Errorf("touch chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &store.Message{
		Seq:       seq,
		ID:        id,
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Type:      msgType,
		ReplyTo:   replyTo,
		CreatedAt: now,
	}, nil
}

// IsMessageInChat reports whether the message exists and belongs to the chat.
func (s *SQLiteStore) IsMessageInChat(ctx context.Context, messageID, chatID string) (bool, error) {
	query := `
		SELECT 1 FROM messages WHERE id = ? AND chat_id = ?
	`
	var one int
	err := s.db.QueryRowContext(ctx, query, messageID, chatID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check message in chat: %w", err)
	}
	return true, nil
}

// ListMessages retrieves messages from a chat in ascending sequence order.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID string, limit int, beforeSeq *int64) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT seq, id, chat_id, sender_id, content, type, reply_to, edited, created_at
		FROM messages
		WHERE chat_id = ?
	`
	args := []any{chatID}
	if beforeSeq != nil {
		query += ` AND seq < ?`
		args = append(args, *beforeSeq)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		msg := &store.Message{}
		var msgType string
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msgType, &msg.ReplyTo, &msg.Edited, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Type = store.MessageType(msgType)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns newest-first for the LIMIT; callers expect ascending order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ==== FriendStore implementation ====

// CreateFriendRequest creates a pending friend request. An earlier request
// between the same pair is replaced, matching upsert semantics.
func (s *SQLiteStore) CreateFriendRequest(ctx context.Context, fromUserID, toUserID string) (*store.FriendRequest, error) {
	id := utils.NewID()
	query := `
		INSERT OR REPLACE INTO friend_requests (id, from_user_id, to_user_id, status)
		VALUES (?, ?, ?, 'pending')
	`
	if _, err := s.db.ExecContext(ctx, query, id, fromUserID, toUserID); err != nil {
		return nil, fmt.Errorf("insert friend request: %w", err)
	}
	return s.GetFriendRequest(ctx, id)
}

// GetFriendRequest retrieves a friend request by ID.
func (s *SQLiteStore) GetFriendRequest(ctx context.Context, id string) (*store.FriendRequest, error) {
	query := `
		SELECT id, from_user_id, to_user_id, status, created_at
		FROM friend_requests
		WHERE id = ?
	`
	req := &store.FriendRequest{}
	var status string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&req.ID, &req.FromUserID, &req.ToUserID, &status, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get friend request: %w", err)
	}
	req.Status = store.FriendRequestStatus(status)
	return req, nil
}

// ListPendingRequests lists pending requests addressed to the user.
func (s *SQLiteStore) ListPendingRequests(ctx context.Context, toUserID string) ([]*store.FriendRequest, error) {
	query := `
		SELECT id, from_user_id, to_user_id, status, created_at
		FROM friend_requests
		WHERE to_user_id = ? AND status = 'pending'
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, toUserID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*store.FriendRequest, 0)
	for rows.Next() {
		req := &store.FriendRequest{}
		var status string
		if err := rows.Scan(&req.ID, &req.FromUserID, &req.ToUserID, &status, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		req.Status = store.FriendRequestStatus(status)
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// UpdateFriendRequestStatus resolves a request.
func (s *SQLiteStore) UpdateFriendRequestStatus(ctx context.Context, id string, status store.FriendRequestStatus) error {
	query := `
		UPDATE friend_requests SET status = ? WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("update friend request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateFriendship records an accepted friendship between two users.
func (s *SQLiteStore) CreateFriendship(ctx context.Context, user1ID, user2ID string) error {
	query := `
		INSERT OR IGNORE INTO friendships (id, user1_id, user2_id) VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, utils.NewID(), user1ID, user2ID); err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}
	return nil
}

// AreFriends reports whether a friendship exists in either direction.
func (s *SQLiteStore) AreFriends(ctx context.Context, user1ID, user2ID string) (bool, error) {
	query := `
		SELECT 1 FROM friendships
		WHERE (user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?)
	`
	var one int
	err := s.db.QueryRowContext(ctx, query, user1ID, user2ID, user2ID, user1ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return true, nil
}

// ListFriends lists the users the given user is friends with.
func (s *SQLiteStore) ListFriends(ctx context.Context, userID string) ([]*store.User, error) {
	query := `
		SELECT u.id, u.username, u.email, u.password_hash, u.avatar, u.status, u.last_seen, u.created_at
		FROM users u
		INNER JOIN friendships f ON (
			(f.user1_id = ? AND f.user2_id = u.id) OR
			(f.user2_id = ? AND f.user1_id = u.id)
		)
		WHERE u.id != ?
		ORDER BY u.username
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	return s.collectUsers(rows)
}

// ==== helpers ====

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	user := &store.User{}
	var status string
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Avatar, &status, &user.LastSeen, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Status = store.UserStatus(status)
	return user, nil
}

func (s *SQLiteStore) collectUsers(rows *sql.Rows) ([]*store.User, error) {
	users := make([]*store.User, 0)
	for rows.Next() {
		user := &store.User{}
		var status string
		if err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.Avatar, &status, &user.LastSeen, &user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		user.Status = store.UserStatus(status)
		users = append(users, user)
	}
	return users, rows.Err()
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

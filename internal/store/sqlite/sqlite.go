package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ndudnik/pairchat-server/internal/store"
)

// Schema is applied on open. Kept additive; column changes need a new table.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_online     BOOLEAN NOT NULL DEFAULT 0,
	last_seen     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversations (
	id              TEXT PRIMARY KEY,
	pair_key        TEXT NOT NULL UNIQUE,
	user_a_id       INTEGER NOT NULL,
	user_b_id       INTEGER NOT NULL,
	last_message_id TEXT,
	last_message_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_a_id) REFERENCES users(id),
	FOREIGN KEY (user_b_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	sender_id       INTEGER NOT NULL,
	receiver_id     INTEGER NOT NULL,
	content         TEXT NOT NULL,
	is_delivered    BOOLEAN NOT NULL DEFAULT 0,
	is_read         BOOLEAN NOT NULL DEFAULT 0,
	read_at         DATETIME,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (conversation_id) REFERENCES conversations(id),
	FOREIGN KEY (sender_id) REFERENCES users(id),
	FOREIGN KEY (receiver_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_undelivered ON messages(receiver_id, is_delivered);
CREATE INDEX IF NOT EXISTS idx_conversations_user_a ON conversations(user_a_id);
CREATE INDEX IF NOT EXISTS idx_conversations_user_b ON conversations(user_b_id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_online, last_seen, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_online, last_seen, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// ListUsers lists all users except excludeID, ordered by username.
func (s *SQLiteStore) ListUsers(ctx context.Context, excludeID int64) ([]*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_online, last_seen, created_at
		FROM users
		WHERE id != ?
		ORDER BY username
	`
	rows, err := s.db.QueryContext(ctx, query, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var u store.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsOnline, &u.LastSeen, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// SetPresence updates a user's online flag and last-seen timestamp.
func (s *SQLiteStore) SetPresence(ctx context.Context, userID int64, online bool, lastSeen time.Time) error {
	query := `
		UPDATE users SET is_online = ?, last_seen = ? WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, online, lastSeen.UTC(), userID)
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
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

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsOnline, &u.LastSeen, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// ==== ConversationStore implementation ====

// CreateConversation creates a conversation between two users.
// Returns the existing conversation if the pair key is already taken.
func (s *SQLiteStore) CreateConversation(ctx context.Context, pairKey string, userA, userB int64) (*store.Conversation, error) {
	if existing, err := s.GetConversationByPairKey(ctx, pairKey); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	id := newConversationID()
	query := `
		INSERT INTO conversations (id, pair_key, user_a_id, user_b_id)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, pairKey, userA, userB); err != nil {
		// Lost a race on the unique pair_key; the winner's row is the answer.
		if existing, getErr := s.GetConversationByPairKey(ctx, pairKey); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	return s.GetConversationByID(ctx, id)
}

// GetConversationByID retrieves a conversation by ID.
func (s *SQLiteStore) GetConversationByID(ctx context.Context, id string) (*store.Conversation, error) {
	query := `
		SELECT id, pair_key, user_a_id, user_b_id, last_message_id, last_message_at, created_at
		FROM conversations
		WHERE id = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, id))
}

// GetConversationByPairKey retrieves a conversation by its pair key.
func (s *SQLiteStore) GetConversationByPairKey(ctx context.Context, pairKey string) (*store.Conversation, error) {
	query := `
		SELECT id, pair_key, user_a_id, user_b_id, last_message_id, last_message_at, created_at
		FROM conversations
		WHERE pair_key = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, pairKey))
}

// ListConversations lists a user's conversations, most recently active first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID int64) ([]*store.Conversation, error) {
	query := `
		SELECT id, pair_key, user_a_id, user_b_id, last_message_id, last_message_at, created_at
		FROM conversations
		WHERE user_a_id = ? OR user_b_id = ?
		ORDER BY last_message_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*store.Conversation
	for rows.Next() {
		var c store.Conversation
		var lastMsgID sql.NullString
		if err := rows.Scan(&c.ID, &c.PairKey, &c.UserAID, &c.UserBID, &lastMsgID, &c.LastMessageAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if lastMsgID.Valid {
			c.LastMessageID = &lastMsgID.String
		}
		conversations = append(conversations, &c)
	}
	return conversations, rows.Err()
}

// SetLastMessage updates the conversation's last-message pointer.
func (s *SQLiteStore) SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	query := `
		UPDATE conversations SET last_message_id = ?, last_message_at = ? WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, messageID, at.UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("update last message: %w", err)
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

func (s *SQLiteStore) scanConversation(row *sql.Row) (*store.Conversation, error) {
	var c store.Conversation
	var lastMsgID sql.NullString
	err := row.Scan(&c.ID, &c.PairKey, &c.UserAID, &c.UserBID, &lastMsgID, &c.LastMessageAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	if lastMsgID.Valid {
		c.LastMessageID = &lastMsgID.String
	}
	return &c, nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a new message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, is_delivered, is_read, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var readAt interface{}
	if msg.ReadAt != nil {
		readAt = msg.ReadAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID,
		msg.Content, msg.Delivered, msg.Read, readAt, msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, receiver_id, content, is_delivered, is_read, read_at, created_at
		FROM messages
		WHERE id = ?
	`
	return s.scanMessage(s.db.QueryRowContext(ctx, query, id))
}

// ListMessages retrieves messages from a conversation, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int, before *string) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	// Page backwards from the cursor, then flip to chronological order.
	query := `
		SELECT id, conversation_id, sender_id, receiver_id, content, is_delivered, is_read, read_at, created_at
		FROM messages
		WHERE conversation_id = ?
	`
	args := []interface{}{conversationID}
	if before != nil {
		query += ` AND created_at < (SELECT created_at FROM messages WHERE id = ?)`
		args = append(args, *before)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkDelivered idempotently sets the delivered marker.
func (s *SQLiteStore) MarkDelivered(ctx context.Context, id string) (*store.Message, error) {
	query := `
		UPDATE messages SET is_delivered = 1 WHERE id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return nil, fmt.Errorf("mark delivered: %w", err)
	}
	return s.GetMessage(ctx, id)
}

// MarkRead idempotently sets the read marker. Delivered is set too: a read
// message has necessarily reached the receiver.
func (s *SQLiteStore) MarkRead(ctx context.Context, id string, at time.Time) (*store.Message, error) {
	query := `
		UPDATE messages SET is_read = 1, is_delivered = 1, read_at = ? WHERE id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, at.UTC(), id); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return s.GetMessage(ctx, id)
}

// ListUndelivered returns undelivered messages addressed to receiverID, oldest first.
func (s *SQLiteStore) ListUndelivered(ctx context.Context, receiverID int64) ([]*store.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, receiver_id, content, is_delivered, is_read, read_at, created_at
		FROM messages
		WHERE receiver_id = ? AND is_delivered = 0
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, receiverID)
	if err != nil {
		return nil, fmt.Errorf("query undelivered: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) scanMessage(row *sql.Row) (*store.Message, error) {
	var m store.Message
	var readAt sql.NullTime
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Delivered, &m.Read, &readAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	if readAt.Valid {
		m.ReadAt = &readAt.Time
	}
	return &m, nil
}

func scanMessageRow(rows *sql.Rows) (*store.Message, error) {
	var m store.Message
	var readAt sql.NullTime
	err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Delivered, &m.Read, &readAt, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if readAt.Valid {
		m.ReadAt = &readAt.Time
	}
	return &m, nil
}

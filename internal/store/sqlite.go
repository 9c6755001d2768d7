// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so that lexical ordering of stored timestamps matches chronological ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	inMemory := path == ":memory:"
	if !inMemory {
		// Ensure parent directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them, not just the first.
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !inMemory {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to :memory: is its own database.
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_key TEXT NOT NULL,
			title       TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_session
			ON conversations(session_key);

		CREATE INDEX IF NOT EXISTS idx_conversations_updated
			ON conversations(updated_at);

		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			token_count     INTEGER,
			created_at      TEXT NOT NULL,

			CHECK (role IN ('user', 'assistant')),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies database connectivity
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConversation inserts a new conversation. An empty title becomes DefaultTitle.
func (s *SQLiteStore) CreateConversation(ctx context.Context, sessionKey, title string) (*Conversation, error) {
	if title == "" {
		title = DefaultTitle
	}
	now := s.now()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (session_key, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, sessionKey, title, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading conversation id: %w", err)
	}

	s.logger.Debug("created conversation", "conversation_id", id, "session_key", sessionKey)
	return &Conversation{
		ID:         id,
		SessionKey: sessionKey,
		Title:      title,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// GetConversation retrieves a conversation by ID, including its message count
func (s *SQLiteStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.session_key, c.title, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		WHERE c.id = ?
	`, id)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns conversations ordered by most recently updated.
// An empty sessionKey lists conversations for every session.
func (s *SQLiteStore) ListConversations(ctx context.Context, sessionKey string) ([]*Conversation, error) {
	query := `
		SELECT c.id, c.session_key, c.title, c.created_at, c.updated_at, COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
	`
	var args []any
	if sessionKey != "" {
		query += " WHERE c.session_key = ?"
		args = append(args, sessionKey)
	}
	query += " GROUP BY c.id ORDER BY c.updated_at DESC, c.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	convs := make([]*Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return convs, nil
}

// UpdateTitle sets a conversation's title and bumps its updated_at
func (s *SQLiteStore) UpdateTitle(ctx context.Context, id int64, title string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?",
		title, s.now().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("updating title: %w", err)
	}
	return requireAffected(res)
}

// DeleteConversation removes a conversation; its messages go with it via ON DELETE CASCADE
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	return requireAffected(res)
}

// AppendMessage stores a message and bumps the owning conversation's updated_at
// in the same transaction.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID int64, role Role, content string, tokenCount *int) (*Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE id = ?",
		now.Format(timeLayout), conversationID)
	if err != nil {
		return nil, fmt.Errorf("touching conversation: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, role, content, token_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, conversationID, string(role), content, tokenCount, now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading message id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debug("appended message",
		"conversation_id", conversationID,
		"message_id", id,
		"role", role,
	)
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		TokenCount:     tokenCount,
		CreatedAt:      now,
	}, nil
}

// ListMessages returns every message of a conversation, oldest first
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID int64) ([]*Message, error) {
	return s.queryMessages(ctx, `
		SELECT id, conversation_id, role, content, token_count, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY id ASC
	`, conversationID)
}

// ListRecentMessages returns the newest limit messages, ordered oldest first
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, conversationID int64, limit int) ([]*Message, error) {
	if limit <= 0 {
		return []*Message{}, nil
	}
	msgs, err := s.queryMessages(ctx, `
		SELECT id, conversation_id, role, content, token_count, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CountMessages returns the number of messages stored for a conversation
func (s *SQLiteStore) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*Message, 0)
	for rows.Next() {
		var (
			m          Message
			role       string
			tokenCount sql.NullInt64
			createdAt  string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &tokenCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = Role(role)
		if tokenCount.Valid {
			n := int(tokenCount.Int64)
			m.TokenCount = &n
		}
		m.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var (
		c                    Conversation
		createdAt, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.SessionKey, &c.Title, &createdAt, &updatedAt, &c.MessageCount); err != nil {
		return nil, err
	}

	var err error
	if c.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &c, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

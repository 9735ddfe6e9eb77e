// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
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
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (type IN ('human', 'ai'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session
			ON messages(session_id);

		CREATE INDEX IF NOT EXISTS idx_messages_session_created
			ON messages(session_id, created_at);

		CREATE INDEX IF NOT EXISTS idx_messages_created
			ON messages(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// InsertMessage persists a single message row
func (s *SQLiteStore) InsertMessage(ctx context.Context, row *MessageRow) error {
	query := `
		INSERT INTO messages (id, session_id, type, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		row.ID,
		row.SessionID,
		string(row.Message.Type),
		row.Message.Content,
		row.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("message inserted",
		"message_id", row.ID,
		"session_id", row.SessionID,
		"type", row.Message.Type,
	)
	return nil
}

// ListBySession returns all rows for a session, ascending by created_at
func (s *SQLiteStore) ListBySession(ctx context.Context, sessionID string) ([]*MessageRow, error) {
	query := `
		SELECT id, session_id, type, content, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
	`

	return s.queryRows(ctx, query, sessionID)
}

// ListAll returns every row in the table, ascending by created_at
func (s *SQLiteStore) ListAll(ctx context.Context) ([]*MessageRow, error) {
	query := `
		SELECT id, session_id, type, content, created_at
		FROM messages
		ORDER BY created_at ASC, id ASC
	`

	return s.queryRows(ctx, query)
}

// DeleteSession removes all rows for a session
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session messages: %w", err)
	}

	affected, _ := result.RowsAffected()
	s.logger.Debug("session deleted",
		"session_id", sessionID,
		"rows", affected,
	)
	return nil
}

// queryRows is a helper that executes a query and scans message rows
func (s *SQLiteStore) queryRows(ctx context.Context, query string, args ...any) ([]*MessageRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var out []*MessageRow
	for rows.Next() {
		row := &MessageRow{}
		var msgType, createdAtStr string

		if err := rows.Scan(
			&row.ID,
			&row.SessionID,
			&msgType,
			&row.Message.Content,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		row.Message.Type = MessageType(msgType)
		row.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return out, nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ABOUTME: Store types and interface for counsel-gateway message persistence
// ABOUTME: Defines MessageRow, Message and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// MessageType identifies who authored a message
type MessageType string

const (
	MessageTypeHuman MessageType = "human"
	MessageTypeAI    MessageType = "ai"
)

// Message is the nested payload of a message row: who said it and what
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

// MessageRow is one row in the messages table. Rows are immutable once
// written; the only mutation is whole-session deletion. Within a session,
// rows are totally ordered by created_at.
type MessageRow struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Message   Message   `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the interface for message persistence
type Store interface {
	// InsertMessage persists a single message row
	InsertMessage(ctx context.Context, row *MessageRow) error

	// ListBySession returns all rows for a session, ascending by created_at
	ListBySession(ctx context.Context, sessionID string) ([]*MessageRow, error)

	// ListAll returns every row in the table, ascending by created_at.
	// Used to derive the conversation list.
	ListAll(ctx context.Context) ([]*MessageRow, error)

	// DeleteSession removes all rows for a session
	DeleteSession(ctx context.Context, sessionID string) error

	// Close releases any resources held by the store
	Close() error
}

// ABOUTME: Conversation list manager: derives one titled entry per session
// ABOUTME: Full reload on every refresh; no incremental diffing

package chat

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/counselhq/counsel-gateway/internal/store"
)

const (
	// titleMaxLen is the character cap before a title gets an ellipsis
	titleMaxLen = 50

	// triggerTimeout bounds the reload spawned by TriggerRefresh
	triggerTimeout = 5 * time.Second
)

// Conversation is a derived, display-oriented summary of a session.
// It is recomputed on every refresh, never stored.
type Conversation struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// List derives the conversation list from the message store: one entry per
// distinct session that has at least one human message, titled from its
// first human message.
type List struct {
	mu            sync.Mutex
	store         ConversationStore
	logger        *slog.Logger
	conversations []Conversation
	refreshes     atomic.Int64
}

// NewList creates a conversation list over the given store.
// Pass nil logger for default.
func NewList(st ConversationStore, logger *slog.Logger) *List {
	if logger == nil {
		logger = slog.Default()
	}
	return &List{
		store:  st,
		logger: logger.With("component", "conversations"),
	}
}

// Refresh reloads the list from the store: a full ascending scan, grouped
// by session, keeping the first human message per session as the title
// source. The result is reversed so the most recently started conversation
// sorts first — insertion-order reversal, not a sort by latest activity, so
// a session revived by later messages does not move.
// On read failure the current list is left unchanged.
func (l *List) Refresh(ctx context.Context) error {
	l.refreshes.Add(1)

	rows, err := l.store.ListAll(ctx)
	if err != nil {
		l.logger.Error("failed to load conversations", "error", err)
		return err
	}

	seen := make(map[string]bool)
	var out []Conversation
	for _, row := range rows {
		if seen[row.SessionID] || row.Message.Type != store.MessageTypeHuman {
			continue
		}
		seen[row.SessionID] = true
		out = append(out, Conversation{
			SessionID: row.SessionID,
			Title:     deriveTitle(row.Message.Content),
			CreatedAt: row.CreatedAt,
		})
	}
	slices.Reverse(out)

	l.mu.Lock()
	l.conversations = out
	l.mu.Unlock()

	l.logger.Debug("conversations refreshed", "count", len(out))
	return nil
}

// TriggerRefresh signals the list to reload without blocking the caller.
// Failures are logged by Refresh and otherwise dropped.
func (l *List) TriggerRefresh() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		_ = l.Refresh(ctx)
	}()
}

// Delete removes a conversation: the entry is dropped from the in-memory
// list first (a latency hide), the store deletion runs, and a full Refresh
// reconciles against ground truth either way.
func (l *List) Delete(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	kept := l.conversations[:0:0]
	for _, conv := range l.conversations {
		if conv.SessionID != sessionID {
			kept = append(kept, conv)
		}
	}
	l.conversations = kept
	l.mu.Unlock()

	err := l.store.DeleteSession(ctx, sessionID)
	if err != nil {
		l.logger.Error("failed to delete conversation",
			"error", err,
			"session_id", sessionID,
		)
	}

	if rerr := l.Refresh(ctx); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// Conversations returns a copy of the current derived list
func (l *List) Conversations() []Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Conversation, len(l.conversations))
	copy(out, l.conversations)
	return out
}

// RefreshCount returns the monotonically increasing refresh counter
func (l *List) RefreshCount() int64 {
	return l.refreshes.Load()
}

// deriveTitle truncates the first human message to the display cap,
// appending an ellipsis when content was cut
func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > titleMaxLen {
		return string(runes[:titleMaxLen]) + "..."
	}
	return content
}

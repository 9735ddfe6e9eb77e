// ABOUTME: Chat session controller: active timeline, loading flag, live subscription
// ABOUTME: Orchestrates the store feed and the agent gateway for one conversation at a time

package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/counselhq/counsel-gateway/internal/agent"
	"github.com/counselhq/counsel-gateway/internal/store"
)

// Send validation errors
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

// MaxMessageLen is the submission-time cap on human input, in characters
const MaxMessageLen = 1000

// defaultUserID is the fixed user identifier carried on agent queries
const defaultUserID = "NA"

// ConversationStore defines what the chat layer needs from storage
type ConversationStore interface {
	ListBySession(ctx context.Context, sessionID string) ([]*store.MessageRow, error)
	ListAll(ctx context.Context) ([]*store.MessageRow, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Subscribe(ctx context.Context) *store.Subscription
}

// AgentSubmitter defines what the chat layer needs from the agent gateway
type AgentSubmitter interface {
	Submit(ctx context.Context, q *agent.Query) error
}

// Message is one entry in the active timeline
type Message struct {
	ID        string            `json:"id"`
	Type      store.MessageType `json:"type"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"created_at"`
}

func fromRow(row *store.MessageRow) Message {
	return Message{
		ID:        row.ID,
		Type:      row.Message.Type,
		Content:   row.Message.Content,
		CreatedAt: row.CreatedAt,
	}
}

// Controller owns one active session: its timeline, its loading flag, and
// exactly one live subscription on the store's insert feed. The human's own
// message is not echoed locally — it appears when the store insert comes
// back through the feed, which is also what ends the loading state when the
// ai reply lands.
type Controller struct {
	mu     sync.Mutex
	store  ConversationStore
	agent  AgentSubmitter
	list   *List
	logger *slog.Logger

	sessionID string
	timeline  []Message
	loading   bool
	closed    bool

	// sub is the single live subscription; subGen invalidates events still
	// in flight from a superseded subscription after a session switch.
	sub    *store.Subscription
	subGen int

	// readSeq tags in-flight history reads so a slow read finishing after
	// a later switch is discarded instead of overwriting the new timeline.
	readSeq int

	pumpWG sync.WaitGroup
}

// NewController creates a controller with a fresh session identifier and an
// open feed subscription. list may be nil if no conversation list should be
// signalled. Call Close to release the subscription.
func NewController(st ConversationStore, ag AgentSubmitter, list *List, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		store:     st,
		agent:     ag,
		list:      list,
		logger:    logger.With("component", "chat"),
		sessionID: uuid.New().String(),
	}

	c.mu.Lock()
	c.resubscribeLocked()
	c.mu.Unlock()

	return c
}

// SessionID returns the active session identifier
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// IsLoading reports whether a reply is outstanding
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Messages returns a copy of the active timeline in arrival order
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.timeline))
	copy(out, c.timeline)
	return out
}

// Snapshot returns a consistent view of session, timeline, and loading flag
func (c *Controller) Snapshot() (sessionID string, messages []Message, loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	messages = make([]Message, len(c.timeline))
	copy(messages, c.timeline)
	return c.sessionID, messages, c.loading
}

// Send submits a query for the active session. A nil return means the
// query was accepted; the echo of the human message and the eventual ai
// reply both arrive through the insert feed. On transport failure the
// loading flag is reset and the error is logged — there is no retry.
//
// Send does not reject a second call while a reply is outstanding; rapid
// repeated submission produces independent in-flight queries.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if len([]rune(text)) > MaxMessageLen {
		return ErrMessageTooLong
	}

	c.mu.Lock()
	sessionID := c.sessionID
	c.loading = true
	c.mu.Unlock()

	q := &agent.Query{
		Query:     text,
		UserID:    defaultUserID,
		RequestID: uuid.New().String(),
		SessionID: sessionID,
	}
	if err := c.agent.Submit(ctx, q); err != nil {
		c.mu.Lock()
		if c.sessionID == sessionID {
			c.loading = false
		}
		c.mu.Unlock()
		c.logger.Error("failed to submit query",
			"error", err,
			"session_id", sessionID,
			"request_id", q.RequestID,
		)
		return err
	}

	c.logger.Debug("query submitted",
		"session_id", sessionID,
		"request_id", q.RequestID,
	)
	return nil
}

// NewChat discards the active timeline, generates a fresh session
// identifier, clears the loading flag, and re-establishes the feed
// subscription. Any in-flight history read is invalidated.
func (c *Controller) NewChat() {
	c.mu.Lock()
	c.timeline = nil
	c.sessionID = uuid.New().String()
	c.loading = false
	c.readSeq++
	c.resubscribeLocked()
	c.mu.Unlock()

	if c.list != nil {
		c.list.TriggerRefresh()
	}
}

// SelectConversation switches the active session to sessionID and replaces
// the timeline with that session's stored history, ascending by creation
// time. The read is tagged: if another switch happens before it completes,
// its result is discarded. On read failure the timeline stays empty.
func (c *Controller) SelectConversation(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	c.timeline = nil
	c.sessionID = sessionID
	c.loading = false
	c.readSeq++
	seq := c.readSeq
	c.resubscribeLocked()
	c.mu.Unlock()

	rows, err := c.store.ListBySession(ctx, sessionID)
	if err != nil {
		c.logger.Error("failed to load conversation",
			"error", err,
			"session_id", sessionID,
		)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readSeq != seq {
		// A newer switch won; this history belongs to a stale session.
		c.logger.Debug("discarding stale history read", "session_id", sessionID)
		return nil
	}
	loaded := make([]Message, 0, len(rows))
	for _, row := range rows {
		loaded = append(loaded, fromRow(row))
	}
	c.timeline = loaded
	return nil
}

// DeleteConversation removes all messages for sessionID. If the deleted
// session is the active one, the controller resets as if NewChat had been
// called — the active session must never point at deleted data.
func (c *Controller) DeleteConversation(ctx context.Context, sessionID string) error {
	var err error
	if c.list != nil {
		err = c.list.Delete(ctx, sessionID)
	} else {
		err = c.store.DeleteSession(ctx, sessionID)
	}
	if err != nil {
		c.logger.Error("failed to delete conversation",
			"error", err,
			"session_id", sessionID,
		)
		return err
	}

	c.mu.Lock()
	active := c.sessionID == sessionID
	c.mu.Unlock()

	if active {
		c.NewChat()
	}
	return nil
}

// Close releases the live subscription and stops the event pump.
// The controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.subGen++
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
	c.mu.Unlock()

	c.pumpWG.Wait()
}

// resubscribeLocked tears down the current subscription and opens a new
// one. Callers must hold c.mu. Bumping subGen before subscribing means any
// event still queued on the old channel is dropped by the pump's generation
// check — the session filter in handleInsert is the safety net, the
// generation is teardown-in-depth.
func (c *Controller) resubscribeLocked() {
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
	c.subGen++

	sub := c.store.Subscribe(context.Background())
	c.sub = sub

	gen := c.subGen
	c.pumpWG.Add(1)
	go c.pump(gen, sub)
}

// pump delivers feed events into the controller until the subscription's
// channel closes
func (c *Controller) pump(gen int, sub *store.Subscription) {
	defer c.pumpWG.Done()
	for row := range sub.Events() {
		c.handleInsert(gen, row)
	}
}

// handleInsert appends a feed row to the timeline in arrival order.
// Rows for other sessions and rows from superseded subscriptions are
// ignored. An ai row clears the loading flag; a human row signals the
// conversation list to refresh.
func (c *Controller) handleInsert(gen int, row *store.MessageRow) {
	c.mu.Lock()
	if c.closed || gen != c.subGen || row.SessionID != c.sessionID {
		c.mu.Unlock()
		return
	}

	msg := fromRow(row)
	c.timeline = append(c.timeline, msg)
	if msg.Type == store.MessageTypeAI {
		c.loading = false
	}
	refresh := msg.Type == store.MessageTypeHuman
	c.mu.Unlock()

	if refresh && c.list != nil {
		c.list.TriggerRefresh()
	}
}

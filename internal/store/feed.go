// ABOUTME: In-memory fan-out feed of message insert notifications
// ABOUTME: Publishes inserted MessageRows to all live subscribers

package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// Feed provides in-memory pub/sub for message insert notifications.
// The feed is unfiltered: every insert reaches every subscriber, and
// consumers filter by session_id at event-handling time.
type Feed struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription // subID -> sub
	logger      *slog.Logger
}

// NewFeed creates a feed. Pass nil logger for default.
func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		subscribers: make(map[string]*Subscription),
		logger:      logger.With("component", "feed"),
	}
}

// Subscription is an explicitly owned handle on the insert feed.
// The owner must call Close when done; the subscription is also
// released automatically when its context is cancelled.
type Subscription struct {
	id   string
	feed *Feed
	ch   chan *MessageRow
	done chan struct{}
}

// Events returns the channel insert notifications arrive on.
// The channel is closed when the subscription is released.
func (s *Subscription) Events() <-chan *MessageRow {
	return s.ch
}

// Close releases the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.feed.unsubscribe(s.id)
}

// Subscribe registers a subscriber for insert notifications. The returned
// handle owns the registration; close it before opening a replacement so
// two subscriptions never coexist for one consumer.
func (f *Feed) Subscribe(ctx context.Context) *Subscription {
	sub := &Subscription{
		id:   uuid.New().String(),
		feed: f,
		ch:   make(chan *MessageRow, subscriberBufferSize),
		done: make(chan struct{}),
	}

	f.mu.Lock()
	f.subscribers[sub.id] = sub
	f.mu.Unlock()

	f.logger.Debug("subscriber added", "sub_id", sub.id)

	// Auto-cleanup on context cancellation. A non-cancellable context
	// (Done() == nil) needs no watcher; either way the watcher exits
	// when the subscription is released, it must not outlive it.
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}

	return sub
}

// Publish sends an insert notification to all subscribers.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (f *Feed) Publish(row *MessageRow) {
	f.mu.RLock()
	// Copy subscriber channels under read lock to avoid holding it during sends
	targets := make([]chan *MessageRow, 0, len(f.subscribers))
	for _, sub := range f.subscribers {
		targets = append(targets, sub.ch)
	}
	f.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- row:
			// Sent
		default:
			// Subscriber channel full — drop event for this subscriber
			f.logger.Debug("dropped insert for slow subscriber",
				"message_id", row.ID,
				"session_id", row.SessionID,
			)
		}
	}
}

// unsubscribe removes a subscription, closes its channel, and releases
// its context watcher
func (f *Feed) unsubscribe(subID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub, ok := f.subscribers[subID]
	if !ok {
		return
	}

	delete(f.subscribers, subID)
	close(sub.ch)
	close(sub.done)

	f.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the feed and closes all subscriber channels
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, sub := range f.subscribers {
		close(sub.ch)
		close(sub.done)
		delete(f.subscribers, id)
	}

	f.logger.Debug("feed closed")
}

// ABOUTME: LiveStore composes persistence with insert notification
// ABOUTME: Every successful insert is published to feed subscribers

package store

import (
	"context"
	"log/slog"
)

// LiveStore wraps a Store so that every successful insert is also
// published on an in-memory feed. This is the row store with change
// notification that the chat layer depends on: reads and deletes pass
// through untouched, inserts fan out to live subscribers.
type LiveStore struct {
	Store
	feed *Feed
}

// NewLiveStore wraps the given store with an insert feed
func NewLiveStore(s Store, logger *slog.Logger) *LiveStore {
	return &LiveStore{
		Store: s,
		feed:  NewFeed(logger),
	}
}

// InsertMessage persists the row, then notifies subscribers.
// Notification happens only after the row is durably stored, so a
// subscriber never sees a row that a subsequent read would miss.
func (l *LiveStore) InsertMessage(ctx context.Context, row *MessageRow) error {
	if err := l.Store.InsertMessage(ctx, row); err != nil {
		return err
	}
	l.feed.Publish(row)
	return nil
}

// Subscribe opens a subscription on the insert feed
func (l *LiveStore) Subscribe(ctx context.Context) *Subscription {
	return l.feed.Subscribe(ctx)
}

// Close releases the feed, then the underlying store
func (l *LiveStore) Close() error {
	l.feed.Close()
	return l.Store.Close()
}

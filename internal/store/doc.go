// ABOUTME: Package store provides SQLite persistence for chat messages
// ABOUTME: plus an in-memory insert feed for live subscriptions

// Package store persists chat message rows and notifies live subscribers
// of inserts.
//
// A row carries an opaque id, a session id grouping key, a nested message
// payload (human or ai, plus content), and a created_at ordering key. Rows
// are never mutated; sessions are deleted wholesale.
//
// LiveStore is the composition the rest of the system uses: SQLite for
// durability, Feed for the insert-notification stream that mirrors a
// managed store's row-level change feed.
package store

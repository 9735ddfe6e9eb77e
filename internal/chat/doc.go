// ABOUTME: Package chat holds the conversation-synchronization core
// ABOUTME: Controller owns the active timeline; List derives the sidebar

// Package chat reconciles locally initiated sends, a per-session
// identifier, the store's live insert feed, and a derived conversation
// list.
//
// The flow is deliberately store-centric: Send only asks the agent to
// answer; both the echo of the human message and the eventual ai reply
// arrive as store inserts on the feed. Arrival order on the feed is the
// ordering source of truth for the active timeline.
package chat

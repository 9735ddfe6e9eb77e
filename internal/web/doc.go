// ABOUTME: Package web serves the chat UI, its JSON API, and agent ingest
// ABOUTME: All state lives in the store and per-user controllers

// Package web is the HTTP surface of the gateway: the login and chat
// pages, the JSON API the chat page is built on, an SSE stream of
// timeline updates, and the token-gated endpoint agents post messages
// through.
package web

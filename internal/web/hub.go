// ABOUTME: Per-user chat state registry for the web UI
// ABOUTME: One controller and conversation list per signed-in user, with idle cleanup

package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/counselhq/counsel-gateway/internal/chat"
)

const (
	cleanupInterval = time.Minute
	staleThreshold  = 30 * time.Minute
)

// userState is the live chat state for one signed-in user
type userState struct {
	controller *chat.Controller
	list       *chat.List

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *userState) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *userState) idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

// hub owns the per-user chat state. Controllers are created on first
// use and torn down after half an hour of inactivity; a returning user
// gets a fresh controller with a fresh session, their conversations
// are all still in the store.
type hub struct {
	mu     sync.Mutex
	users  map[string]*userState // keyed by email
	store  chat.ConversationStore
	agent  chat.AgentSubmitter
	logger *slog.Logger
	cancel context.CancelFunc
}

func newHub(st chat.ConversationStore, ag chat.AgentSubmitter, logger *slog.Logger) *hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &hub{
		users:  make(map[string]*userState),
		store:  st,
		agent:  ag,
		logger: logger.With("component", "hub"),
		cancel: cancel,
	}
	go h.cleanupLoop(ctx)
	return h
}

// state returns the chat state for email, creating it on first use
func (h *hub) state(email string) *userState {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.users[email]; ok {
		s.touch()
		return s
	}

	list := chat.NewList(h.store, h.logger)
	s := &userState{
		controller: chat.NewController(h.store, h.agent, list, h.logger),
		list:       list,
		lastUsed:   time.Now(),
	}
	h.users[email] = s
	h.logger.Debug("chat state created", "user", email)
	return s
}

// cleanupLoop periodically tears down idle chat state
func (h *hub) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanupStale()
		}
	}
}

func (h *hub) cleanupStale() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for email, s := range h.users {
		if s.idle(now) > staleThreshold {
			s.controller.Close()
			delete(h.users, email)
			h.logger.Debug("chat state reaped", "user", email)
		}
	}
}

// Close tears down all chat state and stops the cleanup goroutine
func (h *hub) Close() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for email, s := range h.users {
		s.controller.Close()
		delete(h.users, email)
	}
}

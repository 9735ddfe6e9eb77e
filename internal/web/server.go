// ABOUTME: HTTP server wiring for the chat UI, JSON API, and agent ingest
// ABOUTME: Routes split into public, user-session, and agent-token surfaces

package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/counselhq/counsel-gateway/internal/auth"
	"github.com/counselhq/counsel-gateway/internal/chat"
	"github.com/counselhq/counsel-gateway/internal/store"
)

// MessageStore is what the web layer needs from storage: everything the
// chat layer reads, plus inserts for the agent ingest endpoint.
type MessageStore interface {
	chat.ConversationStore
	InsertMessage(ctx context.Context, row *store.MessageRow) error
}

// Options configures the web server
type Options struct {
	Addr        string
	Store       MessageStore
	Agent       chat.AgentSubmitter
	Verifier    *auth.JWTVerifier
	Registry    *auth.Registry
	SessionTTL  time.Duration
	IngestToken string
	Logger      *slog.Logger
}

// Server serves the chat page, the JSON API behind it, and the ingest
// endpoint agents post answers to
type Server struct {
	httpServer  *http.Server
	store       MessageStore
	hub         *hub
	verifier    *auth.JWTVerifier
	registry    *auth.Registry
	sessionTTL  time.Duration
	ingestToken string
	logger      *slog.Logger
	templates   *template.Template
}

// NewServer builds the server and its routes
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		store:       opts.Store,
		hub:         newHub(opts.Store, opts.Agent, logger),
		verifier:    opts.Verifier,
		registry:    opts.Registry,
		sessionTTL:  opts.SessionTTL,
		ingestToken: opts.IngestToken,
		logger:      logger,
		templates:   templates,
	}

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// routes assembles the three surfaces: public login, the authenticated
// chat UI and API, and the token-gated agent ingest.
func (s *Server) routes() http.Handler {
	requireUser := auth.Middleware(s.verifier, s.registry)
	requireAgent := auth.RequireAgentToken(s.ingestToken)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /{$}", s.handleChatPage)
	protected.HandleFunc("GET /api/chat/messages", s.handleMessages)
	protected.HandleFunc("POST /api/chat/send", s.handleSend)
	protected.HandleFunc("POST /api/chat/new", s.handleNewChat)
	protected.HandleFunc("POST /api/chat/select", s.handleSelect)
	protected.HandleFunc("GET /api/chat/stream", s.handleStream)
	protected.HandleFunc("GET /api/conversations", s.handleListConversations)
	protected.HandleFunc("DELETE /api/conversations/{id}", s.handleDeleteConversation)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.Handle("POST /api/messages", requireAgent(http.HandlerFunc(s.handleIngest)))
	mux.Handle("/", requireUser(protected))
	return mux
}

// Start begins serving and blocks until the server stops
func (s *Server) Start() error {
	s.logger.Info("web server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and tears down per-user chat state
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.Close()
	return err
}

// Handler exposes the assembled routes, for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

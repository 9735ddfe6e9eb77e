// ABOUTME: HTTP handlers for login, the chat API, and agent ingest
// ABOUTME: Thin JSON layer over the per-user chat controllers

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/counselhq/counsel-gateway/internal/auth"
	"github.com/counselhq/counsel-gateway/internal/chat"
	"github.com/counselhq/counsel-gateway/internal/store"
)

// loginRequest is the JSON request body for POST /api/login
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the JSON response for POST /api/login.
// The token is also set as the session cookie; API clients use the
// body, the browser uses the cookie.
type loginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// sendRequest is the JSON request body for POST /api/chat/send
type sendRequest struct {
	Message string `json:"message"`
}

// selectRequest is the JSON request body for POST /api/chat/select
type selectRequest struct {
	SessionID string `json:"session_id"`
}

// ingestRequest is the JSON request body for POST /api/messages.
// Agents post both the echo of the user's question and their answer
// through this shape.
type ingestRequest struct {
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
}

// messageJSON is one timeline entry in API responses and stream events
type messageJSON struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	HTML      string    `json:"html,omitempty"` // rendered markdown, ai messages only
	CreatedAt time.Time `json:"created_at"`
}

// timelineResponse is the JSON response for GET /api/chat/messages
type timelineResponse struct {
	SessionID string        `json:"session_id"`
	Loading   bool          `json:"loading"`
	Messages  []messageJSON `json:"messages"`
}

// conversationsResponse is the JSON response for GET /api/conversations
type conversationsResponse struct {
	Conversations []chat.Conversation `json:"conversations"`
}

func toMessageJSON(m chat.Message) messageJSON {
	out := messageJSON{
		ID:        m.ID,
		Type:      string(m.Type),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Type == store.MessageTypeAI {
		out.HTML = string(renderMarkdown(m.Content))
	}
	return out
}

func toTimelineResponse(sessionID string, messages []chat.Message, loading bool) timelineResponse {
	out := timelineResponse{
		SessionID: sessionID,
		Loading:   loading,
		Messages:  make([]messageJSON, 0, len(messages)),
	}
	for _, m := range messages {
		out.Messages = append(out.Messages, toMessageJSON(m))
	}
	return out
}

// userState resolves the chat state for the signed-in user on r
func (s *Server) userState(r *http.Request) *userState {
	id := auth.MustFromContext(r.Context())
	return s.hub.state(id.Email)
}

// handleLoginPage renders the login form
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.ExecuteTemplate(w, "login.html", nil); err != nil {
		s.logger.Error("failed to render login page", "error", err)
	}
}

// handleChatPage renders the chat UI shell; the page loads its data
// through the API
func (s *Server) handleChatPage(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	data := struct {
		Name  string
		Email string
	}{Name: id.Name, Email: id.Email}
	if err := s.templates.ExecuteTemplate(w, "chat.html", data); err != nil {
		s.logger.Error("failed to render chat page", "error", err)
	}
}

// handleLogin handles POST /api/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.registry.Authenticate(req.Email, req.Password)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.verifier.Generate(user.Email, s.sessionTTL)
	if err != nil {
		s.logger.Error("failed to issue session token", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	auth.SetSessionCookie(w, token, int(s.sessionTTL.Seconds()))
	s.logger.Info("user signed in", "user", user.Email)
	s.writeJSON(w, http.StatusOK, loginResponse{Token: token, Email: user.Email, Name: user.Name})
}

// handleLogout handles POST /api/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleMessages handles GET /api/chat/messages
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	st := s.userState(r)
	sessionID, messages, loading := st.controller.Snapshot()
	s.writeJSON(w, http.StatusOK, toTimelineResponse(sessionID, messages, loading))
}

// handleSend handles POST /api/chat/send. A 202 means the query was
// accepted; the echo and the answer arrive over the stream.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st := s.userState(r)
	if err := st.controller.Send(r.Context(), req.Message); err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrMessageTooLong):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusBadGateway, "agent unavailable")
		}
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"session_id": st.controller.SessionID()})
}

// handleNewChat handles POST /api/chat/new
func (s *Server) handleNewChat(w http.ResponseWriter, r *http.Request) {
	st := s.userState(r)
	st.controller.NewChat()
	s.writeJSON(w, http.StatusOK, map[string]string{"session_id": st.controller.SessionID()})
}

// handleSelect handles POST /api/chat/select: switch the active session
// and return its stored history
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	st := s.userState(r)
	if err := st.controller.SelectConversation(r.Context(), req.SessionID); err != nil {
		s.writeError(w, http.StatusBadGateway, "failed to load conversation")
		return
	}

	sessionID, messages, loading := st.controller.Snapshot()
	s.writeJSON(w, http.StatusOK, toTimelineResponse(sessionID, messages, loading))
}

// handleListConversations handles GET /api/conversations. The list is
// reloaded from the store on every call; stale in-memory state never
// reaches the sidebar.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	st := s.userState(r)
	if err := st.list.Refresh(r.Context()); err != nil {
		s.writeError(w, http.StatusBadGateway, "failed to load conversations")
		return
	}

	convs := st.list.Conversations()
	if convs == nil {
		convs = []chat.Conversation{}
	}
	s.writeJSON(w, http.StatusOK, conversationsResponse{Conversations: convs})
}

// handleDeleteConversation handles DELETE /api/conversations/{id}
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	st := s.userState(r)
	if err := st.controller.DeleteConversation(r.Context(), sessionID); err != nil {
		s.writeError(w, http.StatusBadGateway, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleIngest handles POST /api/messages: the token-gated endpoint
// agents deliver messages through. The insert lands in the store first;
// connected clients see it via the feed.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.Content == "" {
		s.writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	msgType := store.MessageType(req.Type)
	if msgType != store.MessageTypeHuman && msgType != store.MessageTypeAI {
		s.writeError(w, http.StatusBadRequest, "type must be human or ai")
		return
	}

	row := &store.MessageRow{
		ID:        uuid.New().String(),
		SessionID: req.SessionID,
		Message:   store.Message{Type: msgType, Content: req.Content},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertMessage(r.Context(), row); err != nil {
		s.logger.Error("failed to ingest message",
			"error", err,
			"session_id", req.SessionID,
		)
		s.writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	s.logger.Debug("message ingested",
		"message_id", row.ID,
		"session_id", row.SessionID,
		"type", string(msgType),
	)
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": row.ID})
}

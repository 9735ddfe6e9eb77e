// ABOUTME: Tests for the web server routes
// ABOUTME: Covers auth gating, the chat API, agent ingest, and the send flow

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselhq/counsel-gateway/internal/agent"
	"github.com/counselhq/counsel-gateway/internal/auth"
	"github.com/counselhq/counsel-gateway/internal/store"
)

const testIngestToken = "agent-secret"

type testEnv struct {
	handler http.Handler
	cookie  *http.Cookie
	agent   *recordingAgent
	store   *store.LiveStore
}

type recordingAgent struct {
	mu      sync.Mutex
	queries []*agent.Query
}

func (a *recordingAgent) Submit(ctx context.Context, q *agent.Query) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries = append(a.queries, q)
	return nil
}

func (a *recordingAgent) submitted() []*agent.Query {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*agent.Query, len(a.queries))
	copy(out, a.queries)
	return out
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sqlStore, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	live := store.NewLiveStore(sqlStore, nil)
	t.Cleanup(func() { live.Close() })

	hash, err := auth.HashPassword("pw")
	require.NoError(t, err)
	registry := auth.NewRegistry([]auth.User{
		{Email: "ada@example.com", Name: "Ada", PasswordHash: hash},
	})

	ag := &recordingAgent{}
	srv, err := NewServer(Options{
		Addr:        ":0",
		Store:       live,
		Agent:       ag,
		Verifier:    auth.NewJWTVerifier([]byte("test-secret")),
		Registry:    registry,
		SessionTTL:  time.Hour,
		IngestToken: testIngestToken,
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.hub.Close() })

	env := &testEnv{handler: srv.Handler(), agent: ag, store: live}
	env.login(t)
	return env
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/login",
		map[string]string{"email": "ada@example.com", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			e.cookie = c
			return
		}
	}
	t.Fatal("login response did not set the session cookie")
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) ingest(t *testing.T, sessionID, msgType, content string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]string{
		"session_id": sessionID,
		"type":       msgType,
		"content":    content,
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/messages", &buf)
	req.Header.Set("X-Agent-Token", testIngestToken)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func (e *testEnv) timeline(t *testing.T) timelineResponse {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/api/chat/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out timelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.cookie = nil
	rec := env.do(t, http.MethodPost, "/api/login",
		map[string]string{"email": "ada@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnauthenticated_PageRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.cookie = nil
	rec := env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Result().Header.Get("Location"))
}

func TestUnauthenticated_APIGets401(t *testing.T) {
	env := newTestEnv(t)
	env.cookie = nil
	rec := env.do(t, http.MethodGet, "/api/conversations", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatPage_RendersForSignedInUser(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ada")
}

func TestSend_SubmitsQueryToAgent(t *testing.T) {
	env := newTestEnv(t)
	tl := env.timeline(t)

	rec := env.do(t, http.MethodPost, "/api/chat/send",
		map[string]string{"message": "Is a verbal contract binding?"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	qs := env.agent.submitted()
	require.Len(t, qs, 1)
	assert.Equal(t, "Is a verbal contract binding?", qs[0].Query)
	assert.Equal(t, tl.SessionID, qs[0].SessionID)

	assert.True(t, env.timeline(t).Loading)
}

func TestSend_EmptyMessageIs400(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/chat/send", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.agent.submitted())
}

func TestIngest_RequiresAgentToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/messages",
		map[string]string{"session_id": "s", "type": "ai", "content": "hi"})
	// Session cookie is not a substitute for the agent token
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIngest_RejectsUnknownType(t *testing.T) {
	env := newTestEnv(t)
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]string{
		"session_id": "s", "type": "system", "content": "hi",
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/messages", &buf)
	req.Header.Set("X-Agent-Token", testIngestToken)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngest_ReachesTimeline(t *testing.T) {
	env := newTestEnv(t)
	tl := env.timeline(t)

	env.ingest(t, tl.SessionID, "human", "What is a tort?")
	env.ingest(t, tl.SessionID, "ai", "A tort is a civil wrong.")

	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/chat/messages", nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var out timelineResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			return false
		}
		return len(out.Messages) == 2
	}, 2*time.Second, 10*time.Millisecond)

	got := env.timeline(t)
	assert.Equal(t, "human", got.Messages[0].Type)
	assert.Equal(t, "ai", got.Messages[1].Type)
	assert.NotEmpty(t, got.Messages[1].HTML, "ai messages carry rendered markdown")
	assert.Empty(t, got.Messages[0].HTML, "human messages are never rendered")
	assert.False(t, got.Loading, "ai arrival clears loading")
}

func TestConversations_ListsAndDeletes(t *testing.T) {
	env := newTestEnv(t)
	tl := env.timeline(t)
	env.ingest(t, tl.SessionID, "human", "How do I contest a will?")

	var listed conversationsResponse
	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/conversations", nil)
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
			return false
		}
		return len(listed.Conversations) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "How do I contest a will?", listed.Conversations[0].Title)

	rec := env.do(t, http.MethodDelete, "/api/conversations/"+tl.SessionID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/conversations", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed.Conversations)

	// Deleting the active conversation reset the session
	assert.NotEqual(t, tl.SessionID, env.timeline(t).SessionID)
}

func TestSelect_ReturnsStoredHistory(t *testing.T) {
	env := newTestEnv(t)
	first := env.timeline(t)
	env.ingest(t, first.SessionID, "human", "Question one")
	env.ingest(t, first.SessionID, "ai", "Answer one")

	rec := env.do(t, http.MethodPost, "/api/chat/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.timeline(t).Messages)

	rec = env.do(t, http.MethodPost, "/api/chat/select",
		map[string]string{"session_id": first.SessionID})
	require.Equal(t, http.StatusOK, rec.Code)

	var got timelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, first.SessionID, got.SessionID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "Question one", got.Messages[0].Content)
}

func TestLogout_ClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

// ABOUTME: Server-Sent Events stream of timeline updates for the chat page
// ABOUTME: Filters the store feed down to the caller's active session

package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/counselhq/counsel-gateway/internal/chat"
	"github.com/counselhq/counsel-gateway/internal/store"
)

const keepaliveInterval = 30 * time.Second

// handleStream handles GET /api/chat/stream. Each event carries one
// store insert for the caller's active session; the filter is applied
// per event, so a session switch mid-stream takes effect immediately.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	st := s.userState(r)
	sub := s.store.Subscribe(r.Context())
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Tell the client which session it is following
	writeSSE(w, "session", map[string]string{"session_id": st.controller.SessionID()})
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case row, ok := <-sub.Events():
			if !ok {
				return
			}
			if row.SessionID != st.controller.SessionID() {
				continue
			}
			writeSSE(w, "message", toMessageJSON(chatMessageFromRow(row)))
			flusher.Flush()
		}
	}
}

// writeSSE writes one event in the wire format:
// event: <type>\ndata: <json>\n\n
func writeSSE(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

func chatMessageFromRow(row *store.MessageRow) chat.Message {
	return chat.Message{
		ID:        row.ID,
		Type:      row.Message.Type,
		Content:   row.Message.Content,
		CreatedAt: row.CreatedAt,
	}
}

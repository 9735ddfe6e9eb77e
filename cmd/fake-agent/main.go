// ABOUTME: Minimal fake agent for E2E testing — accepts webhook queries, answers with markdown.
// ABOUTME: Usage: fake-agent [-addr :9090] [-gateway http://localhost:8080] [-token SECRET]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"
)

// query is the webhook payload the gateway posts for each user message
type query struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id"`
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`
}

// ingestMessage is the payload posted back to the gateway's ingest endpoint
type ingestMessage struct {
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
}

func main() {
	addr := flag.String("addr", ":9090", "Webhook listen address")
	gateway := flag.String("gateway", "http://localhost:8080", "Gateway base URL")
	token := flag.String("token", os.Getenv("COUNSEL_AGENT_TOKEN"), "Gateway ingest token")
	delay := flag.Duration("delay", time.Second, "Thinking delay before answering")
	flag.Parse()

	if *token == "" {
		log.Fatal("ingest token required: pass -token or set COUNSEL_AGENT_TOKEN")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", func(w http.ResponseWriter, r *http.Request) {
		var q query
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		log.Printf("received query [%s] session=%s: %s", q.RequestID, q.SessionID, q.Query)

		// Accept immediately; delivery happens through the ingest endpoint
		w.WriteHeader(http.StatusAccepted)

		go answer(*gateway, *token, *delay, q)
	})

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("fake-agent listening on %s, posting answers to %s", *addr, *gateway)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// answer echoes the question into the session, thinks for a bit, then
// delivers a canned markdown reply — the same write path a real agent
// service would use.
func answer(gateway, token string, delay time.Duration, q query) {
	if err := ingest(gateway, token, ingestMessage{
		SessionID: q.SessionID,
		Type:      "human",
		Content:   q.Query,
	}); err != nil {
		log.Printf("echo failed [%s]: %v", q.RequestID, err)
		return
	}

	time.Sleep(delay)

	reply := fmt.Sprintf(`Thanks for your question.

> %s

**This is a test answer, not legal advice.** A real agent would respond here with:

1. The relevant legal context
2. Points that may apply to your situation
3. When to consult a licensed attorney

Feel free to ask a follow-up.`, q.Query)

	if err := ingest(gateway, token, ingestMessage{
		SessionID: q.SessionID,
		Type:      "ai",
		Content:   reply,
	}); err != nil {
		log.Printf("answer failed [%s]: %v", q.RequestID, err)
		return
	}
	log.Printf("answered [%s]", q.RequestID)
}

func ingest(gateway, token string, msg ingestMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, gateway+"/api/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Agent-Token", token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}

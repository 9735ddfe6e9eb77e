// ABOUTME: HTTP client for submitting queries to the external legal agent
// ABOUTME: Fire-and-forget: the answer arrives later as a store insert, not here

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrRejected is returned when the agent endpoint answers with a non-2xx status
var ErrRejected = errors.New("agent rejected query")

// Query is the JSON body submitted to the agent endpoint
type Query struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id"`
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`
}

// Client submits queries to the agent endpoint. Success means the query
// was accepted; the answer is delivered asynchronously through the store,
// never through this call's response.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates an agent client for the given endpoint URL.
// timeout bounds the HTTP round trip only, not the eventual answer.
// Pass nil logger for default.
func New(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "agent"),
	}
}

// Submit posts the query to the agent endpoint. A nil return means only
// that the request was accepted at the HTTP level. The response body is
// drained and discarded — conversation content never flows through it.
func (c *Client) Submit(ctx context.Context, q *Query) error {
	body, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encoding query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submitting query: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	c.logger.Debug("query accepted",
		"request_id", q.RequestID,
		"session_id", q.SessionID,
	)
	return nil
}

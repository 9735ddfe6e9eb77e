// ABOUTME: Terminal client for counsel-gateway via the HTTP API
// ABOUTME: Readline-style input with a background SSE stream of timeline updates

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"
)

// clientConfig is the TUI's own config file, ~/.config/counsel/tui.toml
type clientConfig struct {
	Server string `toml:"server"`
	Email  string `toml:"email"`
	Token  string `toml:"token"`
}

func configPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "tui.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "counsel", "tui.toml")
}

func loadConfig() clientConfig {
	cfg := clientConfig{Server: "http://localhost:8080"}
	if _, err := toml.DecodeFile(configPath(), &cfg); err != nil {
		// Missing or unreadable config is fine, flags can cover everything
		return cfg
	}
	return cfg
}

// client talks to the gateway API with a bearer session token
type client struct {
	server string
	token  string
	http   *http.Client
}

type loginResponse struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

type messageJSON struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type timelineResponse struct {
	SessionID string        `json:"session_id"`
	Loading   bool          `json:"loading"`
	Messages  []messageJSON `json:"messages"`
}

type conversation struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
}

type conversationsResponse struct {
	Conversations []conversation `json:"conversations"`
}

func main() {
	cfg := loadConfig()
	server := flag.String("server", cfg.Server, "Gateway server URL")
	email := flag.String("email", cfg.Email, "Account email")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := &client{server: *server, token: cfg.Token, http: http.DefaultClient}

	if c.token == "" {
		if err := c.login(ctx, *email); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("counsel-tui connected to %s\n", *server)
	fmt.Println("Type a question and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	// Background stream of timeline updates
	go c.streamLoop(ctx)

	if err := c.run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

// login prompts for a password and exchanges credentials for a session token
func (c *client) login(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("no email configured: pass -email or set it in %s", configPath())
	}

	fmt.Printf("Password for %s: ", email)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	body, _ := json.Marshal(map[string]string{"email": email, "password": string(pw)})
	resp, err := c.post(ctx, "/api/login", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: status %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("parsing login response: %w", err)
	}
	c.token = lr.Token
	fmt.Printf("Signed in as %s\n", lr.Name)
	return nil
}

func (c *client) run(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)

	// Conversation numbers printed by /list, for /open and /delete
	var listed []conversation

	for {
		fmt.Print("> ")

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		switch {
		case input == "/quit" || input == "/exit" || input == "/q":
			return nil

		case input == "/help":
			printHelp()

		case input == "/new":
			if err := c.newChat(ctx); err != nil {
				fmt.Printf("[error] %v\n", err)
			} else {
				fmt.Println("Started a new conversation")
			}

		case input == "/list":
			convs, err := c.listConversations(ctx)
			if err != nil {
				fmt.Printf("[error] %v\n", err)
				continue
			}
			listed = convs
			if len(convs) == 0 {
				fmt.Println("No conversations yet")
				continue
			}
			for i, conv := range convs {
				fmt.Printf("  %d. %s\n", i+1, conv.Title)
			}

		case strings.HasPrefix(input, "/open "):
			conv, err := pick(listed, strings.TrimPrefix(input, "/open "))
			if err != nil {
				fmt.Printf("[error] %v\n", err)
				continue
			}
			if err := c.openConversation(ctx, conv.SessionID); err != nil {
				fmt.Printf("[error] %v\n", err)
			}

		case strings.HasPrefix(input, "/delete "):
			conv, err := pick(listed, strings.TrimPrefix(input, "/delete "))
			if err != nil {
				fmt.Printf("[error] %v\n", err)
				continue
			}
			if err := c.deleteConversation(ctx, conv.SessionID); err != nil {
				fmt.Printf("[error] %v\n", err)
			} else {
				fmt.Printf("Deleted %q\n", conv.Title)
			}

		case strings.HasPrefix(input, "/"):
			fmt.Printf("Unknown command: %s\n", input)

		default:
			if err := c.send(ctx, input); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
		}
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /new          Start a new conversation")
	fmt.Println("  /list         List conversations")
	fmt.Println("  /open <n>     Open conversation n from the last /list")
	fmt.Println("  /delete <n>   Delete conversation n from the last /list")
	fmt.Println("  /help         Show this help")
	fmt.Println("  /quit         Exit")
}

// pick resolves a 1-based index from the last /list output
func pick(listed []conversation, arg string) (conversation, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(listed) {
		return conversation{}, fmt.Errorf("run /list first and pass a number between 1 and %d", len(listed))
	}
	return listed[n-1], nil
}

func (c *client) send(ctx context.Context, text string) error {
	body, _ := json.Marshal(map[string]string{"message": text})
	resp, err := c.post(ctx, "/api/chat/send", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.StatusAccepted)
}

func (c *client) newChat(ctx context.Context) error {
	resp, err := c.post(ctx, "/api/chat/new", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.StatusOK)
}

func (c *client) listConversations(ctx context.Context) ([]conversation, error) {
	resp, err := c.get(ctx, "/api/conversations")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var out conversationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return out.Conversations, nil
}

// openConversation switches the active session and prints its history
func (c *client) openConversation(ctx context.Context, sessionID string) error {
	body, _ := json.Marshal(map[string]string{"session_id": sessionID})
	resp, err := c.post(ctx, "/api/chat/select", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return err
	}

	var tl timelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&tl); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	for _, m := range tl.Messages {
		printMessage(m)
	}
	return nil
}

func (c *client) deleteConversation(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.server+"/api/conversations/"+sessionID, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.StatusNoContent)
}

// streamLoop follows the SSE stream and prints timeline updates as they
// arrive. Reconnects on stream failure until the context ends.
func (c *client) streamLoop(ctx context.Context) {
	for ctx.Err() == nil {
		if err := c.stream(ctx); err != nil && ctx.Err() == nil {
			fmt.Printf("\n[stream] %v, reconnecting\n> ", err)
		}
	}
}

func (c *client) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+"/api/chat/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	var eventType string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if eventType == "message" && len(dataLines) > 0 {
				var m messageJSON
				if err := json.Unmarshal([]byte(strings.Join(dataLines, "\n")), &m); err == nil {
					fmt.Print("\r\033[K")
					printMessage(m)
					fmt.Print("> ")
				}
			}
			eventType = ""
			dataLines = nil
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			continue
		}
	}
	return scanner.Err()
}

func printMessage(m messageJSON) {
	switch m.Type {
	case "human":
		fmt.Printf("\033[34myou:\033[0m %s\n", m.Content)
	case "ai":
		fmt.Printf("\033[32mcounsel:\033[0m %s\n", stripMarkdown(m.Content))
	}
}

func (c *client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+path, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	return c.http.Do(req)
}

func (c *client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)
	return c.http.Do(req)
}

func (c *client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func checkStatus(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var errResp map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			if msg, ok := errResp["error"]; ok {
				return fmt.Errorf("%s", msg)
			}
		}
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}

// stripMarkdown removes common markdown formatting from text.
func stripMarkdown(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return s
}

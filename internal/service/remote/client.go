// Package remote talks to the chat backend over HTTP. Credentials travel in cookies
// held by the client's jar, never in request bodies.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/zhouzirui/crickgenius/internal/model/chat"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 4 << 20

var (
	// ErrUnauthorized means the backend no longer recognises the session.
	ErrUnauthorized = errors.New("session not recognised by server")
	// ErrMalformedResponse means a 2xx body could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for non-2xx responses other than 401.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Reply is the result of a query exchange.
type Reply struct {
	Response       string
	ConversationID string
}

// Client calls the chat backend endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for baseURL. If httpClient is nil a default client is used;
// a client without a jar is copied and given its own.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		withJar := *httpClient
		withJar.Jar = jar
		httpClient = &withJar
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// Login authenticates and stores the session cookie.
func (c *Client) Login(ctx context.Context, username, password string) (chat.Profile, error) {
	var out chat.Profile
	err := c.do(ctx, http.MethodPost, "/login", chat.Credentials{Username: username, Password: password}, &out)
	return out, err
}

// Register creates an account and stores the session cookie.
func (c *Client) Register(ctx context.Context, username, password string) (chat.Profile, error) {
	var out chat.Profile
	err := c.do(ctx, http.MethodPost, "/register", chat.Credentials{Username: username, Password: password}, &out)
	return out, err
}

// Profile returns the logged-in user.
func (c *Client) Profile(ctx context.Context) (chat.Profile, error) {
	var out chat.Profile
	err := c.do(ctx, http.MethodGet, "/profile", nil, &out)
	return out, err
}

// NewChat asks the backend for a fresh conversation id.
func (c *Client) NewChat(ctx context.Context) (string, error) {
	var out chat.NewChatResponse
	if err := c.do(ctx, http.MethodPost, "/new_chat", struct{}{}, &out); err != nil {
		return "", err
	}
	if out.ConversationID == "" {
		return "", fmt.Errorf("new_chat: %w: missing conversation_id", ErrMalformedResponse)
	}
	return out.ConversationID, nil
}

// Send exchanges one query for an assistant response.
func (c *Client) Send(ctx context.Context, query string) (Reply, error) {
	var out chat.QueryResponse
	if err := c.do(ctx, http.MethodPost, "/chat", chat.QueryRequest{Query: query}, &out); err != nil {
		return Reply{}, err
	}
	return Reply{Response: out.Response, ConversationID: out.ConversationID}, nil
}

// History lists every conversation visible to the session.
func (c *Client) History(ctx context.Context) ([]chat.Conversation, error) {
	var out chat.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/chat_history", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", struct{}{}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %w", method, path, &StatusError{Status: resp.StatusCode, Message: errorMessage(data)})
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrMalformedResponse, err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}

// Package cricket fetches live player and match data from cricapi to ground the
// assistant's answers.
package cricket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultBaseURL  = "https://api.cricapi.com/v1/"
	DefaultCacheTTL = 10 * time.Minute

	playerCacheSize = 100
	matchCacheSize  = 50
)

// ErrNotFound is returned when cricapi answers but reports a failure.
var ErrNotFound = errors.New("cricket data not available")

// Client is a cached cricapi client. Responses are kept as raw JSON, the
// assistant only pastes them into its prompt.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	players *expirable.LRU[string, json.RawMessage]
	matches *expirable.LRU[string, json.RawMessage]
}

// NewClient returns a client for apiKey. An empty baseURL uses DefaultBaseURL and
// a non-positive ttl uses DefaultCacheTTL.
func NewClient(apiKey, baseURL string, ttl time.Duration, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpClient,
		players: expirable.NewLRU[string, json.RawMessage](playerCacheSize, nil, ttl),
		matches: expirable.NewLRU[string, json.RawMessage](matchCacheSize, nil, ttl),
	}
}

// PlayerStats returns the stats document for a player name.
func (c *Client) PlayerStats(ctx context.Context, name string) (json.RawMessage, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if data, ok := c.players.Get(key); ok {
		return data, nil
	}
	data, err := c.get(ctx, "player_stats", url.Values{"name": {name}})
	if err != nil {
		return nil, err
	}
	c.players.Add(key, data)
	return data, nil
}

// MatchConditions returns the current match document. An empty matchID asks for
// whatever match cricapi considers current.
func (c *Client) MatchConditions(ctx context.Context, matchID string) (json.RawMessage, error) {
	if data, ok := c.matches.Get(matchID); ok {
		return data, nil
	}
	params := url.Values{}
	if matchID != "" {
		params.Set("id", matchID)
	}
	data, err := c.get(ctx, "current_match", params)
	if err != nil {
		return nil, err
	}
	c.matches.Add(matchID, data)
	return data, nil
}

// cricapi 的失败响应同样是 200，靠 status/error 字段区分
type envelope struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	params.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error 会带上含 apikey 的完整地址
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", endpoint, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	if env.Error != "" || strings.EqualFold(env.Status, "failure") {
		reason := env.Error
		if reason == "" {
			reason = env.Reason
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrNotFound, endpoint, reason)
	}
	return json.RawMessage(body), nil
}

// ABOUTME: HTTP client for the OpenClaw agent runtime built on resty
// ABOUTME: Submits messages, fetches recent session history and reports session status

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/2389/silverfox/internal/metrics"
)

// DefaultSessionKey is the agent session the relay talks to when none is configured.
const DefaultSessionKey = "agent:main:main"

// RuntimeUnknown is reported when the runtime cannot be reached or does not name itself.
const RuntimeUnknown = "unknown"

// errMissingMessages is returned when a history response has no messages array.
var errMissingMessages = errors.New("history response missing messages")

// HistoryEntry is one message from the runtime's session history.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Tokens  *int   `json:"tokens,omitempty"`
}

// Status describes the runtime session as shown to viewers.
type Status struct {
	Connected   bool   `json:"connected"`
	SessionKey  string `json:"sessionKey"`
	Model       string `json:"model,omitempty"`
	TotalTokens int    `json:"totalTokens"`
	Runtime     string `json:"runtime"`
	Channel     string `json:"channel,omitempty"`
}

// Config holds the connection settings for a Client.
type Config struct {
	// URL is the runtime's root URL; the client appends /api.
	URL        string
	SessionKey string
	Timeout    time.Duration
}

// Client talks to a single OpenClaw session over HTTP.
// None of its methods return errors: failures are logged and reported as
// false or as a disconnected Status.
type Client struct {
	http       *resty.Client
	sessionKey string
	logger     *slog.Logger
}

// NewClient creates a client for the configured runtime and session.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionKey == "" {
		cfg.SessionKey = DefaultSessionKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")+"/api").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "silverfox-relay/1.0").
		SetTimeout(cfg.Timeout)

	return &Client{
		http:       httpClient,
		sessionKey: cfg.SessionKey,
		logger:     logger.With("component", "agent"),
	}
}

// SessionKey returns the session this client is bound to.
func (c *Client) SessionKey() string {
	return c.sessionKey
}

// Submit forwards a user message to the runtime. It returns true only when
// the runtime accepted it with a 2xx response.
func (c *Client) Submit(ctx context.Context, content string) bool {
	body := map[string]string{
		"sessionKey": c.sessionKey,
		"message":    content,
	}

	if _, err := c.post(ctx, "submit", "/sessions/send", body, nil); err != nil {
		c.logger.Warn("failed to send message", "error", err)
		return false
	}
	return true
}

// FetchHistory returns the last limit entries of the session history.
// Any failure yields nil, false; partial data is never returned.
func (c *Client) FetchHistory(ctx context.Context, limit int) ([]HistoryEntry, bool) {
	raw, err := c.post(ctx, "history", "/sessions/{sessionKey}/history", nil, map[string]string{
		"limit": strconv.Itoa(limit),
	})
	if err != nil {
		c.logger.Debug("failed to fetch history", "error", err)
		return nil, false
	}

	var parsed struct {
		Messages *[]HistoryEntry `json:"messages"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.logger.Debug("malformed history response", "error", err)
		return nil, false
	}
	if parsed.Messages == nil {
		c.logger.Debug("malformed history response", "error", errMissingMessages)
		return nil, false
	}
	return *parsed.Messages, true
}

// FetchStatus queries the session status. On failure it returns a
// disconnected Status rather than an error.
func (c *Client) FetchStatus(ctx context.Context) Status {
	disconnected := Status{
		Connected:  false,
		SessionKey: c.sessionKey,
		Runtime:    RuntimeUnknown,
	}

	raw, err := c.post(ctx, "status", "/sessions/{sessionKey}/status", nil, nil)
	if err != nil {
		c.logger.Warn("failed to fetch session status", "error", err)
		return disconnected
	}

	var parsed struct {
		Runtime     string `json:"runtime"`
		Channel     string `json:"channel"`
		Model       string `json:"model"`
		TotalTokens int    `json:"totalTokens"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.logger.Warn("malformed status response", "error", err)
		return disconnected
	}

	runtime := parsed.Runtime
	if runtime == "" {
		runtime = RuntimeUnknown
	}
	return Status{
		Connected:   true,
		SessionKey:  c.sessionKey,
		Model:       parsed.Model,
		TotalTokens: parsed.TotalTokens,
		Runtime:     runtime,
		Channel:     parsed.Channel,
	}
}

// post issues a POST against the runtime API and returns the raw body of a
// 2xx response. The session key is substituted into {sessionKey} path params.
func (c *Client) post(ctx context.Context, op, path string, body any, query map[string]string) ([]byte, error) {
	started := time.Now()

	req := c.http.R().
		SetContext(ctx).
		SetPathParam("sessionKey", c.sessionKey)
	if body != nil {
		req.SetBody(body)
	}
	if query != nil {
		req.SetQueryParams(query)
	}

	resp, err := req.Post(path)
	if err != nil {
		metrics.ObserveAgentRequest(op, false, started)
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	if !resp.IsSuccess() {
		metrics.ObserveAgentRequest(op, false, started)
		return nil, fmt.Errorf("%s request: HTTP %d", op, resp.StatusCode())
	}

	metrics.ObserveAgentRequest(op, true, started)
	return resp.Body(), nil
}

// ABOUTME: Scriptable in-process stand-in for the OpenClaw runtime HTTP API
// ABOUTME: Used by package tests and by cmd/fake-openclaw for local development

package agenttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/silverfox/internal/agent"
)

// Runtime holds the fake session state and serves the runtime's HTTP API.
type Runtime struct {
	sessionKey string

	mu           sync.Mutex
	history      []agent.HistoryEntry
	sent         []string
	historyCalls int
	rawHistory   []byte
	echo         bool
	echoDelay    time.Duration
	failSubmit   int
	failHistory  int
	failStatus   int
	status       StatusBody

	router chi.Router
}

// StatusBody is the status document the fake reports.
type StatusBody struct {
	Runtime     string `json:"runtime"`
	Channel     string `json:"channel,omitempty"`
	Model       string `json:"model,omitempty"`
	TotalTokens int    `json:"totalTokens"`
}

// NewRuntime creates a fake runtime serving a single session.
func NewRuntime(sessionKey string) *Runtime {
	if sessionKey == "" {
		sessionKey = agent.DefaultSessionKey
	}
	rt := &Runtime{
		sessionKey: sessionKey,
		status: StatusBody{
			Runtime: "fake-openclaw",
			Model:   "echo-1",
		},
	}

	r := chi.NewRouter()
	r.Post("/api/sessions/send", rt.handleSend)
	r.Post("/api/sessions/{key}/history", rt.handleHistory)
	r.Post("/api/sessions/{key}/status", rt.handleStatus)
	rt.router = r
	return rt
}

// ServeHTTP implements http.Handler.
func (rt *Runtime) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.router.ServeHTTP(w, r)
}

// SetEcho makes every accepted message produce an "echo: <message>"
// assistant entry after delay.
func (rt *Runtime) SetEcho(delay time.Duration) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.echo = true
	rt.echoDelay = delay
}

// AppendHistory adds entries to the end of the session history.
func (rt *Runtime) AppendHistory(entries ...agent.HistoryEntry) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.history = append(rt.history, entries...)
}

// SetRawHistory replaces history responses with a fixed body. A nil body
// restores normal behavior.
func (rt *Runtime) SetRawHistory(body []byte) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.rawHistory = body
}

// FailSubmit makes the send endpoint answer with code. Zero restores success.
func (rt *Runtime) FailSubmit(code int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.failSubmit = code
}

// FailHistory makes the history endpoint answer with code. Zero restores success.
func (rt *Runtime) FailHistory(code int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.failHistory = code
}

// FailStatus makes the status endpoint answer with code. Zero restores success.
func (rt *Runtime) FailStatus(code int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.failStatus = code
}

// SetStatus replaces the reported status document.
func (rt *Runtime) SetStatus(s StatusBody) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.status = s
}

// Sent returns every message accepted by the send endpoint, in order.
func (rt *Runtime) Sent() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]string(nil), rt.sent...)
}

// HistoryCalls returns how many history requests have been served.
func (rt *Runtime) HistoryCalls() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.historyCalls
}

func (rt *Runtime) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionKey string `json:"sessionKey"`
		Message    string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.failSubmit != 0 {
		http.Error(w, "submit disabled", rt.failSubmit)
		return
	}
	if req.SessionKey != rt.sessionKey {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	rt.sent = append(rt.sent, req.Message)
	rt.history = append(rt.history, agent.HistoryEntry{Role: "user", Content: req.Message})

	if rt.echo {
		reply := agent.HistoryEntry{Role: "assistant", Content: "echo: " + req.Message}
		time.AfterFunc(rt.echoDelay, func() {
			rt.AppendHistory(reply)
		})
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (rt *Runtime) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !rt.matchSession(w, r) {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.historyCalls++
	if rt.failHistory != 0 {
		http.Error(w, "history disabled", rt.failHistory)
		return
	}
	if rt.rawHistory != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rt.rawHistory)
		return
	}

	entries := rt.history
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string][]agent.HistoryEntry{
		"messages": append([]agent.HistoryEntry{}, entries...),
	})
}

func (rt *Runtime) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !rt.matchSession(w, r) {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.failStatus != 0 {
		http.Error(w, "status disabled", rt.failStatus)
		return
	}
	writeJSON(w, http.StatusOK, rt.status)
}

func (rt *Runtime) matchSession(w http.ResponseWriter, r *http.Request) bool {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key != rt.sessionKey {
		http.Error(w, "unknown session", http.StatusNotFound)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server is a Runtime listening on a local httptest server.
type Server struct {
	*Runtime
	srv *httptest.Server
}

// NewServer starts a fake runtime for sessionKey and closes it when the test ends.
func NewServer(t testing.TB, sessionKey string) *Server {
	t.Helper()

	rt := NewRuntime(sessionKey)
	srv := httptest.NewServer(rt)
	t.Cleanup(srv.Close)

	return &Server{Runtime: rt, srv: srv}
}

// URL returns the root URL to hand to agent.Config.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close shuts the listener down early, simulating an unreachable runtime.
func (s *Server) Close() {
	s.srv.Close()
}

// Client returns an agent.Client pointed at this server.
func (s *Server) Client(timeout time.Duration) *agent.Client {
	return agent.NewClient(agent.Config{
		URL:        s.URL(),
		SessionKey: s.sessionKey,
		Timeout:    timeout,
	}, nil)
}

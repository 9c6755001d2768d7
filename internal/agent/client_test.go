// ABOUTME: Tests for the OpenClaw HTTP client against the agenttest fake runtime
// ABOUTME: Covers submit, history parsing and failure modes, and status degradation

package agent_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/silverfox/internal/agent"
	"github.com/2389/silverfox/internal/agent/agenttest"
)

func intPtr(n int) *int { return &n }

func TestClient_Submit(t *testing.T) {
	srv := agenttest.NewServer(t, agent.DefaultSessionKey)
	client := srv.Client(time.Second)

	ok := client.Submit(context.Background(), "Hello")
	assert.True(t, ok)
	assert.Equal(t, []string{"Hello"}, srv.Sent())
}

func TestClient_Submit_NonSuccess(t *testing.T) {
	srv := agenttest.NewServer(t, agent.DefaultSessionKey)
	srv.FailSubmit(http.StatusBadGateway)
	client := srv.Client(time.Second)

	assert.False(t, client.Submit(context.Background(), "Hello"))
	assert.Empty(t, srv.Sent())
}

func TestClient_Submit_Unreachable(t *testing.T) {
	srv := agenttest.NewServer(t, agent.DefaultSessionKey)
	client := srv.Client(time.Second)
	srv.Close()

	assert.False(t, client.Submit(context.Background(), "Hello"))
}

func TestClient_Submit_WrongSession(t *testing.T) {
	srv := agenttest.NewServer(t, "agent:other:main")
	client := agent.NewClient(agent.Config{URL: srv.URL(), SessionKey: "agent:main:main", Timeout: time.Second}, nil)

	assert.False(t, client.Submit(context.Background(), "Hello"))
}

func TestClient_FetchHistory(t *testing.T) {
	srv := agenttest.NewServer(t, agent.DefaultSessionKey)
	srv.AppendHistory(
		agent.HistoryEntry{Role: "user", Content: "one"},
		agent.HistoryEntry{Role: "assistant", Content: "two", Tokens: intPtr(12)},
		agent.HistoryEntry{Role: "user", Content: "three"},
	)
	client := srv.Client(time.Second)

	entries, ok := client.FetchHistory(context.Background(), 2)
	require.True(t, ok)
	require.Len(t, entries, 2)
	assert.Equal(t, "two", entries[0].Content)
	require.NotNil(t, entries[0].Tokens)
	assert.Equal(t, 12, *entries[0].Tokens)
	assert.Equal(t, "three", entries[1].Content)
	assert.Nil(t, entries[1].Tokens)
}

func TestClient_FetchHistory_Empty(t *testing.T) {
	srv := agenttest.NewServer(t, agent.DefaultSessionKey)
	client := srv.Client(time.Second)

	entries, ok := client.FetchHistory(context.Background(), 5)
	require.True(t, ok)
	assert.Empty(t, entries)
}

func TestClient_FetchHistory_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*agenttest.Server)
	}{
		{"server error", func(s *agenttest.Server) { s.FailHistory(http.StatusInternalServerError) }},
		{"malformed json", func(s *agenttest.Server) { s.SetRawHistory([]byte(`{"messages": [`)) }},
		{"missing messages", func(s *agenttest.Server) { s.SetRawHistory([]byte(`{"items": []}`)) }},
		{"null messages", func(s *agenttest.Server) { s.SetRawHistory([]byte(`{"messages": null}`)) }},
		{"unreachable", func(s *agenttest.Server) { s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := agenttest.NewServer(t, agent.DefaultSessionKey)
			srv.AppendHistory(agent.HistoryEntry{Role: "assistant", Content: "hidden"})
			tt.setup(srv)
			client := srv.Client(time.Second)

			entries, ok := client.FetchHistory(context.Background(), 5)
			assert.False(t, ok)
			assert.Nil(t, entries)
		})
	}
}

func TestClient_FetchStatus(t *testing.T) {
	srv := agenttest.NewServer(t, agent.DefaultSessionKey)
	srv.SetStatus(agenttest.StatusBody{
		Runtime:     "openclaw",
		Channel:     "web",
		Model:       "claude",
		TotalTokens: 1234,
	})
	client := srv.Client(time.Second)

	status := client.FetchStatus(context.Background())
	assert.Equal(t, agent.Status{
		Connected:   true,
		SessionKey:  agent.DefaultSessionKey,
		Model:       "claude",
		TotalTokens: 1234,
		Runtime:     "openclaw",
		Channel:     "web",
	}, status)
}

func TestClient_FetchStatus_EmptyRuntime(t *testing.T) {
	srv := agenttest.NewServer(t, agent.DefaultSessionKey)
	srv.SetStatus(agenttest.StatusBody{})
	client := srv.Client(time.Second)

	status := client.FetchStatus(context.Background())
	assert.True(t, status.Connected)
	assert.Equal(t, agent.RuntimeUnknown, status.Runtime)
}

func TestClient_FetchStatus_Failure(t *testing.T) {
	srv := agenttest.NewServer(t, agent.DefaultSessionKey)
	srv.FailStatus(http.StatusServiceUnavailable)
	client := srv.Client(time.Second)

	status := client.FetchStatus(context.Background())
	assert.Equal(t, agent.Status{
		Connected:  false,
		SessionKey: agent.DefaultSessionKey,
		Runtime:    agent.RuntimeUnknown,
	}, status)
}

func TestClient_Timeout(t *testing.T) {
	srv := agenttest.NewServer(t, agent.DefaultSessionKey)
	client := srv.Client(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, client.Submit(ctx, "never sent"))
	_, ok := client.FetchHistory(ctx, 5)
	assert.False(t, ok)
}

func TestClient_EchoRuntime(t *testing.T) {
	srv := agenttest.NewServer(t, agent.DefaultSessionKey)
	srv.SetEcho(0)
	client := srv.Client(time.Second)

	require.True(t, client.Submit(context.Background(), "ping"))

	assert.Eventually(t, func() bool {
		entries, ok := client.FetchHistory(context.Background(), 5)
		if !ok || len(entries) == 0 {
			return false
		}
		last := entries[len(entries)-1]
		return last.Role == "assistant" && last.Content == "echo: ping"
	}, time.Second, 10*time.Millisecond)
}

func TestClient_SessionKeyEscaped(t *testing.T) {
	key := "agent:team/alpha:main"
	srv := agenttest.NewServer(t, key)
	srv.AppendHistory(agent.HistoryEntry{Role: "assistant", Content: "escaped ok"})
	client := agent.NewClient(agent.Config{URL: srv.URL(), SessionKey: key, Timeout: time.Second}, nil)

	entries, ok := client.FetchHistory(context.Background(), 5)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, "escaped ok", entries[0].Content)
	assert.Equal(t, key, client.SessionKey())
}

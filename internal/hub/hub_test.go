// ABOUTME: Tests for the WebSocket hub: snapshots on connect, command routing, fan-out and notices
// ABOUTME: Runs real gorilla connections against an httptest server and the fake OpenClaw runtime

package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/silverfox/internal/agent"
	"github.com/2389/silverfox/internal/agent/agenttest"
	"github.com/2389/silverfox/internal/relay"
	"github.com/2389/silverfox/internal/store"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type testEnv struct {
	hub     *Hub
	store   *store.MockStore
	runtime *agenttest.Server
	corr    *relay.Correlator
	server  *httptest.Server
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	rt := agenttest.NewServer(t, agent.DefaultSessionKey)
	rt.SetEcho(10 * time.Millisecond)
	client := rt.Client(time.Second)
	st := store.NewMockStore()

	h := New(cfg, st, client, nil)
	corr := relay.New(relay.Options{
		Store:        st,
		Agent:        client,
		Publisher:    h,
		PollInterval: 10 * time.Millisecond,
		ReplyTimeout: 2 * time.Second,
	})
	h.SetSubmitter(corr)

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
		corr.Close()
	})

	return &testEnv{hub: h, store: st, runtime: rt, corr: corr, server: srv}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	// Every viewer is greeted with a status snapshot
	f := readFrame(t, conn)
	require.Equal(t, string(relay.EventStatusSnapshot), f.Type)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// readUntil reads frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, eventType relay.EventType) frame {
	t.Helper()

	for i := 0; i < 50; i++ {
		f := readFrame(t, conn)
		if f.Type == string(eventType) {
			return f
		}
	}
	t.Fatalf("no %s frame received", eventType)
	return frame{}
}

// expectSilence asserts no frame arrives within d.
func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	var f frame
	err := conn.ReadJSON(&f)
	require.Error(t, err, "unexpected frame %s", f.Type)
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func decodeNotice(t *testing.T, f frame) relay.NoticePayload {
	t.Helper()
	var n relay.NoticePayload
	require.NoError(t, json.Unmarshal(f.Payload, &n))
	return n
}

func TestHub_SnapshotOnConnect(t *testing.T) {
	env := newTestEnv(t, Config{})

	url := "ws" + strings.TrimPrefix(env.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	f := readFrame(t, conn)
	require.Equal(t, "status-snapshot", f.Type)

	var status agent.Status
	require.NoError(t, json.Unmarshal(f.Payload, &status))
	assert.True(t, status.Connected)
	assert.Equal(t, agent.DefaultSessionKey, status.SessionKey)
	assert.Equal(t, "fake-openclaw", status.Runtime)

	require.Eventually(t, func() bool { return env.hub.ViewerCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_SendCreatesDefaultConversationAndRelaysReply(t *testing.T) {
	env := newTestEnv(t, Config{})
	sender := env.dial(t)
	watcher := env.dial(t)

	sendJSON(t, sender, map[string]any{"type": "send", "content": "Hello"})

	// Both viewers learn about the new conversation and the exchange
	for _, conn := range []*websocket.Conn{sender, watcher} {
		readUntil(t, conn, relay.EventConversationsChanged)

		f := readUntil(t, conn, relay.EventMessageAdded)
		var user store.Message
		require.NoError(t, json.Unmarshal(f.Payload, &user))
		assert.Equal(t, store.RoleUser, user.Role)
		assert.Equal(t, "Hello", user.Content)

		f = readUntil(t, conn, relay.EventMessageAdded)
		var reply store.Message
		require.NoError(t, json.Unmarshal(f.Payload, &reply))
		assert.Equal(t, store.RoleAssistant, reply.Role)
		assert.Equal(t, "echo: Hello", reply.Content)

		// The first exchange names the conversation
		readUntil(t, conn, relay.EventConversationsChanged)
	}

	convs, err := env.store.ListConversations(context.Background(), agent.DefaultSessionKey)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Hello", convs[0].Title)
}

func TestHub_SendUsesMostRecentConversation(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	older, err := env.store.CreateConversation(ctx, agent.DefaultSessionKey, "older")
	require.NoError(t, err)
	newer, err := env.store.CreateConversation(ctx, agent.DefaultSessionKey, "newer")
	require.NoError(t, err)
	_, err = env.store.AppendMessage(ctx, newer.ID, store.RoleUser, "bump", nil)
	require.NoError(t, err)

	conn := env.dial(t)
	sendJSON(t, conn, map[string]any{"type": "send", "content": "where am I"})

	f := readUntil(t, conn, relay.EventMessageAdded)
	var msg store.Message
	require.NoError(t, json.Unmarshal(f.Payload, &msg))
	assert.Equal(t, newer.ID, msg.ConversationID)
	assert.NotEqual(t, older.ID, msg.ConversationID)
}

func TestHub_SendToExplicitConversation(t *testing.T) {
	env := newTestEnv(t, Config{})
	conv, err := env.store.CreateConversation(context.Background(), agent.DefaultSessionKey, "")
	require.NoError(t, err)

	conn := env.dial(t)
	sendJSON(t, conn, map[string]any{"type": "send", "content": "targeted", "conversationId": conv.ID})

	f := readUntil(t, conn, relay.EventMessageAdded)
	var msg store.Message
	require.NoError(t, json.Unmarshal(f.Payload, &msg))
	assert.Equal(t, conv.ID, msg.ConversationID)
}

func TestHub_SendToUnknownConversation(t *testing.T) {
	env := newTestEnv(t, Config{})
	sender := env.dial(t)
	other := env.dial(t)

	sendJSON(t, sender, map[string]any{"type": "send", "content": "hi", "conversationId": 4242})

	f := readUntil(t, sender, relay.EventConnectionNotice)
	assert.Equal(t, relay.NoticePayload{Connected: true, Message: "Conversation not found"}, decodeNotice(t, f))

	expectSilence(t, other, 100*time.Millisecond)
	assert.Empty(t, env.runtime.Sent())
}

func TestHub_SendValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		notice  string
	}{
		{"empty", map[string]any{"type": "send", "content": ""}, "Message cannot be empty"},
		{"whitespace", map[string]any{"type": "send", "content": "   \n"}, "Message cannot be empty"},
		{"too long", map[string]any{"type": "send", "content": "abcdefghijk"}, "Message exceeds 10 characters"},
		{"number", map[string]any{"type": "send", "content": 42}, "Message content must be a string"},
		{"missing", map[string]any{"type": "send"}, "Message content must be a string"},
		{"null", map[string]any{"type": "send", "content": nil}, "Message content must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{MaxContentLength: 10})
			sender := env.dial(t)
			other := env.dial(t)

			sendJSON(t, sender, tt.payload)

			f := readFrame(t, sender)
			require.Equal(t, "connection-notice", f.Type)
			assert.Equal(t, relay.NoticePayload{Connected: true, Message: tt.notice}, decodeNotice(t, f))

			// Rejections go to the sender only and have no side effects
			expectSilence(t, other, 100*time.Millisecond)
			convs, err := env.store.ListConversations(context.Background(), "")
			require.NoError(t, err)
			assert.Empty(t, convs)
			assert.Empty(t, env.runtime.Sent())
		})
	}
}

func TestHub_MalformedFrame(t *testing.T) {
	env := newTestEnv(t, Config{})
	conn := env.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	f := readFrame(t, conn)
	require.Equal(t, "connection-notice", f.Type)
	assert.Equal(t, "Invalid command", decodeNotice(t, f).Message)
}

func TestHub_UnknownCommandIgnored(t *testing.T) {
	env := newTestEnv(t, Config{})
	conn := env.dial(t)

	sendJSON(t, conn, map[string]any{"type": "dance"})
	expectSilence(t, conn, 100*time.Millisecond)
}

func TestHub_StatusRefresh(t *testing.T) {
	env := newTestEnv(t, Config{})
	conn := env.dial(t)
	other := env.dial(t)

	env.runtime.SetStatus(agenttest.StatusBody{Runtime: "refreshed", TotalTokens: 99})
	sendJSON(t, conn, map[string]any{"type": "status-refresh-request"})

	f := readFrame(t, conn)
	require.Equal(t, "status-snapshot", f.Type)
	var status agent.Status
	require.NoError(t, json.Unmarshal(f.Payload, &status))
	assert.Equal(t, "refreshed", status.Runtime)
	assert.Equal(t, 99, status.TotalTokens)

	expectSilence(t, other, 100*time.Millisecond)
}

func TestHub_SubmitFailureBroadcastsNotice(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.runtime.FailSubmit(http.StatusServiceUnavailable)
	sender := env.dial(t)
	watcher := env.dial(t)

	sendJSON(t, sender, map[string]any{"type": "send", "content": "Hello"})

	for _, conn := range []*websocket.Conn{sender, watcher} {
		f := readUntil(t, conn, relay.EventConnectionNotice)
		assert.Equal(t, relay.NoticePayload{Connected: false, Message: relay.NoticeSubmitFailed}, decodeNotice(t, f))
	}
	assert.Equal(t, 0, env.corr.ActiveTickets())
}

func TestHub_PublishFansOut(t *testing.T) {
	env := newTestEnv(t, Config{})
	a := env.dial(t)
	b := env.dial(t)

	env.hub.Publish(relay.TypingState(true))

	for _, conn := range []*websocket.Conn{a, b} {
		f := readFrame(t, conn)
		require.Equal(t, "typing-state", f.Type)
		assert.JSONEq(t, `{"isTyping":true}`, string(f.Payload))
	}
}

func TestHub_PeriodicStatus(t *testing.T) {
	env := newTestEnv(t, Config{StatusInterval: 20 * time.Millisecond})
	conn := env.dial(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.hub.Run(ctx) }()

	readUntil(t, conn, relay.EventStatusSnapshot)
	readUntil(t, conn, relay.EventStatusSnapshot)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, 0, env.hub.ViewerCount(), "Run disconnects viewers on shutdown")
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	env := newTestEnv(t, Config{})
	conn := env.dial(t)
	require.Eventually(t, func() bool { return env.hub.ViewerCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return env.hub.ViewerCount() == 0 }, time.Second, 5*time.Millisecond)

	// Publishing with no viewers is a no-op
	env.hub.Publish(relay.ConversationsChanged())
}

func TestHub_DropsFramesForFullBuffer(t *testing.T) {
	h := New(Config{}, store.NewMockStore(), nil, nil)
	v := &Viewer{id: "slow", hub: h, send: make(chan []byte, 1)}
	h.register(v)
	defer h.Close()

	h.Publish(relay.TypingState(true))
	h.Publish(relay.TypingState(false))

	assert.Len(t, v.send, 1, "second frame is dropped, not queued")
	assert.JSONEq(t, `{"type":"typing-state","payload":{"isTyping":true}}`, string(<-v.send))
}

func TestHub_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no restriction", nil, "http://evil.example", true},
		{"wildcard", []string{"*"}, "http://any.example", true},
		{"listed", []string{"http://localhost:5173"}, "http://localhost:5173", true},
		{"unlisted", []string{"http://localhost:5173"}, "http://evil.example", false},
		{"no origin header", []string{"http://localhost:5173"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(Config{AllowedOrigins: tt.allowed}, store.NewMockStore(), nil, nil)
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.checkOrigin(r))
		})
	}
}

func TestHub_RejectsDisallowedOrigin(t *testing.T) {
	env := newTestEnv(t, Config{AllowedOrigins: []string{"http://localhost:5173"}})

	url := "ws" + strings.TrimPrefix(env.server.URL, "http")
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[int64]*Conversation // keyed by conversation ID
	messages      map[int64][]*Message    // keyed by conversation ID
	nextConvID    int64
	nextMsgID     int64

	// PingErr, when set, is returned from Ping to simulate a broken database.
	PingErr error
	// AppendErr, when set, is returned from AppendMessage.
	AppendErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[int64]*Conversation),
		messages:      make(map[int64][]*Message),
	}
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, sessionKey, title string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if title == "" {
		title = DefaultTitle
	}
	m.nextConvID++
	now := time.Now().UTC()
	c := &Conversation{
		ID:         m.nextConvID,
		SessionKey: sessionKey,
		Title:      title,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.conversations[c.ID] = c

	cp := *c
	return &cp, nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.MessageCount = len(m.messages[id])
	return &cp, nil
}

// ListConversations returns conversations ordered by most recently updated.
func (m *MockStore) ListConversations(ctx context.Context, sessionKey string) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		if sessionKey != "" && c.SessionKey != sessionKey {
			continue
		}
		cp := *c
		cp.MessageCount = len(m.messages[c.ID])
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// UpdateTitle sets a conversation's title.
func (m *MockStore) UpdateTitle(ctx context.Context, id int64, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (m *MockStore) DeleteConversation(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

// AppendMessage stores a message at the end of a conversation.
func (m *MockStore) AppendMessage(ctx context.Context, conversationID int64, role Role, content string, tokenCount *int) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendErr != nil {
		return nil, m.AppendErr
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	c, ok := m.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}

	m.nextMsgID++
	now := time.Now().UTC()
	msg := &Message{
		ID:             m.nextMsgID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		TokenCount:     tokenCount,
		CreatedAt:      now,
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	c.UpdatedAt = now

	cp := *msg
	return &cp, nil
}

// ListMessages returns every message of a conversation, oldest first.
func (m *MockStore) ListMessages(ctx context.Context, conversationID int64) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return copyMessages(m.messages[conversationID]), nil
}

// ListRecentMessages returns the newest limit messages, oldest first.
func (m *MockStore) ListRecentMessages(ctx context.Context, conversationID int64, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		return []*Message{}, nil
	}
	msgs := m.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return copyMessages(msgs), nil
}

// CountMessages returns the number of messages in a conversation.
func (m *MockStore) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.messages[conversationID]), nil
}

// Ping returns PingErr.
func (m *MockStore) Ping(ctx context.Context) error {
	if m.PingErr != nil {
		return m.PingErr
	}
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

func copyMessages(src []*Message) []*Message {
	out := make([]*Message, 0, len(src))
	for _, msg := range src {
		cp := *msg
		out = append(out, &cp)
	}
	return out
}

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)

// ABOUTME: Store interface and data types for silverfox persistence
// ABOUTME: Defines Conversation, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidRole is returned when a message role is neither user nor assistant
var ErrInvalidRole = errors.New("invalid message role")

// DefaultTitle is the placeholder title a conversation carries until its first exchange completes
const DefaultTitle = "New Conversation"

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two permitted roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole converts a raw role string, rejecting anything but user/assistant
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Conversation is a titled thread of messages tied to an agent session key
type Conversation struct {
	ID           int64     `json:"id"`
	SessionKey   string    `json:"sessionKey"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

// Message is a single immutable entry within a conversation
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	TokenCount     *int      `json:"tokenCount,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store defines the interface for conversation and message persistence
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, sessionKey, title string) (*Conversation, error)
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	ListConversations(ctx context.Context, sessionKey string) ([]*Conversation, error)
	UpdateTitle(ctx context.Context, id int64, title string) error
	DeleteConversation(ctx context.Context, id int64) error

	// Messages
	AppendMessage(ctx context.Context, conversationID int64, role Role, content string, tokenCount *int) (*Message, error)
	ListMessages(ctx context.Context, conversationID int64) ([]*Message, error)
	ListRecentMessages(ctx context.Context, conversationID int64, limit int) ([]*Message, error)
	CountMessages(ctx context.Context, conversationID int64) (int, error)

	// Ping verifies the backing database is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}

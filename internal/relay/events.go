// ABOUTME: Events the relay pushes to viewers and the Publisher interface that delivers them
// ABOUTME: Each event is a type tag plus a JSON payload, mirroring the viewer wire format

package relay

import (
	"github.com/2389/silverfox/internal/agent"
	"github.com/2389/silverfox/internal/store"
)

// EventType names an event on the viewer channel.
type EventType string

const (
	EventMessageAdded         EventType = "message-added"
	EventTypingState          EventType = "typing-state"
	EventStatusSnapshot       EventType = "status-snapshot"
	EventConnectionNotice     EventType = "connection-notice"
	EventConversationsChanged EventType = "conversations-changed"
)

// Event is a single server-to-viewer notification.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// Publisher delivers events to every connected viewer.
// Implementations must not block the caller on slow viewers.
type Publisher interface {
	Publish(ev Event)
}

// TypingPayload is the payload of a typing-state event.
type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

// NoticePayload is the payload of a connection-notice event.
type NoticePayload struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message,omitempty"`
}

// MessageAdded announces a newly persisted message.
func MessageAdded(m *store.Message) Event {
	return Event{Type: EventMessageAdded, Payload: m}
}

// TypingState announces whether the agent is working on a reply.
func TypingState(isTyping bool) Event {
	return Event{Type: EventTypingState, Payload: TypingPayload{IsTyping: isTyping}}
}

// StatusSnapshot carries the current runtime status.
func StatusSnapshot(s agent.Status) Event {
	return Event{Type: EventStatusSnapshot, Payload: s}
}

// ConnectionNotice carries a human-readable notice about the runtime link
// or about a rejected command.
func ConnectionNotice(connected bool, message string) Event {
	return Event{Type: EventConnectionNotice, Payload: NoticePayload{Connected: connected, Message: message}}
}

// ConversationsChanged tells viewers to reload the conversation list.
func ConversationsChanged() Event {
	return Event{Type: EventConversationsChanged, Payload: struct{}{}}
}

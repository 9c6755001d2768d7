// ABOUTME: Ticket tracks one submitted message until its reply arrives or its deadline passes
// ABOUTME: Tickets are immutable once created; the correlator owns their lifecycle

package relay

import (
	"strconv"
	"time"
)

// Ticket is an outstanding expectation of an agent reply.
type Ticket struct {
	ID             string
	ConversationID int64
	Content        string
	SubmittedAt    time.Time
	Deadline       time.Time
}

// expired reports whether now is past the ticket's hard deadline.
func (t *Ticket) expired(now time.Time) bool {
	return now.After(t.Deadline)
}

// fingerprint identifies a reply within a conversation.
func fingerprint(conversationID int64, content string) string {
	return strconv.FormatInt(conversationID, 10) + "\x00" + content
}

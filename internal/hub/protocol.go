// ABOUTME: Viewer-to-relay command frames and their decoding
// ABOUTME: Outbound frames are relay.Event values encoded as {"type","payload"}

package hub

import (
	"encoding/json"
	"errors"
)

// Command types a viewer may send.
const (
	CommandSend          = "send"
	CommandStatusRefresh = "status-refresh-request"
)

// Viewer-facing notice texts.
const (
	noticeMalformed        = "Invalid command"
	noticeContentNotString = "Message content must be a string"
	noticeNotFound         = "Conversation not found"
	noticeInternal         = "Internal server error"
)

var errContentNotString = errors.New("content is not a string")

// command is the decoded form of an inbound frame.
type command struct {
	Type           string          `json:"type"`
	Content        json.RawMessage `json:"content,omitempty"`
	ConversationID *int64          `json:"conversationId,omitempty"`
}

func decodeCommand(data []byte) (command, error) {
	var cmd command
	err := json.Unmarshal(data, &cmd)
	return cmd, err
}

// text returns the content field when it is a JSON string.
func (c command) text() (string, error) {
	if len(c.Content) == 0 || string(c.Content) == "null" {
		return "", errContentNotString
	}
	var s string
	if err := json.Unmarshal(c.Content, &s); err != nil {
		return "", errContentNotString
	}
	return s, nil
}

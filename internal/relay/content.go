// ABOUTME: Content validation and conversation title derivation
// ABOUTME: Shared by the correlator and the hub so both enforce the same limits

package relay

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxContentLength is the largest message, in runes, the relay accepts.
const DefaultMaxContentLength = 10000

// titleLength is the number of runes of the first user message kept in a title.
const titleLength = 50

// ValidationError carries a viewer-facing reason and matches ErrValidation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ValidateContent rejects blank content and content longer than maxLen runes.
// A non-positive maxLen falls back to DefaultMaxContentLength.
func ValidateContent(content string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxContentLength
	}
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Reason: "Message cannot be empty"}
	}
	if n := utf8.RuneCountInString(content); n > maxLen {
		return &ValidationError{Reason: fmt.Sprintf("Message exceeds %d characters", maxLen)}
	}
	return nil
}

// DeriveTitle turns the first user message into a conversation title.
func DeriveTitle(content string) string {
	if utf8.RuneCountInString(content) <= titleLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleLength]) + "..."
}

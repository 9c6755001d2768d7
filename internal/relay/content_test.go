// ABOUTME: Tests for content validation and title derivation
// ABOUTME: Rune-based limits so multi-byte text is measured the way users see it

package relay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short", "Hello", "Hello"},
		{"exactly fifty", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"fifty one", strings.Repeat("a", 51), strings.Repeat("a", 50) + "..."},
		{"multi-byte", strings.Repeat("é", 60), strings.Repeat("é", 50) + "..."},
		{"emoji at limit", strings.Repeat("🦊", 50), strings.Repeat("🦊", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.input))
		})
	}
}

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent("hi", 10))
	assert.NoError(t, ValidateContent(strings.Repeat("é", 10), 10), "limit counts runes, not bytes")

	assert.ErrorIs(t, ValidateContent("", 10), ErrValidation)
	assert.ErrorIs(t, ValidateContent(" \t\n ", 10), ErrValidation)
	assert.ErrorIs(t, ValidateContent(strings.Repeat("x", 11), 10), ErrValidation)

	err := ValidateContent(strings.Repeat("x", 11), 10)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Message exceeds 10 characters", verr.Reason)
	assert.Equal(t, "Message cannot be empty", ValidateContent("  ", 10).Error())

	// Non-positive limit falls back to the default
	assert.NoError(t, ValidateContent(strings.Repeat("x", DefaultMaxContentLength), 0))
	assert.ErrorIs(t, ValidateContent(strings.Repeat("x", DefaultMaxContentLength+1), 0), ErrValidation)
}

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid", "night_owl", false},
		{"valid with dots", "a.b-c_1", false},
		{"empty", "", true},
		{"too short", "ab", true},
		{"uppercase rejected", "NightOwl", true},
		{"spaces rejected", "night owl", true},
		{"too long", strings.Repeat("a", 51), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEntityName(t *testing.T) {
	assert.NoError(t, ValidateEntityName("server", "General Hangout"))
	assert.Error(t, ValidateEntityName("channel", ""))
	assert.Error(t, ValidateEntityName("role", "   "))
	assert.Error(t, ValidateEntityName("server", strings.Repeat("x", 101)))
}

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hello"))
	assert.Error(t, ValidateMessageContent(""))
	assert.Error(t, ValidateMessageContent("   "))
	assert.Error(t, ValidateMessageContent(strings.Repeat("x", 4001)))
}

func TestValidateEmoji(t *testing.T) {
	assert.NoError(t, ValidateEmoji("👍"))
	assert.Error(t, ValidateEmoji(""))
	assert.Error(t, ValidateEmoji("👍👍👍👍👍👍👍👍👍"))
}

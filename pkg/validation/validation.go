package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]+$`)
)

const (
	maxMessageLength     = 4000
	maxNameLength        = 100
	maxDisplayNameLength = 50
)

// ValidateUsername checks the canonical (lowercase) username form.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if utf8.RuneCountInString(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if utf8.RuneCountInString(username) > maxDisplayNameLength {
		return fmt.Errorf("username is too long (max %d characters)", maxDisplayNameLength)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only lowercase letters, numbers, _, ., - allowed)")
	}
	return nil
}

// ValidateEntityName covers server, channel and role names.
func ValidateEntityName(kind, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%s name is required", kind)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%s name is too long (max %d characters)", kind, maxNameLength)
	}
	return nil
}

// ValidateMessageContent rejects empty and oversized message bodies.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message content is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return fmt.Errorf("message is too long (max %d characters)", maxMessageLength)
	}
	return nil
}

// ValidateEmoji bounds the reaction emoji field; clients send a single
// grapheme but we only enforce a size cap here.
func ValidateEmoji(emoji string) error {
	if emoji == "" {
		return fmt.Errorf("emoji is required")
	}
	if utf8.RuneCountInString(emoji) > 8 {
		return fmt.Errorf("emoji is too long")
	}
	return nil
}

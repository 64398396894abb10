package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxMessageBytes bounds a single user message.
const MaxMessageBytes = 8 << 10

// ValidateMessageText validates the text of a message before it is sent.
// Emptiness is left to the session, which treats it as a no-op.
func ValidateMessageText(text string) error {
	if len(text) > MaxMessageBytes {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a local conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

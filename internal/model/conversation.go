// Package model defines data structures for the tour booking assistant.
package model

import (
	"time"
)

// PlaceholderTitle is shown for conversations that have no title yet.
const PlaceholderTitle = "New conversation"

// Conversation represents a conversation thread.
type Conversation struct {
	// LocalID is assigned on the client and never changes, so UIs can key on it.
	LocalID string `json:"id"`
	// RoomID is the server room identifier; empty until the first send creates the room.
	RoomID    string    `json:"room_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayTitle returns the title or the placeholder.
func (c *Conversation) DisplayTitle() string {
	if c.Title == "" {
		return PlaceholderTitle
	}
	return c.Title
}

// Persisted reports whether the server has confirmed a room for this conversation.
func (c *Conversation) Persisted() bool {
	return c.RoomID != ""
}

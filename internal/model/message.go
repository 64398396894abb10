package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is a citation attached to an assistant answer.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Message represents one turn in a conversation.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`

	Sources []Source `json:"sources,omitempty"`
	// TourPackages holds the authoritative recommendation items from the agent.
	TourPackages []TourPackage `json:"tour_packages,omitempty"`
	// Selections holds items mined from Content while no authoritative items exist.
	Selections []TourSelection `json:"selections,omitempty"`

	IsError   bool      `json:"is_error,omitempty"`
	Complete  bool      `json:"complete"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Sources != nil {
		out.Sources = append([]Source(nil), m.Sources...)
	}
	if m.TourPackages != nil {
		out.TourPackages = append([]TourPackage(nil), m.TourPackages...)
	}
	if m.Selections != nil {
		out.Selections = append([]TourSelection(nil), m.Selections...)
	}
	return out
}

// CloneMessages deep-copies a message list.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

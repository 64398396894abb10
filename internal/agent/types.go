// Package agent is the HTTP client for the remote tour agent service.
package agent

import (
	"encoding/json"
	"time"

	"github.com/capitalize-ai/tour-assistant/internal/model"
)

// CodeOK is the envelope code for success.
const CodeOK = 0

// CodeNotFound is the envelope code the agent uses for a missing room.
const CodeNotFound = 2

// Envelope is the response wrapper used by every agent REST endpoint.
type Envelope struct {
	EC    int             `json:"EC"`
	EM    string          `json:"EM"`
	Data  json.RawMessage `json:"data,omitempty"`
	Total int             `json:"total,omitempty"`
}

// Room is a persisted conversation on the agent side.
type Room struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoomMessage is a persisted message in a room.
type RoomMessage struct {
	ID           string              `json:"id"`
	Role         string              `json:"role"`
	Content      string              `json:"content"`
	Sources      []model.Source      `json:"sources,omitempty"`
	TourPackages []model.TourPackage `json:"tour_packages,omitempty"`
	IsError      bool                `json:"is_error,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// CreateRoomRequest is the body of POST /rooms.
type CreateRoomRequest struct {
	Title string `json:"title,omitempty"`
}

// ChatRequest is the body of POST /chat/stream. A nil ConversationID or
// UserID is sent as JSON null.
type ChatRequest struct {
	Message            string  `json:"message"`
	ConversationID     *string `json:"conversation_id"`
	UserID             *string `json:"user_id"`
	MaxRecommendations int     `json:"max_recommendations"`
}

// StringOrNil returns nil for an empty string.
func StringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ToConversation maps a room to a conversation without a local id.
func (r Room) ToConversation() model.Conversation {
	return model.Conversation{
		RoomID:    r.RoomID,
		UserID:    r.UserID,
		Title:     r.Title,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ToMessage maps a persisted message. Persisted messages are complete.
func (m RoomMessage) ToMessage() model.Message {
	role := model.RoleAssistant
	if m.Role == string(model.RoleUser) {
		role = model.RoleUser
	}
	return model.Message{
		ID:           m.ID,
		Role:         role,
		Content:      m.Content,
		Sources:      m.Sources,
		TourPackages: m.TourPackages,
		IsError:      m.IsError,
		Complete:     true,
		CreatedAt:    m.CreatedAt,
	}
}

package assistant

import (
	"context"
	"io"
	"time"

	"github.com/capitalize-ai/tour-assistant/internal/agent"
)

// Backend is the remote agent surface a session uses.
type Backend interface {
	CreateRoom(ctx context.Context, title string) (*agent.Room, error)
	ChatStream(ctx context.Context, req agent.ChatRequest) (io.ReadCloser, error)
	ListRooms(ctx context.Context) ([]agent.Room, error)
	RoomMessages(ctx context.Context, roomID string) ([]agent.RoomMessage, error)
	DeleteRoom(ctx context.Context, roomID string) error
}

// TurnRecord summarizes one finished cycle for the back-office.
type TurnRecord struct {
	UserID         string    `json:"user_id"`
	RoomID         string    `json:"room_id"`
	ConversationID string    `json:"conversation_id"`
	Outcome        string    `json:"outcome"`
	Prompt         string    `json:"prompt"`
	Response       string    `json:"response,omitempty"`
	TourPackageIDs []string  `json:"tour_package_ids,omitempty"`
	Error          string    `json:"error,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	CompletedAt    time.Time `json:"completed_at"`
}

// TurnRecorder receives a record of every finished cycle.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, rec TurnRecord) error
}

// ActiveRoomStore remembers the last active room per user across sessions.
type ActiveRoomStore interface {
	ActiveRoom(ctx context.Context, userID string) (string, error)
	SetActiveRoom(ctx context.Context, userID, roomID string) error
	ClearActiveRoom(ctx context.Context, userID string) error
}

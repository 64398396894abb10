package assistant

import (
	"errors"

	"github.com/capitalize-ai/tour-assistant/internal/registry"
)

var (
	// ErrBusy is returned when a cycle is already in flight.
	ErrBusy = errors.New("assistant is busy with another message")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNotFound is returned for unknown conversation ids.
	ErrNotFound = registry.ErrNotFound
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
	// ErrCycleUsed is returned when Run is called twice on one cycle.
	ErrCycleUsed = errors.New("cycle already run")
	// ErrEmptyResponse reports a stream that ended without any content.
	ErrEmptyResponse = errors.New("empty response")
)

// StreamError is an error event sent by the agent.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "agent error: " + e.Message
}

// User-facing texts for failures the agent did not describe itself.
const (
	textTransportFailure = "Sorry, I couldn't reach the tour assistant. Please try again."
	textRoomFailure      = "Sorry, I couldn't start this conversation. Please try again."
	textEmptyResponse    = "The assistant returned an empty response. Please try again."
	textLoadFailure      = "Could not load this conversation."
	textListFailure      = "Could not load your conversations."
	textRoomGone         = "This conversation no longer exists."
	textDeleteFailure    = "Could not delete the conversation."
)

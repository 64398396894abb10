package agent

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRoomNotFound reports that the agent no longer has a room.
var ErrRoomNotFound = errors.New("room not found")

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent %s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// Is matches ErrRoomNotFound for 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrRoomNotFound && e.Status == http.StatusNotFound
}

// EnvelopeError is a response whose EC is not CodeOK, whatever its HTTP status.
type EnvelopeError struct {
	Op      string
	Code    int
	Message string
	// Status is the HTTP status the envelope arrived with.
	Status int
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("agent %s: EC=%d: %s", e.Op, e.Code, e.Message)
}

// Is matches ErrRoomNotFound for CodeNotFound or a 404 status.
func (e *EnvelopeError) Is(target error) bool {
	return target == ErrRoomNotFound && (e.Code == CodeNotFound || e.Status == http.StatusNotFound)
}

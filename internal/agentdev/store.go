// Package agentdev is a development stand-in for the remote tour agent. It
// speaks the same REST envelope and stream frame protocol as the production
// service, keeps rooms in memory and recommends tours from a fixed catalog.
package agentdev

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/tour-assistant/internal/agent"
	"github.com/capitalize-ai/tour-assistant/internal/model"
	"github.com/capitalize-ai/tour-assistant/internal/registry"
)

// ErrRoomNotFound is returned for unknown rooms and rooms owned by another user.
var ErrRoomNotFound = errors.New("room not found")

type room struct {
	agent.Room
	messages []agent.RoomMessage
}

// Store keeps rooms and their messages in memory.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*room
	now   func() time.Time
}

// NewStore creates an empty store.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{rooms: make(map[string]*room), now: now}
}

// CreateRoom creates a room owned by userID.
func (s *Store) CreateRoom(userID, title string) agent.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r := &room{Room: agent.Room{
		RoomID:    uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	s.rooms[r.RoomID] = r
	return r.Room
}

// Room returns one of the user's rooms.
func (s *Store) Room(userID, roomID string) (agent.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(userID, roomID)
	if err != nil {
		return agent.Room{}, err
	}
	return r.Room, nil
}

// Rooms lists the user's rooms, most recently updated first.
func (s *Store) Rooms(userID string) []agent.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]agent.Room, 0)
	for _, r := range s.rooms {
		if r.UserID == userID {
			out = append(out, r.Room)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Messages returns a copy of a room's history.
func (s *Store) Messages(userID, roomID string) ([]agent.RoomMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(userID, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]agent.RoomMessage, len(r.messages))
	copy(out, r.messages)
	return out, nil
}

// Append adds messages to a room and bumps its update time. A room without
// a title takes one from its first user message.
func (s *Store) Append(userID, roomID string, msgs ...agent.RoomMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(userID, roomID)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if r.Title == "" && m.Role == string(model.RoleUser) {
			r.Title = registry.Title(m.Content)
		}
		r.messages = append(r.messages, m)
	}
	r.UpdatedAt = s.now()
	return nil
}

// Delete removes a room.
func (s *Store) Delete(userID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(userID, roomID); err != nil {
		return err
	}
	delete(s.rooms, roomID)
	return nil
}

func (s *Store) lookup(userID, roomID string) (*room, error) {
	r, ok := s.rooms[roomID]
	if !ok || r.UserID != userID {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

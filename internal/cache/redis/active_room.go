package redis

import (
	"context"
	"errors"
	"time"
)

const activeRoomPrefix = "assistant:active_room:"

type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ActiveRooms remembers each user's last active room.
type ActiveRooms struct {
	store store
	ttl   time.Duration
}

// NewActiveRooms creates the store. A zero ttl keeps entries forever.
func NewActiveRooms(c *Client, ttl time.Duration) *ActiveRooms {
	return &ActiveRooms{store: c, ttl: ttl}
}

// ActiveRoom returns the remembered room, or "" when none is stored.
func (a *ActiveRooms) ActiveRoom(ctx context.Context, userID string) (string, error) {
	v, err := a.store.Get(ctx, activeRoomPrefix+userID)
	if errors.Is(err, ErrMiss) {
		return "", nil
	}
	return v, err
}

// SetActiveRoom remembers roomID for userID.
func (a *ActiveRooms) SetActiveRoom(ctx context.Context, userID, roomID string) error {
	return a.store.Set(ctx, activeRoomPrefix+userID, roomID, a.ttl)
}

// ClearActiveRoom forgets the user's room.
func (a *ActiveRooms) ClearActiveRoom(ctx context.Context, userID string) error {
	return a.store.Delete(ctx, activeRoomPrefix+userID)
}

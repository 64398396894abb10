package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.values[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func TestActiveRooms(t *testing.T) {
	mem := newMemoryStore()
	rooms := &ActiveRooms{store: mem, ttl: time.Hour}
	ctx := context.Background()

	got, err := rooms.ActiveRoom(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, rooms.SetActiveRoom(ctx, "user-1", "room-9"))
	assert.Equal(t, time.Hour, mem.ttls["assistant:active_room:user-1"])

	got, err = rooms.ActiveRoom(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "room-9", got)

	require.NoError(t, rooms.ClearActiveRoom(ctx, "user-1"))
	got, err = rooms.ActiveRoom(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestActiveRoomsStoreError(t *testing.T) {
	mem := newMemoryStore()
	mem.err = errors.New("connection refused")
	rooms := &ActiveRooms{store: mem}

	_, err := rooms.ActiveRoom(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestNewRejectsBadURI(t *testing.T) {
	_, err := New(context.Background(), "not-a-redis-uri")
	assert.Error(t, err)
}

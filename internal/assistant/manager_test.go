package assistant

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/tour-assistant/pkg/logger"
)

func TestManagerReusesSessions(t *testing.T) {
	var created atomic.Int32
	m := NewManager(func(userID string) *Session {
		created.Add(1)
		return NewSession(newFakeBackend(), Options{UserID: userID})
	}, time.Minute, logger.NewNop())
	defer m.CloseAll()

	a := m.Get(context.Background(), "alice")
	assert.Same(t, a, m.Get(context.Background(), "alice"))
	assert.NotSame(t, a, m.Get(context.Background(), "bob"))
	assert.EqualValues(t, 2, created.Load())
	assert.Equal(t, 2, m.Len())

	assert.Len(t, a.Snapshot().Conversations, 1, "sessions are initialized on first use")
}

func TestManagerSweep(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	m := NewManager(func(userID string) *Session {
		return NewSession(newFakeBackend(), Options{UserID: userID})
	}, 10*time.Minute, logger.NewNop())
	m.now = func() time.Time { return now }

	idle := m.Get(context.Background(), "idle")
	now = now.Add(8 * time.Minute)
	m.Get(context.Background(), "recent")

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())

	_, err := idle.Start("hello")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManagerKeepsBusySessions(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	m := NewManager(func(userID string) *Session {
		return NewSession(newFakeBackend(), Options{UserID: userID})
	}, time.Minute, logger.NewNop())
	m.now = func() time.Time { return now }

	s := m.Get(context.Background(), "busy")
	_, err := s.Start("in flight")
	assert.NoError(t, err)

	now = now.Add(time.Hour)
	assert.Equal(t, 0, m.Sweep())
	m.CloseAll()
	assert.Equal(t, 0, m.Len())
}

func TestManagerInitOutlivesRequest(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("room-a", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	m := NewManager(func(userID string) *Session {
		return NewSession(backend, Options{UserID: userID})
	}, time.Minute, logger.NewNop())
	defer m.CloseAll()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := m.Get(ctx, "alice").Snapshot()
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, "room-a", snap.Conversations[0].RoomID)
	assert.Empty(t, snap.Alert)
}

func TestManagerRetriesFailedInit(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("room-a", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	backend.listErr = errors.New("agent unavailable")
	m := NewManager(func(userID string) *Session {
		return NewSession(backend, Options{UserID: userID})
	}, time.Minute, logger.NewNop())
	defer m.CloseAll()

	snap := m.Get(context.Background(), "alice").Snapshot()
	require.Len(t, snap.Conversations, 1)
	assert.Empty(t, snap.Conversations[0].RoomID)
	assert.Equal(t, textListFailure, snap.Alert)

	backend.mu.Lock()
	backend.listErr = nil
	backend.mu.Unlock()

	snap = m.Get(context.Background(), "alice").Snapshot()
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, "room-a", snap.Conversations[0].RoomID)
	assert.Empty(t, snap.Alert)
}

func TestManagerKeepsLocalStateAfterSend(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("room-a", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	backend.listErr = errors.New("agent unavailable")
	m := NewManager(func(userID string) *Session {
		return NewSession(backend, Options{UserID: userID})
	}, time.Minute, logger.NewNop())
	defer m.CloseAll()

	s := m.Get(context.Background(), "alice")
	_, err := s.Start("Tour Đà Lạt")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.listErr = nil
	backend.mu.Unlock()

	snap := m.Get(context.Background(), "alice").Snapshot()
	require.Len(t, snap.Conversations, 1)
	assert.Empty(t, snap.Conversations[0].RoomID)
	assert.Len(t, snap.Messages, 1)
}

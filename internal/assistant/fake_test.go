package assistant

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/capitalize-ai/tour-assistant/internal/agent"
	"github.com/capitalize-ai/tour-assistant/pkg/logger"
)

// fakeBackend is an in-memory agent.
type fakeBackend struct {
	mu sync.Mutex

	rooms    []agent.Room
	messages map[string][]agent.RoomMessage
	gates    map[string]chan struct{}
	loads    chan string

	listErr   error
	createErr error
	deleteErr error
	chatErr   error

	body     string
	streamFn func(ctx context.Context) io.ReadCloser

	createCalls int
	nextRoom    int
	chatReqs    []agent.ChatRequest
	deleted     []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		messages: make(map[string][]agent.RoomMessage),
		gates:    make(map[string]chan struct{}),
		loads:    make(chan string, 16),
	}
}

func (f *fakeBackend) CreateRoom(ctx context.Context, title string) (*agent.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextRoom++
	return &agent.Room{RoomID: fmt.Sprintf("room-%d", f.nextRoom), UserID: "user-1", Title: title}, nil
}

func (f *fakeBackend) ChatStream(ctx context.Context, req agent.ChatRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatReqs = append(f.chatReqs, req)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if f.streamFn != nil {
		return f.streamFn(ctx), nil
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func (f *fakeBackend) ListRooms(ctx context.Context) ([]agent.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]agent.Room(nil), f.rooms...), nil
}

func (f *fakeBackend) RoomMessages(ctx context.Context, roomID string) ([]agent.RoomMessage, error) {
	f.mu.Lock()
	gate := f.gates[roomID]
	f.mu.Unlock()

	select {
	case f.loads <- roomID:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.messages[roomID]
	if !ok {
		return nil, agent.ErrRoomNotFound
	}
	return append([]agent.RoomMessage(nil), msgs...), nil
}

func (f *fakeBackend) DeleteRoom(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, roomID)
	return nil
}

func (f *fakeBackend) addRoom(roomID string, updated time.Time, msgs ...agent.RoomMessage) {
	f.rooms = append(f.rooms, agent.Room{RoomID: roomID, UserID: "user-1", CreatedAt: updated, UpdatedAt: updated})
	if msgs == nil {
		msgs = []agent.RoomMessage{}
	}
	f.messages[roomID] = msgs
}

func (f *fakeBackend) gate(roomID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[roomID] = ch
	return ch
}

func (f *fakeBackend) ungate(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.gates, roomID)
}

// blockingBody blocks reads until the request context ends.
type blockingBody struct {
	ctx context.Context
}

func (b blockingBody) Read(p []byte) (int, error) {
	<-b.ctx.Done()
	return 0, b.ctx.Err()
}

func (b blockingBody) Close() error { return nil }

// failingBody yields data and then fails.
type failingBody struct {
	r   io.Reader
	err error
}

func (b *failingBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err == io.EOF {
		return n, b.err
	}
	return n, err
}

func (b *failingBody) Close() error { return nil }

func frames(lines ...string) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString("data: ")
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	return sb.String()
}

func newTestSession(t *testing.T, backend Backend, mutate ...func(*Options)) *Session {
	t.Helper()
	opts := Options{
		UserID:             "user-1",
		MaxRecommendations: 3,
		Logger:             logger.Wrap(zaptest.NewLogger(t)),
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	s := NewSession(backend, opts)
	t.Cleanup(s.Close)
	return s
}

type memoryActiveRooms struct {
	mu    sync.Mutex
	rooms map[string]string
}

func (m *memoryActiveRooms) ActiveRoom(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[userID], nil
}

func (m *memoryActiveRooms) SetActiveRoom(ctx context.Context, userID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[userID] = roomID
	return nil
}

func (m *memoryActiveRooms) ClearActiveRoom(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, userID)
	return nil
}

type recordingTurns struct {
	mu      sync.Mutex
	records []TurnRecord
}

func (r *recordingTurns) RecordTurn(ctx context.Context, rec TurnRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

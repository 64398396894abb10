// Package assistant runs the streaming conversational assistant: one session
// per user holds the conversation registry, drives send/receive cycles
// against the remote agent and reconciles persisted history.
package assistant

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/tour-assistant/internal/model"
	"github.com/capitalize-ai/tour-assistant/internal/registry"
	"github.com/capitalize-ai/tour-assistant/internal/stream"
	"github.com/capitalize-ai/tour-assistant/pkg/logger"
)

// Options configures a Session.
type Options struct {
	// UserID identifies the owner for the active room store and turn records.
	UserID             string
	FramePrefix        string
	MaxRecommendations int
	Clock              func() time.Time
	Turns              TurnRecorder
	ActiveRooms        ActiveRoomStore
	Logger             *logger.Logger
}

// Session is the assistant state for one user. All methods are safe for
// concurrent use; network calls are made without holding the lock.
type Session struct {
	backend Backend
	opts    Options
	logger  *logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	reg      *registry.Registry
	state    State
	cycle    *Cycle
	typing   bool
	alert    string
	deleting map[string]bool
	closed   bool
	started  bool

	version uint64
	subs    map[int]chan Snapshot
	nextSub int
}

// NewSession creates a session. Call Init to load persisted conversations.
func NewSession(backend Backend, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.FramePrefix == "" {
		opts.FramePrefix = stream.DefaultPrefix
	}
	if opts.MaxRecommendations <= 0 {
		opts.MaxRecommendations = 3
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Session{
		backend:  backend,
		opts:     opts,
		logger:   opts.Logger.Named("assistant").With(zap.String("user_id", opts.UserID)),
		now:      opts.Clock,
		reg:      registry.New(opts.Clock),
		deleting: make(map[string]bool),
		subs:     make(map[int]chan Snapshot),
	}
}

// UserID returns the session owner.
func (s *Session) UserID() string {
	return s.opts.UserID
}

// Started reports whether a message was ever submitted in this session.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// State returns the current cycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartNewConversation creates a local conversation and makes it active.
// It is refused while a cycle is in flight for the active conversation.
func (s *Session) StartNewConversation() (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.Conversation{}, ErrClosed
	}
	if s.streamingActiveLocked() {
		return model.Conversation{}, ErrBusy
	}
	conv := s.reg.CreateLocal()
	s.typing = false
	s.alert = ""
	s.publishLocked()
	return conv, nil
}

// SelectConversation makes id active and loads its history when it has a
// room and has not been loaded for this activation. Switching away from the
// conversation that is streaming is refused.
func (s *Session) SelectConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if id != s.reg.ActiveID() && s.streamingActiveLocked() {
		s.mu.Unlock()
		return ErrBusy
	}
	changed, err := s.reg.Select(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	conv, _ := s.reg.Get(id)
	streaming := s.cycle != nil && s.cycle.convID == id
	needsLoad := conv.Persisted() && !s.reg.Loaded(id) && !streaming
	if changed {
		s.typing = false
		s.alert = ""
	}
	s.publishLocked()
	s.mu.Unlock()

	if changed && conv.Persisted() {
		s.rememberRoom(ctx, conv.RoomID)
	}
	if needsLoad {
		return s.LoadMessages(ctx, id)
	}
	return nil
}

// DeleteConversation removes a conversation. A conversation with a room is
// only removed after the agent confirms the delete; on failure it stays and
// the alert is set.
func (s *Session) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	conv, ok := s.reg.Get(id)
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if s.deleting[id] || (s.cycle != nil && s.cycle.convID == id) {
		s.mu.Unlock()
		return ErrBusy
	}
	s.deleting[id] = true
	s.mu.Unlock()

	if conv.Persisted() {
		if err := s.backend.DeleteRoom(ctx, conv.RoomID); err != nil {
			s.logger.Warn("failed to delete room",
				zap.String("room_id", conv.RoomID),
				zap.Error(err),
			)
			s.mu.Lock()
			delete(s.deleting, id)
			s.alert = textDeleteFailure
			s.publishLocked()
			s.mu.Unlock()
			return err
		}
	}

	s.mu.Lock()
	delete(s.deleting, id)
	wasActive := s.reg.ActiveID() == id
	next, err := s.reg.Remove(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	needsLoad := wasActive && next.Persisted() && !s.reg.Loaded(next.LocalID)
	if wasActive {
		s.typing = false
	}
	s.alert = ""
	s.publishLocked()
	s.mu.Unlock()

	if wasActive {
		if next.Persisted() {
			s.rememberRoom(ctx, next.RoomID)
		} else {
			s.forgetRoom(ctx)
		}
	}
	if needsLoad {
		return s.LoadMessages(ctx, next.LocalID)
	}
	return nil
}

// SendMessage runs one full cycle for text on the active conversation.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	c, err := s.Start(text)
	if err != nil {
		return err
	}
	return c.Run(ctx)
}

// KeyEvent is a key press in the message input.
type KeyEvent struct {
	Key   string `json:"key"`
	Shift bool   `json:"shift"`
}

// Submits reports whether the key sends the draft. Shift+Enter inserts a
// line break instead.
func (ev KeyEvent) Submits() bool {
	return ev.Key == "Enter" && !ev.Shift
}

// KeyDown submits draft when Enter is pressed without Shift. It reports
// whether the key submitted.
func (s *Session) KeyDown(ctx context.Context, ev KeyEvent, draft string) (bool, error) {
	if !ev.Submits() {
		return false, nil
	}
	return true, s.SendMessage(ctx, draft)
}

// DismissAlert clears the alert banner.
func (s *Session) DismissAlert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alert != "" {
		s.alert = ""
		s.publishLocked()
	}
}

// Close cancels any in-flight cycle and ends all subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cycle != nil && s.cycle.cancel != nil {
		s.cycle.cancel()
	}
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Start validates text and begins a cycle on the active conversation. The
// user message is appended at once. It returns ErrBusy while any cycle is
// in flight; the caller must Run the returned cycle.
func (s *Session) Start(text string) (*Cycle, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.state.InFlight() {
		return nil, ErrBusy
	}
	active, ok := s.reg.Active()
	if !ok {
		active = s.reg.CreateLocal()
	}
	if s.deleting[active.LocalID] {
		return nil, ErrBusy
	}

	snap := s.reg.Snapshot()
	now := s.now()
	userMsg := model.Message{
		ID:        uuid.NewString(),
		Role:      model.RoleUser,
		Content:   text,
		Complete:  true,
		CreatedAt: now,
	}
	_ = s.reg.Append(active.LocalID, userMsg)
	if _, err := s.reg.DeriveTitle(active.LocalID, text); err != nil {
		return nil, err
	}
	_ = s.reg.Touch(active.LocalID, true)

	c := &Cycle{
		session:   s,
		convID:    active.LocalID,
		prompt:    text,
		userMsgID: userMsg.ID,
		snapshot:  snap,
		started:   now,
	}
	s.cycle = c
	s.started = true
	s.state = StateEnsuringRoom
	s.alert = ""
	s.publishLocked()
	return c, nil
}

// streamingActiveLocked reports whether a cycle is in flight for the active
// conversation.
func (s *Session) streamingActiveLocked() bool {
	return s.cycle != nil && s.cycle.convID == s.reg.ActiveID()
}

func (s *Session) rememberRoom(ctx context.Context, roomID string) {
	if s.opts.ActiveRooms == nil || s.opts.UserID == "" || roomID == "" {
		return
	}
	if err := s.opts.ActiveRooms.SetActiveRoom(ctx, s.opts.UserID, roomID); err != nil {
		s.logger.Warn("failed to remember active room", zap.String("room_id", roomID), zap.Error(err))
	}
}

func (s *Session) forgetRoom(ctx context.Context) {
	if s.opts.ActiveRooms == nil || s.opts.UserID == "" {
		return
	}
	if err := s.opts.ActiveRooms.ClearActiveRoom(ctx, s.opts.UserID); err != nil {
		s.logger.Warn("failed to clear active room", zap.Error(err))
	}
}

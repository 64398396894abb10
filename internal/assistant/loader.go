package assistant

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/capitalize-ai/tour-assistant/internal/agent"
	"github.com/capitalize-ai/tour-assistant/internal/model"
)

// Init replaces the registry with the persisted rooms, activates the
// remembered room (or the most recent one) and loads its messages. When the
// room list cannot be fetched the session falls back to a fresh local
// conversation and the error is returned for logging.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state.InFlight() {
		s.mu.Unlock()
		return ErrBusy
	}
	s.mu.Unlock()

	rooms, err := s.backend.ListRooms(ctx)
	if err != nil {
		s.logger.Warn("failed to list rooms", zap.Error(err))
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state.InFlight() {
			return ErrBusy
		}
		s.reg.Replace(nil)
		s.reg.CreateLocal()
		s.alert = textListFailure
		s.publishLocked()
		return err
	}

	remembered := s.rememberedRoom(ctx)

	s.mu.Lock()
	if s.state.InFlight() {
		s.mu.Unlock()
		return ErrBusy
	}
	convs := make([]model.Conversation, 0, len(rooms))
	for _, r := range rooms {
		convs = append(convs, r.ToConversation())
	}
	s.reg.Replace(convs)
	if s.alert == textListFailure {
		s.alert = ""
	}

	if s.reg.Len() == 0 {
		s.reg.CreateLocal()
		s.publishLocked()
		s.mu.Unlock()
		return nil
	}

	target := s.reg.Conversations()[0]
	if c, ok := s.reg.FindByRoom(remembered); ok {
		target = c
	}
	_, _ = s.reg.Select(target.LocalID)
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Debug("loaded rooms", zap.Int("count", len(rooms)), zap.String("active_room", target.RoomID))
	return s.LoadMessages(ctx, target.LocalID)
}

func (s *Session) rememberedRoom(ctx context.Context) string {
	if s.opts.ActiveRooms == nil || s.opts.UserID == "" {
		return ""
	}
	roomID, err := s.opts.ActiveRooms.ActiveRoom(ctx, s.opts.UserID)
	if err != nil {
		s.logger.Warn("failed to read active room", zap.Error(err))
		return ""
	}
	return roomID
}

// LoadMessages fetches the persisted messages of an active conversation and
// replaces its list. A result that arrives after another conversation was
// activated, or after this one was re-activated, is discarded.
func (s *Session) LoadMessages(ctx context.Context, id string) error {
	s.mu.Lock()
	conv, ok := s.reg.Get(id)
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if !conv.Persisted() || s.reg.ActiveID() != id {
		s.mu.Unlock()
		return nil
	}
	gen := s.reg.Generation()
	s.mu.Unlock()

	persisted, err := s.backend.RoomMessages(ctx, conv.RoomID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reg.ActiveID() != id || s.reg.Generation() != gen {
		s.logger.Debug("discarding stale message load",
			zap.String("conversation_id", id),
			zap.String("room_id", conv.RoomID),
		)
		return nil
	}

	if err != nil {
		if errors.Is(err, agent.ErrRoomNotFound) && (s.cycle == nil || s.cycle.convID != id) {
			s.logger.Info("room no longer exists, dropping conversation", zap.String("room_id", conv.RoomID))
			_, _ = s.reg.Remove(id)
			s.alert = textRoomGone
			s.publishLocked()
			return err
		}
		s.logger.Warn("failed to load messages", zap.String("room_id", conv.RoomID), zap.Error(err))
		s.alert = textLoadFailure
		s.publishLocked()
		return err
	}

	msgs := make([]model.Message, 0, len(persisted))
	for _, m := range persisted {
		msgs = append(msgs, m.ToMessage())
	}

	// A cycle started while the load was pending keeps its own messages.
	if c := s.cycle; c != nil && c.convID == id {
		current, _ := s.reg.Messages(id)
		for _, m := range current {
			if m.ID == c.userMsgID || (c.assistantMsgID != "" && m.ID == c.assistantMsgID) {
				msgs = append(msgs, m)
			}
		}
	}

	_ = s.reg.SetMessages(id, msgs, gen)

	if conv.Title == "" {
		for _, m := range msgs {
			if m.Role == model.RoleUser {
				_, _ = s.reg.DeriveTitle(id, m.Content)
				break
			}
		}
	}

	s.publishLocked()
	return nil
}

package assistant

import (
	"github.com/capitalize-ai/tour-assistant/internal/model"
)

// Snapshot is a copy of the session state for rendering.
type Snapshot struct {
	Version       uint64               `json:"version"`
	State         State                `json:"state"`
	ActiveID      string               `json:"active_id"`
	StreamingID   string               `json:"streaming_id,omitempty"`
	Typing        bool                 `json:"typing"`
	Alert         string               `json:"alert,omitempty"`
	Conversations []model.Conversation `json:"conversations"`
	// Messages belong to the active conversation.
	Messages []model.Message `json:"messages"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Messages returns a copy of a conversation's messages.
func (s *Session) Messages(id string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Messages(id)
}

// Subscribe returns a channel that receives a snapshot after every change.
// Delivery coalesces: a slow reader only sees the latest snapshot. The
// channel is closed by the returned cancel func or by Close.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:       s.version,
		State:         s.state,
		ActiveID:      s.reg.ActiveID(),
		Typing:        s.typing,
		Alert:         s.alert,
		Conversations: s.reg.Conversations(),
	}
	if s.cycle != nil {
		snap.StreamingID = s.cycle.convID
	}
	if snap.ActiveID != "" {
		snap.Messages, _ = s.reg.Messages(snap.ActiveID)
	}
	return snap
}

// publishLocked bumps the version and pushes a snapshot to every subscriber.
func (s *Session) publishLocked() {
	s.version++
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

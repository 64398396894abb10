package assistant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/tour-assistant/internal/agent"
	"github.com/capitalize-ai/tour-assistant/internal/extract"
	"github.com/capitalize-ai/tour-assistant/internal/model"
	"github.com/capitalize-ai/tour-assistant/internal/registry"
	"github.com/capitalize-ai/tour-assistant/internal/stream"
	"github.com/capitalize-ai/tour-assistant/pkg/metrics"
	"github.com/capitalize-ai/tour-assistant/pkg/tracing"
)

// errStreamDone stops the pump after a complete event.
var errStreamDone = errors.New("stream complete")

// Cycle is one send/receive exchange. Events always apply to the
// conversation the cycle started on, whichever conversation is active.
type Cycle struct {
	session   *Session
	convID    string
	prompt    string
	userMsgID string
	snapshot  registry.Snapshot
	started   time.Time

	// Guarded by session.mu.
	cancel         context.CancelFunc
	ran            bool
	gotStart       bool
	assistantMsgID string
	completed      bool
}

// ConversationID returns the local id the cycle runs on.
func (c *Cycle) ConversationID() string {
	return c.convID
}

// Run performs the cycle and blocks until it ends. All outcomes are applied
// to the session state before Run returns; the error is informational.
func (c *Cycle) Run(ctx context.Context) error {
	s := c.session

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if c.ran {
		s.mu.Unlock()
		return ErrCycleUsed
	}
	c.ran = true
	c.cancel = cancel
	if s.closed {
		cancel()
	}
	s.mu.Unlock()

	ctx, span := tracing.Tracer("assistant").Start(ctx, "assistant.cycle")
	span.SetAttributes(attribute.String("conversation.local_id", c.convID))
	defer span.End()

	err := c.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.finish(ctx, err)
	return err
}

func (c *Cycle) run(ctx context.Context) error {
	s := c.session

	conv, err := c.conversation()
	if err != nil {
		return err
	}

	if !conv.Persisted() {
		room, err := s.backend.CreateRoom(ctx, conv.Title)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				c.abandon(true)
				return err
			}
			s.logger.Warn("failed to create room", zap.Error(err))
			c.failRoom()
			return err
		}
		s.mu.Lock()
		_, _ = s.reg.SetRoom(c.convID, room.RoomID, room.UserID)
		s.reg.MarkLoaded(c.convID)
		active := s.reg.ActiveID() == c.convID
		s.publishLocked()
		s.mu.Unlock()
		if active {
			s.rememberRoom(ctx, room.RoomID)
		}
		if conv, err = c.conversation(); err != nil {
			return err
		}
	}

	c.setState(StateSending, false)

	body, err := s.backend.ChatStream(ctx, agent.ChatRequest{
		Message:            c.prompt,
		ConversationID:     agent.StringOrNil(conv.RoomID),
		UserID:             agent.StringOrNil(conv.UserID),
		MaxRecommendations: s.opts.MaxRecommendations,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.abandon(false)
			return err
		}
		s.logger.Warn("failed to open chat stream", zap.String("room_id", conv.RoomID), zap.Error(err))
		c.failTransport()
		return err
	}
	defer body.Close()

	c.setState(StateAwaitingFirstToken, true)

	dec := stream.NewDecoder(s.opts.FramePrefix, s.logger)
	err = dec.Pump(ctx, body, c.apply)

	var streamErr *StreamError
	switch {
	case err == nil || errors.Is(err, errStreamDone):
		return c.endOfStream()
	case errors.As(err, &streamErr), errors.Is(err, ErrEmptyResponse):
		return err
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		c.abandon(false)
		return context.Canceled
	default:
		s.logger.Warn("chat stream failed", zap.String("room_id", conv.RoomID), zap.Error(err))
		c.failTransport()
		return err
	}
}

func (c *Cycle) conversation() (model.Conversation, error) {
	s := c.session
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.reg.Get(c.convID)
	if !ok {
		return model.Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (c *Cycle) setState(state State, typing bool) {
	s := c.session
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.typing = typing
	s.publishLocked()
}

// apply handles one decoded event.
func (c *Cycle) apply(ev stream.Event) error {
	s := c.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.completed {
		return errStreamDone
	}

	var ret error
	switch e := ev.(type) {
	case stream.Start:
		if c.gotStart {
			s.logger.Debug("ignoring duplicate start event")
			return nil
		}
		c.gotStart = true
		_, _ = s.reg.SetRoom(c.convID, e.ConversationID, e.UserID)
		_ = s.reg.Touch(c.convID, true)

	case stream.Token:
		if e.Content == "" {
			return nil
		}
		if c.assistantMsgID == "" {
			c.createAssistantLocked(model.Message{Content: e.Content})
		} else {
			_, _ = s.reg.Update(c.convID, c.assistantMsgID, func(m *model.Message) {
				m.Content += e.Content
			})
		}
		_, _ = s.reg.Update(c.convID, c.assistantMsgID, func(m *model.Message) {
			if len(m.TourPackages) > 0 {
				return
			}
			if sel := extract.Selections(m.Content); len(sel) > 0 {
				m.Selections = sel
			}
		})
		_ = s.reg.Touch(c.convID, false)

	case stream.Recommendations:
		if c.assistantMsgID == "" {
			c.createAssistantLocked(model.Message{})
		}
		_, _ = s.reg.Update(c.convID, c.assistantMsgID, func(m *model.Message) {
			m.TourPackages = append([]model.TourPackage(nil), e.TourPackages...)
			m.Selections = nil
		})
		_ = s.reg.Touch(c.convID, false)

	case stream.Complete:
		if c.assistantMsgID == "" && e.FullResponse != "" {
			// Nothing was streamed incrementally, so the final text is all there is.
			c.createAssistantLocked(model.Message{Content: e.FullResponse})
		}
		c.completed = true
		_ = s.reg.Touch(c.convID, true)
		if c.assistantMsgID == "" {
			c.annotateErrorLocked(textEmptyResponse)
			ret = ErrEmptyResponse
			break
		}
		_, _ = s.reg.Update(c.convID, c.assistantMsgID, func(m *model.Message) {
			if len(e.Sources) > 0 {
				m.Sources = append([]model.Source(nil), e.Sources...)
			}
			m.Complete = true
		})
		ret = errStreamDone

	case stream.Error:
		msg := e.Message
		if msg == "" {
			msg = "unknown error"
		}
		c.annotateErrorLocked(msg)
		c.completed = true
		_ = s.reg.Touch(c.convID, true)
		ret = &StreamError{Message: msg}

	case stream.Unknown:
		return nil
	}

	s.publishLocked()
	return ret
}

// createAssistantLocked appends the assistant message and leaves the
// awaiting state.
func (c *Cycle) createAssistantLocked(msg model.Message) {
	s := c.session
	msg.ID = uuid.NewString()
	msg.Role = model.RoleAssistant
	msg.CreatedAt = s.now()
	_ = s.reg.Append(c.convID, msg)
	c.assistantMsgID = msg.ID
	s.typing = false
	if s.state == StateAwaitingFirstToken || s.state == StateSending {
		s.state = StateStreaming
	}
}

// annotateErrorLocked creates a failed assistant message or marks the
// existing one failed.
func (c *Cycle) annotateErrorLocked(text string) {
	s := c.session
	if c.assistantMsgID == "" {
		c.createAssistantLocked(model.Message{Content: text, IsError: true, Complete: true})
		return
	}
	_, _ = s.reg.Update(c.convID, c.assistantMsgID, func(m *model.Message) {
		if m.Content != "" {
			m.Content += "\n\n"
		}
		m.Content += "⚠ " + text
		m.IsError = true
		m.Complete = true
	})
}

// endOfStream settles a stream that ended cleanly, with or without a
// complete event.
func (c *Cycle) endOfStream() error {
	s := c.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.completed {
		return nil
	}
	c.completed = true
	defer s.publishLocked()

	if c.assistantMsgID == "" {
		c.annotateErrorLocked(textEmptyResponse)
		_ = s.reg.Touch(c.convID, true)
		return ErrEmptyResponse
	}
	_, _ = s.reg.Update(c.convID, c.assistantMsgID, func(m *model.Message) {
		m.Complete = true
	})
	_ = s.reg.Touch(c.convID, true)
	return nil
}

func (c *Cycle) failTransport() {
	s := c.session
	s.mu.Lock()
	defer s.mu.Unlock()
	c.annotateErrorLocked(textTransportFailure)
	c.completed = true
	_ = s.reg.Touch(c.convID, true)
	s.publishLocked()
}

// abandon settles a cycle cancelled by teardown. A partial reply is kept
// as it is and marked complete; no failure text is added. With restore the
// registry ordering and title roll back as for a failed room creation.
func (c *Cycle) abandon(restore bool) {
	s := c.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if restore {
		s.reg.Restore(c.snapshot)
	}
	if c.assistantMsgID != "" {
		_, _ = s.reg.Update(c.convID, c.assistantMsgID, func(m *model.Message) {
			m.Complete = true
		})
	}
	c.completed = true
	s.publishLocked()
}

// failRoom rolls back the tentative ordering and title, keeping the user's
// message next to an error reply.
func (c *Cycle) failRoom() {
	s := c.session
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.Restore(c.snapshot)
	c.annotateErrorLocked(textRoomFailure)
	c.completed = true
	s.publishLocked()
}

// finish returns the session to idle and reports the outcome.
func (c *Cycle) finish(ctx context.Context, err error) {
	s := c.session
	outcome := "complete"
	terminal := StateComplete
	if err != nil {
		outcome = "error"
		terminal = StateError
	}
	if errors.Is(err, context.Canceled) {
		outcome = "cancelled"
		terminal = StateIdle
	}
	dur := s.now().Sub(c.started)

	s.mu.Lock()
	s.state = terminal
	s.typing = false
	s.publishLocked()

	rec := c.recordLocked(outcome, err, dur)

	s.state = StateIdle
	s.cycle = nil
	s.publishLocked()
	s.mu.Unlock()

	metrics.RecordCycle(outcome, dur.Seconds())
	s.logger.Info("cycle finished",
		zap.String("conversation_id", c.convID),
		zap.String("room_id", rec.RoomID),
		zap.String("outcome", outcome),
		zap.Duration("duration", dur),
	)

	if s.opts.Turns != nil {
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.opts.Turns.RecordTurn(recCtx, rec); err != nil {
			metrics.TurnRecordsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("failed to record turn", zap.Error(err))
		} else {
			metrics.TurnRecordsTotal.WithLabelValues("ok").Inc()
		}
	}
}

func (c *Cycle) recordLocked(outcome string, err error, dur time.Duration) TurnRecord {
	s := c.session
	conv, _ := s.reg.Get(c.convID)
	rec := TurnRecord{
		UserID:         conv.UserID,
		RoomID:         conv.RoomID,
		ConversationID: c.convID,
		Outcome:        outcome,
		Prompt:         c.prompt,
		DurationMs:     dur.Milliseconds(),
		CompletedAt:    s.now(),
	}
	if rec.UserID == "" {
		rec.UserID = s.opts.UserID
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if c.assistantMsgID != "" {
		msgs, _ := s.reg.Messages(c.convID)
		for _, m := range msgs {
			if m.ID != c.assistantMsgID {
				continue
			}
			rec.Response = m.Content
			for _, p := range m.TourPackages {
				rec.TourPackageIDs = append(rec.TourPackageIDs, p.ID)
			}
		}
	}
	return rec
}

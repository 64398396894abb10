package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/tour-assistant/internal/assistant"
	"github.com/capitalize-ai/tour-assistant/pkg/logger"
)

const (
	// StreamName is the JetStream stream holding turn records.
	StreamName = "ASSISTANT_TURNS"

	// SubjectPrefix is the prefix for all turn subjects.
	SubjectPrefix = "assistant.turns"
)

// Publisher is the subset of JetStream used to publish turns.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// TurnPublisher records finished assistant cycles on JetStream.
type TurnPublisher struct {
	js     Publisher
	logger *logger.Logger
}

// NewTurnPublisher creates a publisher on top of a connected client.
func NewTurnPublisher(client *Client, log *logger.Logger) *TurnPublisher {
	return &TurnPublisher{js: client.JetStream(), logger: log.Named("turns")}
}

// EnsureStream creates the turns stream when it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Finished assistant turns for the back-office",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// TurnSubject returns the subject for a turn record.
func TurnSubject(rec assistant.TurnRecord) string {
	user := rec.UserID
	if user == "" {
		user = "anonymous"
	}
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, subjectToken(user), rec.Outcome)
}

// RecordTurn publishes a turn record.
func (p *TurnPublisher) RecordTurn(ctx context.Context, rec assistant.TurnRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	ack, err := p.js.Publish(ctx, TurnSubject(rec), data)
	if err != nil {
		return fmt.Errorf("failed to publish turn: %w", err)
	}

	p.logger.Debug("turn published",
		zap.String("room_id", rec.RoomID),
		zap.Uint64("sequence", ack.Sequence),
	)
	return nil
}

// subjectToken makes s safe to use as one subject token.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

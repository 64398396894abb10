package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/tour-assistant/internal/assistant"
	"github.com/capitalize-ai/tour-assistant/pkg/logger"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subject = subject
	f.data = data
	return &jetstream.PubAck{Stream: StreamName, Sequence: 42}, nil
}

func TestTurnSubject(t *testing.T) {
	tests := []struct {
		rec  assistant.TurnRecord
		want string
	}{
		{assistant.TurnRecord{UserID: "user-1", Outcome: "complete"}, "assistant.turns.user-1.complete"},
		{assistant.TurnRecord{UserID: "a.b*c", Outcome: "error"}, "assistant.turns.a_b_c.error"},
		{assistant.TurnRecord{Outcome: "cancelled"}, "assistant.turns.anonymous.cancelled"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TurnSubject(tt.rec))
	}
}

func TestRecordTurn(t *testing.T) {
	pub := &fakePublisher{}
	p := &TurnPublisher{js: pub, logger: logger.NewNop()}

	rec := assistant.TurnRecord{UserID: "user-1", RoomID: "room-1", Outcome: "complete", Prompt: "Đà Lạt", TourPackageIDs: []string{"t1"}}
	require.NoError(t, p.RecordTurn(context.Background(), rec))

	assert.Equal(t, "assistant.turns.user-1.complete", pub.subject)
	var got assistant.TurnRecord
	require.NoError(t, json.Unmarshal(pub.data, &got))
	assert.Equal(t, rec.RoomID, got.RoomID)
	assert.Equal(t, rec.TourPackageIDs, got.TourPackageIDs)
}

func TestRecordTurnPublishError(t *testing.T) {
	p := &TurnPublisher{js: &fakePublisher{err: errors.New("no responders")}, logger: logger.NewNop()}
	err := p.RecordTurn(context.Background(), assistant.TurnRecord{Outcome: "error"})
	assert.ErrorContains(t, err, "no responders")
}

package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/capitalize-ai/tour-assistant/internal/model"
	"github.com/capitalize-ai/tour-assistant/pkg/logger"
)

const sampleStream = "data: {\"type\":\"start\",\"conversation_id\":\"room-1\",\"user_id\":\"user-1\"}\n" +
	"data: {\"type\":\"token\",\"content\":\"Xin chào! \"}\n" +
	"data: {\"type\":\"token\",\"content\":\"**Đà Lạt Tour** 4,500,000 VNĐ\"}\n" +
	"\n" +
	"data: {\"type\":\"recommendations\",\"tour_packages\":[{\"id\":\"t1\",\"name\":\"Đà Lạt Tour\",\"price\":4500000}]}\n" +
	"data: {\"type\":\"complete\",\"full_response\":\"Xin chào!\",\"sources\":[{\"title\":\"catalog\"}]}\n"

func newTestDecoder(t *testing.T) *Decoder {
	return NewDecoder("", logger.Wrap(zaptest.NewLogger(t)))
}

func decodeChunks(t *testing.T, chunks [][]byte) []Event {
	d := newTestDecoder(t)
	var out []Event
	for _, c := range chunks {
		out = append(out, d.Feed(c)...)
	}
	d.Close()
	return out
}

func TestDecoderSingleBuffer(t *testing.T) {
	events := decodeChunks(t, [][]byte{[]byte(sampleStream)})

	require.Len(t, events, 5)
	assert.Equal(t, Start{ConversationID: "room-1", UserID: "user-1"}, events[0])
	assert.Equal(t, Token{Content: "Xin chào! "}, events[1])
	assert.Equal(t, Token{Content: "**Đà Lạt Tour** 4,500,000 VNĐ"}, events[2])
	assert.Equal(t, Recommendations{TourPackages: []model.TourPackage{{ID: "t1", Name: "Đà Lạt Tour", Price: 4500000}}}, events[3])
	assert.Equal(t, Complete{FullResponse: "Xin chào!", Sources: []model.Source{{Title: "catalog"}}}, events[4])
}

func TestDecoderFragmentation(t *testing.T) {
	want := decodeChunks(t, [][]byte{[]byte(sampleStream)})
	data := []byte(sampleStream)

	t.Run("every two-way split", func(t *testing.T) {
		for i := 0; i <= len(data); i++ {
			got := decodeChunks(t, [][]byte{data[:i], data[i:]})
			require.Equal(t, want, got, "split at byte %d", i)
		}
	})

	t.Run("byte at a time", func(t *testing.T) {
		chunks := make([][]byte, len(data))
		for i := range data {
			chunks[i] = data[i : i+1]
		}
		assert.Equal(t, want, decodeChunks(t, chunks))
	})

	t.Run("random splits", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		for round := 0; round < 200; round++ {
			var chunks [][]byte
			rest := data
			for len(rest) > 0 {
				n := rng.Intn(len(rest)) + 1
				chunks = append(chunks, rest[:n])
				rest = rest[n:]
			}
			require.Equal(t, want, decodeChunks(t, chunks), "round %d", round)
		}
	})
}

func TestDecoderDropsMalformedLines(t *testing.T) {
	input := "data: {\"type\":\"token\",\"content\":\"a\"}\n" +
		"data: {not json\n" +
		"data: {\"type\":\"token\",\"content\":\"b\"}\n"

	events := decodeChunks(t, [][]byte{[]byte(input)})
	assert.Equal(t, []Event{Token{Content: "a"}, Token{Content: "b"}}, events)
}

func TestDecoderIgnoresForeignLines(t *testing.T) {
	input := ": keep-alive\n" +
		"event: token\n" +
		"data: \n" +
		"data: {\"type\":\"token\",\"content\":\"x\"}\r\n"

	events := decodeChunks(t, [][]byte{[]byte(input)})
	assert.Equal(t, []Event{Token{Content: "x"}}, events)
}

func TestDecoderUnknownType(t *testing.T) {
	events := decodeChunks(t, [][]byte{[]byte("data: {\"type\":\"ping\"}\n")})

	require.Len(t, events, 1)
	assert.Equal(t, Unknown{Tag: "ping"}, events[0])
	assert.Equal(t, EventType("ping"), events[0].Type())
}

func TestDecoderCustomPrefix(t *testing.T) {
	d := NewDecoder("frame> ", logger.NewNop())
	events := d.Feed([]byte("data: {\"type\":\"token\",\"content\":\"no\"}\nframe> {\"type\":\"token\",\"content\":\"yes\"}\n"))
	assert.Equal(t, []Event{Token{Content: "yes"}}, events)
}

func TestDecoderCloseDiscardsPartialFrame(t *testing.T) {
	d := newTestDecoder(t)
	events := d.Feed([]byte("data: {\"type\":\"token\",\"content\":\"a\"}\ndata: {\"type\":\"tok"))
	assert.Len(t, events, 1)

	assert.Equal(t, len("data: {\"type\":\"tok"), d.Close())
	assert.Empty(t, d.Feed([]byte("en\"}\n")))
}

func TestDecoderOversizedLine(t *testing.T) {
	d := newTestDecoder(t)
	big := "data: {\"type\":\"token\",\"content\":\"" + strings.Repeat("x", MaxLineSize) + "\"}\n"

	assert.Empty(t, d.Feed([]byte(big[:MaxLineSize+10])))
	events := d.Feed([]byte(big[MaxLineSize+10:] + "data: {\"type\":\"token\",\"content\":\"after\"}\n"))
	assert.Equal(t, []Event{Token{Content: "after"}}, events)
}

func TestPump(t *testing.T) {
	t.Run("clean eof", func(t *testing.T) {
		d := newTestDecoder(t)
		var got []Event
		err := d.Pump(context.Background(), iotest.OneByteReader(strings.NewReader(sampleStream)), func(ev Event) error {
			got = append(got, ev)
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})

	t.Run("read failure after data", func(t *testing.T) {
		d := newTestDecoder(t)
		boom := errors.New("connection reset")
		r := io.MultiReader(strings.NewReader("data: {\"type\":\"token\",\"content\":\"a\"}\n"), iotest.ErrReader(boom))

		var got []Event
		err := d.Pump(context.Background(), r, func(ev Event) error {
			got = append(got, ev)
			return nil
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []Event{Token{Content: "a"}}, got)
	})

	t.Run("callback error stops", func(t *testing.T) {
		d := newTestDecoder(t)
		stop := errors.New("stop")
		calls := 0
		err := d.Pump(context.Background(), strings.NewReader(sampleStream), func(Event) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := newTestDecoder(t).Pump(ctx, strings.NewReader(sampleStream), func(Event) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEncoderOutputDecodes(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, "")

	in := []Event{
		Start{ConversationID: "r", UserID: "u"},
		Token{Content: "line one\nline two"},
		Error{Message: "agent unavailable"},
	}
	for _, ev := range in {
		require.NoError(t, enc.Encode(ev))
	}

	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
	assert.Equal(t, in, decodeChunks(t, [][]byte{buf.Bytes()}))
}

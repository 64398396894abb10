package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/capitalize-ai/tour-assistant/pkg/logger"
	"github.com/capitalize-ai/tour-assistant/pkg/metrics"
)

// MaxLineSize bounds the carry-over buffer. A line that grows past it is
// discarded up to the next newline.
const MaxLineSize = 1 << 20

// Decoder turns chunks of a byte stream into events. It buffers a trailing
// partial line between calls to Feed, so frames may be split anywhere.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	prefix   []byte
	buf      []byte
	skipping bool
	logger   *logger.Logger
}

// NewDecoder creates a decoder. An empty prefix selects DefaultPrefix.
func NewDecoder(prefix string, log *logger.Logger) *Decoder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Decoder{
		prefix: []byte(prefix),
		logger: log,
	}
}

// Feed appends chunk to the carry-over buffer and returns every event whose
// line is now complete, in line order.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)

	var events []Event
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		line := d.buf[start : start+i]
		start += i + 1

		if d.skipping {
			d.skipping = false
			continue
		}
		if ev, ok := d.parseLine(line); ok {
			events = append(events, ev)
		}
	}

	d.buf = d.buf[:copy(d.buf, d.buf[start:])]

	if len(d.buf) > MaxLineSize {
		d.logger.Warn("discarding oversized frame line", zap.Int("bytes", len(d.buf)))
		metrics.RecordDroppedFrame()
		d.buf = d.buf[:0]
		d.skipping = true
	}

	return events
}

// Close discards any incomplete trailing line. It reports how many bytes
// were dropped.
func (d *Decoder) Close() int {
	n := len(d.buf)
	if n > 0 {
		d.logger.Debug("discarding partial frame at end of stream", zap.Int("bytes", n))
	}
	d.buf = nil
	d.skipping = false
	return n
}

func (d *Decoder) parseLine(line []byte) (Event, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if !bytes.HasPrefix(line, d.prefix) {
		return nil, false
	}
	payload := bytes.TrimSpace(line[len(d.prefix):])
	if len(payload) == 0 {
		return nil, false
	}

	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		d.logger.Debug("dropping malformed frame",
			zap.Error(err),
			zap.ByteString("payload", truncate(payload, 256)),
		)
		metrics.RecordDroppedFrame()
		return nil, false
	}

	ev := f.event()
	if _, unknown := ev.(Unknown); unknown {
		d.logger.Debug("ignoring frame with unknown type", zap.String("type", string(f.Type)))
		metrics.RecordFrame("unknown")
	} else {
		metrics.RecordFrame(string(f.Type))
	}
	return ev, true
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

// Pump reads r until EOF, feeding every chunk to d and handing each decoded
// event to fn in order. It returns nil on a clean EOF, the read error on a
// transport failure, or the first error returned by fn. The carry-over is
// discarded before returning.
func (d *Decoder) Pump(ctx context.Context, r io.Reader, fn func(Event) error) error {
	defer d.Close()

	chunk := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(chunk)
		if n > 0 {
			for _, ev := range d.Feed(chunk[:n]) {
				if err := fn(ev); err != nil {
					return err
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

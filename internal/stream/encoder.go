package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Encoder writes events as prefixed JSON lines. When the underlying writer
// is an http.Flusher each frame is flushed as soon as it is written.
type Encoder struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	prefix  string
}

// NewEncoder creates an encoder. An empty prefix selects DefaultPrefix.
func NewEncoder(w io.Writer, prefix string) *Encoder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	flusher, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: flusher, prefix: prefix}
}

// Encode writes one frame.
func (e *Encoder) Encode(ev Event) error {
	data, err := json.Marshal(toFrame(ev))
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", ev.Type(), err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := fmt.Fprintf(e.w, "%s%s\n", e.prefix, data); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

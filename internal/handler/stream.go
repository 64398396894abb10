package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/tour-assistant/internal/middleware"
	"github.com/capitalize-ai/tour-assistant/pkg/metrics"
)

// HeartbeatEvent keeps idle SSE connections open through proxies.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Events handles GET /api/v1/assistant/events
// Each session change is sent as a "snapshot" event. Snapshots coalesce, so
// a slow client only sees the latest state.
func (h *AssistantHandler) Events(w http.ResponseWriter, r *http.Request) {
	s, ctx := h.session(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	snapshots, cancel := s.Subscribe()
	defer cancel()

	log := h.logger.WithContext(middleware.GetCorrelationID(ctx), middleware.GetUserID(ctx))
	log.Debug("SSE client connected")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return

		case snap, ok := <-snapshots:
			if !ok {
				// Session closed by the idle sweep.
				sendSSEEvent(w, flusher, "closed", map[string]bool{"closed": true})
				return
			}
			if err := sendSSEEvent(w, flusher, "snapshot", snap); err != nil {
				log.Debug("SSE write failed", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/tour-assistant/internal/assistant"
	"github.com/capitalize-ai/tour-assistant/internal/middleware"
)

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// KeyDownRequest is the body of POST /keydown.
type KeyDownRequest struct {
	assistant.KeyEvent
	Draft string `json:"draft"`
}

// SendMessageResponse acknowledges a started cycle.
type SendMessageResponse struct {
	ConversationID string `json:"conversation_id"`
}

// SendMessage handles POST /api/v1/assistant/messages
// The cycle runs in the background; progress is visible on /events.
func (h *AssistantHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.submit(w, r, req.Text)
}

// KeyDown handles POST /api/v1/assistant/keydown
// Enter without Shift submits the draft; any other key is a no-op.
func (h *AssistantHandler) KeyDown(w http.ResponseWriter, r *http.Request) {
	var req KeyDownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Submits() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.submit(w, r, req.Draft)
}

func (h *AssistantHandler) submit(w http.ResponseWriter, r *http.Request, text string) {
	if err := middleware.ValidateMessageText(text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, ctx := h.session(r)
	cycle, err := s.Start(text)
	if errors.Is(err, assistant.ErrEmptyMessage) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}

	// The cycle outlives the request but keeps its values (token, trace).
	go h.run(context.WithoutCancel(ctx), cycle)

	writeJSON(w, http.StatusAccepted, &SendMessageResponse{
		ConversationID: cycle.ConversationID(),
	})
}

func (h *AssistantHandler) run(ctx context.Context, cycle *assistant.Cycle) {
	if err := cycle.Run(ctx); err != nil {
		h.logger.Debug("cycle ended with error",
			zap.String("conversation_id", cycle.ConversationID()),
			zap.Error(err),
		)
	}
}

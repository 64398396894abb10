// Package handler provides HTTP handlers for the assistant API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/tour-assistant/internal/agent"
	"github.com/capitalize-ai/tour-assistant/internal/assistant"
	"github.com/capitalize-ai/tour-assistant/internal/middleware"
	"github.com/capitalize-ai/tour-assistant/pkg/logger"
)

// AssistantHandler exposes a user's assistant session over HTTP.
type AssistantHandler struct {
	sessions  *assistant.Manager
	logger    *logger.Logger
	heartbeat time.Duration
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(sessions *assistant.Manager, log *logger.Logger) *AssistantHandler {
	return &AssistantHandler{
		sessions:  sessions,
		logger:    log,
		heartbeat: 30 * time.Second,
	}
}

// Routes returns the assistant router. It expects middleware.Auth upstream.
func (h *AssistantHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/state", h.State)
	r.Get("/events", h.Events)
	r.Post("/messages", h.SendMessage)
	r.Post("/keydown", h.KeyDown)
	r.Post("/alert/dismiss", h.DismissAlert)

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", h.ListConversations)
		r.Post("/", h.CreateConversation)

		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", h.DeleteConversation)
			r.Post("/select", h.SelectConversation)
			r.Get("/messages", h.ConversationMessages)
		})
	})
	return r
}

// session returns the caller's session and a context that forwards the
// caller's bearer token to the agent.
func (h *AssistantHandler) session(r *http.Request) (*assistant.Session, context.Context) {
	ctx := r.Context()
	ctx = agent.WithToken(ctx, middleware.GetToken(ctx))
	return h.sessions.Get(ctx, middleware.GetUserID(ctx)), ctx
}

// State handles GET /api/v1/assistant/state
func (h *AssistantHandler) State(w http.ResponseWriter, r *http.Request) {
	s, _ := h.session(r)
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// DismissAlert handles POST /api/v1/assistant/alert/dismiss
func (h *AssistantHandler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	s, _ := h.session(r)
	s.DismissAlert()
	w.WriteHeader(http.StatusNoContent)
}

// writeSessionError maps session errors to responses. Failures the session
// already surfaced as an alert are reported as a bad gateway.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assistant.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, assistant.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, assistant.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadGateway, "agent request failed")
	}
}

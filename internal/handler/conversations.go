package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/tour-assistant/internal/middleware"
)

// ListConversations handles GET /api/v1/assistant/conversations
func (h *AssistantHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	s, _ := h.session(r)
	snap := s.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": snap.Conversations,
		"active_id":     snap.ActiveID,
	})
}

// CreateConversation handles POST /api/v1/assistant/conversations
func (h *AssistantHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	s, _ := h.session(r)
	conv, err := s.StartNewConversation()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// SelectConversation handles POST /api/v1/assistant/conversations/{id}/select
func (h *AssistantHandler) SelectConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, ctx := h.session(r)
	if err := s.SelectConversation(ctx, id); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// ConversationMessages handles GET /api/v1/assistant/conversations/{id}/messages
func (h *AssistantHandler) ConversationMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, _ := h.session(r)
	msgs, err := s.Messages(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": msgs,
	})
}

// DeleteConversation handles DELETE /api/v1/assistant/conversations/{id}
func (h *AssistantHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, ctx := h.session(r)
	if err := s.DeleteConversation(ctx, id); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

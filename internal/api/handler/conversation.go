package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rrens/agent-platform/internal/api/response"
	"github.com/Rrens/agent-platform/internal/domain"
	"github.com/Rrens/agent-platform/internal/service"
)

// ConversationHandler exposes conversation sessions by app, user and id
type ConversationHandler struct {
	conversationService *service.ConversationService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversationService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

type createConversationRequest struct {
	State map[string]any `json:"state,omitempty"`
}

func conversationKey(r *http.Request) domain.ConversationKey {
	return domain.ConversationKey{
		AppName:   chi.URLParam(r, "app_name"),
		UserID:    chi.URLParam(r, "user_id"),
		SessionID: chi.URLParam(r, "session_id"),
	}
}

// Get returns a conversation
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversationService.Get(r.Context(), conversationKey(r))
	if err != nil {
		writeServiceError(w, r, err, "failed to get session")
		return
	}
	response.OK(w, conv)
}

// List returns the conversations of one user of an app
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	convs, err := h.conversationService.List(r.Context(), chi.URLParam(r, "app_name"), chi.URLParam(r, "user_id"))
	if err != nil {
		writeServiceError(w, r, err, "failed to list sessions")
		return
	}
	response.OK(w, convs)
}

// Create creates a conversation with the id taken from the path, or a
// generated one on the collection route
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	conv, err := h.conversationService.Create(r.Context(), conversationKey(r), req.State)
	if err != nil {
		writeServiceError(w, r, err, "failed to create session")
		return
	}
	response.OK(w, conv)
}

// Delete removes a conversation; deleting a missing one succeeds
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := conversationKey(r)
	if err := h.conversationService.Delete(r.Context(), key); err != nil {
		writeServiceError(w, r, err, "failed to delete session")
		return
	}
	response.OK(w, map[string]string{"message": fmt.Sprintf("Session '%s' deleted", key.SessionID)})
}

package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Rrens/agent-platform/internal/api/middleware"
	"github.com/Rrens/agent-platform/internal/api/response"
	"github.com/Rrens/agent-platform/internal/domain"
	"github.com/Rrens/agent-platform/internal/service"
)

// PlatformHandler handles application and platform session endpoints
type PlatformHandler struct {
	platformService *service.PlatformService
}

// NewPlatformHandler creates a new platform handler
func NewPlatformHandler(platformService *service.PlatformService) *PlatformHandler {
	return &PlatformHandler{platformService: platformService}
}

// ListApps returns every application with per-type counts
func (h *PlatformHandler) ListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := h.platformService.ListApps(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to list applications")
		return
	}

	response.OK(w, domain.AppList{
		Apps:       apps,
		TotalCount: len(apps),
		Categories: service.CountByType(apps),
	})
}

// GetApp returns one application
func (h *PlatformHandler) GetApp(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app_name")

	app, err := h.platformService.GetApp(r.Context(), name)
	if err != nil {
		writeServiceError(w, r, err, "failed to get application")
		return
	}
	if app == nil {
		response.NotFound(w, fmt.Sprintf("Application '%s' not found", name))
		return
	}

	response.OK(w, app)
}

// Launch starts a new session of an application
func (h *PlatformHandler) Launch(w http.ResponseWriter, r *http.Request) {
	var req domain.LaunchRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if !validateInput(w, req) {
		return
	}

	// an authenticated caller launches as themselves unless they name a user
	if req.UserID == "" {
		if userID, ok := middleware.GetUserID(r.Context()); ok {
			req.UserID = userID
		}
	}

	result, err := h.platformService.Launch(r.Context(), chi.URLParam(r, "app_name"), req)
	if err != nil {
		writeServiceError(w, r, err, "failed to launch application")
		return
	}

	response.OK(w, result)
}

// GetSession returns one platform session
func (h *PlatformHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	session, ok := h.platformService.GetSession(r.Context(), sessionID)
	if !ok {
		response.NotFound(w, fmt.Sprintf("Session '%s' not found", sessionID))
		return
	}

	response.OK(w, session)
}

// UpdateSession applies a partial update to a platform session
func (h *PlatformHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var upd domain.SessionUpdate
	if err := decodeOptionalJSON(r, &upd); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if !validateInput(w, upd) {
		return
	}

	session, err := h.platformService.UpdateSession(r.Context(), chi.URLParam(r, "session_id"), upd)
	if err != nil {
		writeServiceError(w, r, err, "failed to update session")
		return
	}

	response.OK(w, session)
}

// ListSessions filters and paginates platform sessions
func (h *PlatformHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.SessionFilter{
		AppName: q.Get("app_name"),
		UserID:  q.Get("user_id"),
	}
	if s := q.Get("status"); s != "" {
		status := domain.SessionStatus(s)
		filter.Status = &status
	}

	var err error
	if filter.Page, err = optionalInt(q.Get("page")); err != nil {
		response.BadRequest(w, map[string]string{"page": "must be an integer"})
		return
	}
	if filter.PageSize, err = optionalInt(q.Get("page_size")); err != nil {
		response.BadRequest(w, map[string]string{"page_size": "must be an integer"})
		return
	}
	if !validateInput(w, filter) {
		return
	}

	list, err := h.platformService.ListSessions(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err, "failed to list sessions")
		return
	}

	response.OK(w, list)
}

// DeleteSession removes a platform session and its conversation
func (h *PlatformHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	if !h.platformService.DeleteSession(r.Context(), sessionID) {
		response.NotFound(w, fmt.Sprintf("Session '%s' not found", sessionID))
		return
	}

	response.OK(w, map[string]string{"message": fmt.Sprintf("Session '%s' deleted", sessionID)})
}

// Cleanup sweeps expired sessions
func (h *PlatformHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	deleted := h.platformService.CleanupExpired(r.Context())

	response.OK(w, map[string]any{
		"deletedCount": deleted,
		"message":      fmt.Sprintf("Cleaned up %d expired sessions", deleted),
	})
}

func optionalInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

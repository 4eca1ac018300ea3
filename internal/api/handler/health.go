package handler

import (
	"net/http"
	"time"

	"github.com/Rrens/agent-platform/internal/api/response"
	"github.com/Rrens/agent-platform/internal/domain"
)

// HealthHandler serves liveness, readiness and the raw agent listing
type HealthHandler struct {
	version   string
	startedAt time.Time
	store     domain.ConversationStore
	catalog   domain.AgentCatalog
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, store domain.ConversationStore, catalog domain.AgentCatalog) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startedAt: time.Now(),
		store:     store,
		catalog:   catalog,
	}
}

// Health returns a simple health check response
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Ready reports whether the conversation store backend is reachable
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.store.(domain.Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			response.ServiceUnavailable(w, "conversation store not ready")
			return
		}
	}

	response.OK(w, map[string]string{
		"status": "ready",
	})
}

// ListAgents returns the agent names known to the catalog
func (h *HealthHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	names, err := h.catalog.ListAgentNames(r.Context())
	if err != nil {
		writeServiceError(w, r, domain.NewCollaboratorError("catalog.list", err), "failed to list agents")
		return
	}
	response.OK(w, names)
}

// Package handlers implements the HTTP handlers for the canvas-agent
// server. Handlers receive their dependencies explicitly; there is no
// global state.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/agent"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/cache"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/memory"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/registry"
	"github.com/datacanvas/datacanvas/canvas-agent/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Agent    *agent.Agent
	Registry *registry.Registry
	Memory   *memory.Store
	Cache    *cache.Cache
	Version  string
}

func New(a *agent.Agent, reg *registry.Registry, mem *memory.Store, c *cache.Cache, version string) *Handlers {
	return &Handlers{
		Agent:    a,
		Registry: reg,
		Memory:   mem,
		Cache:    c,
		Version:  version,
	}
}

// Query runs one agent invocation for a user message.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	text, widgetList := h.Agent.Run(r.Context(), req.SessionID, req.Message)

	log.Info().
		Str("session", req.SessionID).
		Int("widgets", len(widgetList)).
		Msg("query handled")

	respondJSON(w, http.StatusOK, models.QueryResponse{
		Message: text,
		Widgets: widgetList,
	})
}

// SessionHistory returns a session's remembered turns, oldest first.
func (h *Handlers) SessionHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	history, err := h.Memory.History(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, models.SessionHistoryResponse{
		SessionID: sessionID,
		History:   history,
	})
}

// ClearSession drops a session's history.
func (h *Handlers) ClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.Memory.Clear(r.Context(), sessionID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared", "session_id": sessionID})
}

// Health reports service status and the indexed endpoint count.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"service":           "canvas-agent",
		"indexed_endpoints": h.Registry.Count(),
		"cache_connected":   h.Cache.Connected(),
	})
}

// VersionInfo reports the running version.
func (h *Handlers) VersionInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
		"service": "canvas-agent",
	})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

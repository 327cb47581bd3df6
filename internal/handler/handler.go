// Package handler exposes the HTTP and websocket API.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"netviz/internal/hub"
	"netviz/internal/reconciler"
	"netviz/internal/repository"
	"netviz/internal/service"
)

// GraphHandler handles graph API requests
type GraphHandler struct {
	svc          *service.GraphService
	hub          *hub.Hub
	metricsCache *reconciler.MetricsCache
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(svc *service.GraphService, h *hub.Hub) *GraphHandler {
	return &GraphHandler{svc: svc, hub: h}
}

// SetMetricsCache wires the reconciler's snapshot cache into the
// inspection endpoint
func (h *GraphHandler) SetMetricsCache(c *reconciler.MetricsCache) {
	h.metricsCache = c
}

// Register attaches all API routes to the mux
func (h *GraphHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/graph", h.GetGraph)

	mux.HandleFunc("GET /api/nodes", h.ListNodes)
	mux.HandleFunc("POST /api/nodes", h.CreateNode)
	mux.HandleFunc("GET /api/nodes/{id}", h.GetNode)
	mux.HandleFunc("PUT /api/nodes/{id}", h.UpdateNode)
	mux.HandleFunc("DELETE /api/nodes/{id}", h.DeleteNode)

	mux.HandleFunc("GET /api/edges", h.ListEdges)
	mux.HandleFunc("POST /api/edges", h.CreateEdge)
	mux.HandleFunc("GET /api/edges/{id}", h.GetEdge)
	mux.HandleFunc("PUT /api/edges/{id}", h.UpdateEdge)
	mux.HandleFunc("DELETE /api/edges/{id}", h.DeleteEdge)

	mux.HandleFunc("GET /api/export/{format}", h.ExportGraph)
	mux.HandleFunc("POST /api/import/{format}", h.ImportGraph)

	mux.HandleFunc("GET /api/stats", h.GetStats)
	mux.HandleFunc("GET /api/audit", h.ListAudit)
	mux.HandleFunc("GET /api/metrics-cache", h.GetMetricsCache)

	mux.HandleFunc("GET /api/ws/{session_id}", h.HandleWebSocket)
}

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *GraphHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *GraphHandler) writeError(w http.ResponseWriter, msg, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg,
		Details: details,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// writeServiceError maps service and storage failures onto HTTP codes
func (h *GraphHandler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
	case errors.Is(err, repository.ErrNameConflict), errors.Is(err, repository.ErrDuplicateID):
		h.writeError(w, "Conflict", err.Error(), http.StatusConflict)
	case errors.Is(err, repository.ErrEndpointMissing):
		h.writeError(w, "Invalid reference", err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrInvalidInput):
		h.writeError(w, "Invalid input", err.Error(), http.StatusBadRequest)
	default:
		log.Printf("%s: %v", msg, err)
		h.writeError(w, msg, err.Error(), http.StatusInternalServerError)
	}
}

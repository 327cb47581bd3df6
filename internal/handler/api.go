package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"netviz/internal/domain"
	"netviz/internal/service"
)

// ============================================================================
// Graph Reads
// ============================================================================

// GetGraph returns the full graph. ?reload=true bypasses the projection
// cache and reloads from the store.
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	reload := r.URL.Query().Get("reload") == "true"

	g, err := h.svc.GetGraph(r.Context(), reload)
	if err != nil {
		h.writeServiceError(w, "Failed to load graph", err)
		return
	}

	h.writeJSON(w, map[string]any{
		"nodes":        g.NodeList(),
		"edges":        g.EdgeList(),
		"last_updated": g.LastUpdated,
	}, http.StatusOK)
}

// GetStats returns node and edge counts broken down by status
func (h *GraphHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetStats(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to compute stats", err)
		return
	}
	h.writeJSON(w, stats, http.StatusOK)
}

// ListAudit returns recent audit entries, newest first. ?limit= caps the
// page size.
func (h *GraphHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, "Invalid limit", "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.svc.ListAudit(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "Failed to list audit log", err)
		return
	}
	h.writeJSON(w, map[string]any{"entries": entries, "count": len(entries)}, http.StatusOK)
}

// GetMetricsCache exposes the reconciler's last observation snapshot
func (h *GraphHandler) GetMetricsCache(w http.ResponseWriter, r *http.Request) {
	if h.metricsCache == nil {
		h.writeError(w, "Metrics cache unavailable", "no collector is configured", http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, h.metricsCache.Info(), http.StatusOK)
}

// ============================================================================
// Nodes
// ============================================================================

type nodeRequest struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Type     string           `json:"type"`
	Address  string           `json:"address"`
	Status   string           `json:"status"`
	Layer    string           `json:"layer"`
	Position *domain.Position `json:"position"`
	Metadata map[string]any   `json:"metadata"`
}

// nodeUpdateRequest distinguishes absent fields from empty ones
type nodeUpdateRequest struct {
	Name     *string          `json:"name"`
	Type     *string          `json:"type"`
	Address  *string          `json:"address"`
	Status   *string          `json:"status"`
	Layer    *string          `json:"layer"`
	Position *domain.Position `json:"position"`
	Metadata map[string]any   `json:"metadata"`
}

// ListNodes returns all nodes sorted by name
func (h *GraphHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.GetGraph(r.Context(), false)
	if err != nil {
		h.writeServiceError(w, "Failed to load graph", err)
		return
	}
	h.writeJSON(w, g.NodeList(), http.StatusOK)
}

// GetNode returns a single node by ID
func (h *GraphHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.GetGraph(r.Context(), false)
	if err != nil {
		h.writeServiceError(w, "Failed to load graph", err)
		return
	}

	node, ok := g.Nodes[r.PathValue("id")]
	if !ok {
		h.writeError(w, "Not found", "no such node", http.StatusNotFound)
		return
	}
	h.writeJSON(w, node, http.StatusOK)
}

// CreateNode creates a new node from the request body
func (h *GraphHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	node, err := h.svc.CreateNode(r.Context(), service.NodeInput{
		ID:       req.ID,
		Name:     req.Name,
		Type:     req.Type,
		Address:  req.Address,
		Status:   req.Status,
		Layer:    req.Layer,
		Position: req.Position,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create node", err)
		return
	}
	h.writeJSON(w, node, http.StatusCreated)
}

// UpdateNode applies a partial update to a node
func (h *GraphHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req nodeUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	node, err := h.svc.UpdateNode(r.Context(), r.PathValue("id"), service.NodeUpdate{
		Name:     req.Name,
		Type:     req.Type,
		Address:  req.Address,
		Status:   req.Status,
		Layer:    req.Layer,
		Position: req.Position,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to update node", err)
		return
	}
	h.writeJSON(w, node, http.StatusOK)
}

// DeleteNode removes a node and its edges. Deleting a node that does not
// exist reports deleted=false rather than an error.
func (h *GraphHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := h.svc.DeleteNode(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to delete node", err)
		return
	}
	h.writeJSON(w, map[string]any{"id": id, "deleted": deleted}, http.StatusOK)
}

// ============================================================================
// Edges
// ============================================================================

type edgeRequest struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"source"`
	TargetID    string         `json:"target"`
	Type        string         `json:"type"`
	Bandwidth   string         `json:"bandwidth"`
	Utilization float64        `json:"utilization"`
	Status      string         `json:"status"`
	Metadata    map[string]any `json:"metadata"`
}

type edgeUpdateRequest struct {
	Type        *string        `json:"type"`
	Bandwidth   *string        `json:"bandwidth"`
	Utilization *float64       `json:"utilization"`
	Status      *string        `json:"status"`
	Metadata    map[string]any `json:"metadata"`
}

// ListEdges returns all edges sorted by ID
func (h *GraphHandler) ListEdges(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.GetGraph(r.Context(), false)
	if err != nil {
		h.writeServiceError(w, "Failed to load graph", err)
		return
	}
	h.writeJSON(w, g.EdgeList(), http.StatusOK)
}

// GetEdge returns a single edge by ID
func (h *GraphHandler) GetEdge(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.GetGraph(r.Context(), false)
	if err != nil {
		h.writeServiceError(w, "Failed to load graph", err)
		return
	}

	edge, ok := g.Edges[r.PathValue("id")]
	if !ok {
		h.writeError(w, "Not found", "no such edge", http.StatusNotFound)
		return
	}
	h.writeJSON(w, edge, http.StatusOK)
}

// CreateEdge creates a new edge between two existing nodes
func (h *GraphHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var req edgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	edge, err := h.svc.CreateEdge(r.Context(), service.EdgeInput{
		ID:          req.ID,
		SourceID:    req.SourceID,
		TargetID:    req.TargetID,
		Type:        req.Type,
		Bandwidth:   req.Bandwidth,
		Utilization: req.Utilization,
		Status:      req.Status,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create edge", err)
		return
	}
	h.writeJSON(w, edge, http.StatusCreated)
}

// UpdateEdge applies a partial update to an edge. Endpoints are
// immutable.
func (h *GraphHandler) UpdateEdge(w http.ResponseWriter, r *http.Request) {
	var req edgeUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	edge, err := h.svc.UpdateEdge(r.Context(), r.PathValue("id"), service.EdgeUpdate{
		Type:        req.Type,
		Bandwidth:   req.Bandwidth,
		Utilization: req.Utilization,
		Status:      req.Status,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to update edge", err)
		return
	}
	h.writeJSON(w, edge, http.StatusOK)
}

// DeleteEdge removes an edge, reporting deleted=false when absent
func (h *GraphHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := h.svc.DeleteEdge(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to delete edge", err)
		return
	}
	h.writeJSON(w, map[string]any{"id": id, "deleted": deleted}, http.StatusOK)
}

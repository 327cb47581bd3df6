package handler

import (
	"log"
	"net/http"

	"netviz/internal/codec"
)

// ExportGraph writes the current graph in the requested format
func (h *GraphHandler) ExportGraph(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ByFormat(r.PathValue("format"))
	if err != nil {
		h.writeError(w, "Unknown export format", err.Error(), http.StatusBadRequest)
		return
	}

	g, err := h.svc.GetGraph(r.Context(), false)
	if err != nil {
		h.writeServiceError(w, "Failed to load graph", err)
		return
	}

	doc := &codec.Document{Nodes: g.NodeList(), Edges: g.EdgeList()}
	w.Header().Set("Content-Type", codec.ContentType(c))
	if err := c.Export(doc, w); err != nil {
		// Headers are already gone; all we can do is log
		log.Printf("Failed to export graph as %s: %v", c.Format(), err)
	}
}

// ImportGraph parses the request body in the requested format and
// upserts its nodes and edges
func (h *GraphHandler) ImportGraph(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ByFormat(r.PathValue("format"))
	if err != nil {
		h.writeError(w, "Unknown import format", err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := c.Parse(r.Body)
	if err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.svc.ImportGraph(r.Context(), doc.Nodes, doc.Edges)
	if err != nil {
		h.writeServiceError(w, "Failed to import graph", err)
		return
	}
	h.writeJSON(w, result, http.StatusOK)
}

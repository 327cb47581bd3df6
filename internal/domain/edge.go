package domain

import "time"

// EdgeStatus represents the operational status of a link
type EdgeStatus string

const (
	EdgeStatusActive   EdgeStatus = "active"
	EdgeStatusInactive EdgeStatus = "inactive"
	EdgeStatusError    EdgeStatus = "error"
	EdgeStatusUnknown  EdgeStatus = "unknown"
)

// Common edge types
const (
	EdgeTypeEthernet = "ethernet"
	EdgeTypeFiber    = "fiber"
	EdgeTypeWireless = "wireless"
	EdgeTypeVPN      = "vpn"
)

// Edge represents a link between two nodes
type Edge struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"source"`
	TargetID    string         `json:"target"`
	Type        string         `json:"type"`
	Bandwidth   string         `json:"bandwidth,omitempty"`
	Utilization float64        `json:"utilization"`
	Status      EdgeStatus     `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	LastUpdated time.Time      `json:"last_updated"`
}

// NewEdge creates an edge with defaults applied
func NewEdge(id, sourceID, targetID string) *Edge {
	return &Edge{
		ID:          id,
		SourceID:    sourceID,
		TargetID:    targetID,
		Type:        EdgeTypeEthernet,
		Status:      EdgeStatusUnknown,
		Metadata:    make(map[string]any),
		LastUpdated: time.Now(),
	}
}

// Touches reports whether the edge references the node as either endpoint
func (e *Edge) Touches(nodeID string) bool {
	return e.SourceID == nodeID || e.TargetID == nodeID
}

// Clone returns a deep copy of the edge
func (e *Edge) Clone() *Edge {
	c := *e
	c.Metadata = make(map[string]any, len(e.Metadata))
	for k, v := range e.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

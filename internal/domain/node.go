package domain

import "time"

// NodeStatus represents the operational status of a node
type NodeStatus string

const (
	NodeStatusOnline      NodeStatus = "online"
	NodeStatusOffline     NodeStatus = "offline"
	NodeStatusWarning     NodeStatus = "warning"
	NodeStatusError       NodeStatus = "error"
	NodeStatusMaintenance NodeStatus = "maintenance"
	NodeStatusUnknown     NodeStatus = "unknown"
)

// Common node types. The type column is free-form so topology rules can
// introduce their own values; these are the ones the reconciler emits.
const (
	NodeTypeHost      = "host"
	NodeTypeContainer = "container"
	NodeTypeRouter    = "router"
	NodeTypeSwitch    = "switch"
	NodeTypeServer    = "server"
	NodeTypeClient    = "client"
)

// Node layers
const (
	LayerInfrastructure = "infrastructure"
	LayerNetwork        = "network"
)

// Position is a 2D layout position for rendering
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node represents a network entity in the graph
type Node struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Address     string         `json:"address,omitempty"`
	Status      NodeStatus     `json:"status"`
	Layer       string         `json:"layer"`
	Position    Position       `json:"position"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	LastUpdated time.Time      `json:"last_updated"`
}

// NewNode creates a node with defaults applied
func NewNode(id, name, nodeType string) *Node {
	return &Node{
		ID:          id,
		Name:        name,
		Type:        nodeType,
		Status:      NodeStatusUnknown,
		Layer:       LayerNetwork,
		Metadata:    make(map[string]any),
		LastUpdated: time.Now(),
	}
}

// Clone returns a deep copy of the node. Metadata values are copied by
// reference; callers must not mutate nested values in place.
func (n *Node) Clone() *Node {
	c := *n
	c.Metadata = make(map[string]any, len(n.Metadata))
	for k, v := range n.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

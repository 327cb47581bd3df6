package domain

import (
	"sort"
	"time"
)

// Graph is a full projection of the stored topology, keyed by entity ID
type Graph struct {
	Nodes       map[string]*Node `json:"nodes"`
	Edges       map[string]*Edge `json:"edges"`
	LastUpdated time.Time        `json:"last_updated"`
}

// NewGraph creates an empty graph projection
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Edges: make(map[string]*Edge),
	}
}

// NodeList returns all nodes sorted by name for stable output
func (g *Graph) NodeList() []*Node {
	nodes := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes
}

// EdgeList returns all edges sorted by ID for stable output
func (g *Graph) EdgeList() []*Edge {
	edges := make([]*Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges
}

// Stats summarizes the graph by entity count and status histogram
type Stats struct {
	TotalNodes       int            `json:"total_nodes"`
	TotalEdges       int            `json:"total_edges"`
	NodeStatusCounts map[string]int `json:"node_status_counts"`
	EdgeStatusCounts map[string]int `json:"edge_status_counts"`
	LastUpdated      time.Time      `json:"last_updated"`
}

// Stats derives summary statistics from the projection without touching
// the store
func (g *Graph) Stats() Stats {
	s := Stats{
		TotalNodes:       len(g.Nodes),
		TotalEdges:       len(g.Edges),
		NodeStatusCounts: make(map[string]int),
		EdgeStatusCounts: make(map[string]int),
		LastUpdated:      g.LastUpdated,
	}
	for _, n := range g.Nodes {
		s.NodeStatusCounts[string(n.Status)]++
	}
	for _, e := range g.Edges {
		s.EdgeStatusCounts[string(e.Status)]++
	}
	return s
}

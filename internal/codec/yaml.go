package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"netviz/internal/domain"
)

// YAML round-trips documents through a YAML shape mirroring the JSON one
type YAML struct{}

// NewYAML creates a YAML codec
func NewYAML() *YAML {
	return &YAML{}
}

// Format returns the codec format identifier
func (c *YAML) Format() string {
	return "yaml"
}

// The domain structs carry JSON tags only, so the YAML shape is spelled
// out here instead of leaning on yaml.v3's lowercased field names.
type yamlDocument struct {
	Nodes []yamlNode `yaml:"nodes"`
	Edges []yamlEdge `yaml:"edges"`
}

type yamlNode struct {
	ID       string         `yaml:"id,omitempty"`
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Address  string         `yaml:"address,omitempty"`
	Status   string         `yaml:"status,omitempty"`
	Layer    string         `yaml:"layer,omitempty"`
	Position *yamlPosition  `yaml:"position,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type yamlPosition struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type yamlEdge struct {
	ID          string         `yaml:"id,omitempty"`
	Source      string         `yaml:"source"`
	Target      string         `yaml:"target"`
	Type        string         `yaml:"type,omitempty"`
	Bandwidth   string         `yaml:"bandwidth,omitempty"`
	Utilization float64        `yaml:"utilization,omitempty"`
	Status      string         `yaml:"status,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty"`
}

// Parse reads a document from YAML
func (c *YAML) Parse(r io.Reader) (*Document, error) {
	var yd yamlDocument
	if err := yaml.NewDecoder(r).Decode(&yd); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	doc := &Document{}
	for _, yn := range yd.Nodes {
		node := &domain.Node{
			ID:       yn.ID,
			Name:     yn.Name,
			Type:     yn.Type,
			Address:  yn.Address,
			Status:   domain.NodeStatus(yn.Status),
			Layer:    yn.Layer,
			Metadata: yn.Metadata,
		}
		if yn.Position != nil {
			node.Position = domain.Position{X: yn.Position.X, Y: yn.Position.Y}
		}
		if node.Metadata == nil {
			node.Metadata = make(map[string]any)
		}
		doc.Nodes = append(doc.Nodes, node)
	}
	for _, ye := range yd.Edges {
		edge := &domain.Edge{
			ID:          ye.ID,
			SourceID:    ye.Source,
			TargetID:    ye.Target,
			Type:        ye.Type,
			Bandwidth:   ye.Bandwidth,
			Utilization: ye.Utilization,
			Status:      domain.EdgeStatus(ye.Status),
			Metadata:    ye.Metadata,
		}
		if edge.Metadata == nil {
			edge.Metadata = make(map[string]any)
		}
		doc.Edges = append(doc.Edges, edge)
	}
	return doc, nil
}

// Export writes a document as YAML
func (c *YAML) Export(doc *Document, w io.Writer) error {
	yd := yamlDocument{
		Nodes: make([]yamlNode, 0, len(doc.Nodes)),
		Edges: make([]yamlEdge, 0, len(doc.Edges)),
	}

	for _, node := range doc.Nodes {
		yn := yamlNode{
			ID:       node.ID,
			Name:     node.Name,
			Type:     node.Type,
			Address:  node.Address,
			Status:   string(node.Status),
			Layer:    node.Layer,
			Metadata: node.Metadata,
		}
		if node.Position != (domain.Position{}) {
			yn.Position = &yamlPosition{X: node.Position.X, Y: node.Position.Y}
		}
		yd.Nodes = append(yd.Nodes, yn)
	}
	for _, edge := range doc.Edges {
		yd.Edges = append(yd.Edges, yamlEdge{
			ID:          edge.ID,
			Source:      edge.SourceID,
			Target:      edge.TargetID,
			Type:        edge.Type,
			Bandwidth:   edge.Bandwidth,
			Utilization: edge.Utilization,
			Status:      string(edge.Status),
			Metadata:    edge.Metadata,
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&yd); err != nil {
		return fmt.Errorf("encode YAML: %w", err)
	}
	return nil
}

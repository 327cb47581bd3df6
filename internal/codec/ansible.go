package codec

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"netviz/internal/domain"
)

// AnsibleInventory maps the graph onto an Ansible YAML inventory: one
// child group per node type, node addresses as ansible_host, metadata as
// host vars. Imports infer node types from group names and vars, and
// link every host to the inventory's router when one is present.
type AnsibleInventory struct{}

// NewAnsibleInventory creates an Ansible inventory codec
func NewAnsibleInventory() *AnsibleInventory {
	return &AnsibleInventory{}
}

// Format returns the codec format identifier
func (c *AnsibleInventory) Format() string {
	return "ansible-inventory"
}

type ansibleInventory struct {
	All ansibleGroup `yaml:"all"`
}

type ansibleGroup struct {
	Children map[string]ansibleGroupDef `yaml:"children,omitempty"`
	Hosts    map[string]ansibleHost     `yaml:"hosts,omitempty"`
}

type ansibleGroupDef struct {
	Hosts map[string]ansibleHost `yaml:"hosts,omitempty"`
}

type ansibleHost struct {
	AnsibleHost string         `yaml:"ansible_host,omitempty"`
	Vars        map[string]any `yaml:",inline"`
}

// Parse reads an Ansible inventory into a document. Hosts become nodes
// named by their inventory key; edge endpoints reference node names.
func (c *AnsibleInventory) Parse(r io.Reader) (*Document, error) {
	var inv ansibleInventory
	if err := yaml.NewDecoder(r).Decode(&inv); err != nil {
		return nil, fmt.Errorf("parse Ansible inventory: %w", err)
	}

	doc := &Document{}
	seen := make(map[string]bool)
	var routerName string

	addHost := func(name, group string, host ansibleHost) {
		if seen[name] {
			return
		}
		seen[name] = true

		node := c.hostToNode(name, group, host)
		doc.Nodes = append(doc.Nodes, node)
		if node.Type == domain.NodeTypeRouter && routerName == "" {
			routerName = name
		}
	}

	// Grouped hosts first so group names inform type inference
	for _, group := range sortedKeys(inv.All.Children) {
		def := inv.All.Children[group]
		for _, name := range sortedKeys(def.Hosts) {
			addHost(name, group, def.Hosts[name])
		}
	}
	for _, name := range sortedKeys(inv.All.Hosts) {
		addHost(name, "", inv.All.Hosts[name])
	}

	if routerName != "" {
		for _, node := range doc.Nodes {
			if node.Name == routerName {
				continue
			}
			doc.Edges = append(doc.Edges, &domain.Edge{
				SourceID: node.Name,
				TargetID: routerName,
				Type:     domain.EdgeTypeEthernet,
				Metadata: make(map[string]any),
			})
		}
	}
	return doc, nil
}

func (c *AnsibleInventory) hostToNode(name, group string, host ansibleHost) *domain.Node {
	node := &domain.Node{
		Name:     name,
		Type:     inferNodeType(group, host.Vars),
		Address:  host.AnsibleHost,
		Metadata: make(map[string]any),
	}
	if group != "" {
		node.Metadata["group"] = group
	}
	for key, value := range host.Vars {
		node.Metadata[key] = value
	}
	return node
}

// inferNodeType decides a node type from an explicit device_type var,
// the role var, or the group name, in that order
func inferNodeType(group string, vars map[string]any) string {
	if deviceType, ok := vars["device_type"].(string); ok {
		switch strings.ToLower(deviceType) {
		case "router", "gateway":
			return domain.NodeTypeRouter
		case "switch":
			return domain.NodeTypeSwitch
		case "server", "controller":
			return domain.NodeTypeServer
		case "container":
			return domain.NodeTypeContainer
		}
	}

	if role, ok := vars["role"].(string); ok {
		role = strings.ToLower(role)
		switch {
		case strings.Contains(role, "router") || strings.Contains(role, "gateway"):
			return domain.NodeTypeRouter
		case strings.Contains(role, "switch"):
			return domain.NodeTypeSwitch
		case strings.Contains(role, "client") || strings.Contains(role, "workstation"):
			return domain.NodeTypeClient
		}
	}

	group = strings.ToLower(group)
	switch {
	case strings.Contains(group, "router") || strings.Contains(group, "gateway"):
		return domain.NodeTypeRouter
	case strings.Contains(group, "switch"):
		return domain.NodeTypeSwitch
	case strings.Contains(group, "client") || strings.Contains(group, "workstation"):
		return domain.NodeTypeClient
	case strings.Contains(group, "container") || strings.Contains(group, "docker"):
		return domain.NodeTypeContainer
	case strings.Contains(group, "server") || strings.Contains(group, "infrastructure"):
		return domain.NodeTypeServer
	}
	return domain.NodeTypeHost
}

// Export writes the document's nodes as an inventory grouped by type.
// Edges have no inventory representation and are not exported.
func (c *AnsibleInventory) Export(doc *Document, w io.Writer) error {
	children := make(map[string]ansibleGroupDef)

	for _, node := range doc.Nodes {
		group := node.Type + "s"
		def, ok := children[group]
		if !ok {
			def = ansibleGroupDef{Hosts: make(map[string]ansibleHost)}
			children[group] = def
		}

		host := ansibleHost{
			AnsibleHost: node.Address,
			Vars:        make(map[string]any),
		}
		host.Vars["status"] = string(node.Status)
		for key, value := range node.Metadata {
			if key == "group" {
				continue
			}
			host.Vars[key] = value
		}
		def.Hosts[node.Name] = host
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&ansibleInventory{All: ansibleGroup{Children: children}}); err != nil {
		return fmt.Errorf("encode Ansible inventory: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

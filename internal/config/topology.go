package config

// TopologyConfig declares the expected shape of the network: which
// devices should exist and which links connect them. The reconciler
// treats it as authoritative for structure; observations only decorate
// it with live status and metrics.
type TopologyConfig struct {
	Devices map[string]DeviceRule `yaml:"devices"`
	Links   []LinkRule            `yaml:"links"`
}

// DeviceRule describes one expected device, keyed by hostname
type DeviceRule struct {
	Type    string `yaml:"type"`
	Address string `yaml:"address,omitempty"`
}

// LinkRule describes one expected link between two devices. Bandwidth
// carries a display label of the form "subnet (speed)"; the subnet part
// also backfills edge metadata.
type LinkRule struct {
	Source    string `yaml:"source"`
	Target    string `yaml:"target"`
	Type      string `yaml:"type,omitempty"`
	Bandwidth string `yaml:"bandwidth,omitempty"`
}

// DefaultTopology describes the demo lab: a client and a server on
// separate switched segments joined by an FRR router.
func DefaultTopology() TopologyConfig {
	return TopologyConfig{
		Devices: map[string]DeviceRule{
			"client":     {Type: "client", Address: "192.168.10.2"},
			"switch1":    {Type: "switch", Address: "192.168.10.3"},
			"frr-router": {Type: "router", Address: "192.168.10.254"},
			"switch2":    {Type: "switch", Address: "192.168.20.3"},
			"server":     {Type: "server", Address: "192.168.20.2"},
		},
		Links: []LinkRule{
			{Source: "client", Target: "switch1", Type: "ethernet", Bandwidth: "192.168.10.0/24 (1Gbps)"},
			{Source: "switch1", Target: "frr-router", Type: "ethernet", Bandwidth: "192.168.10.0/24 (1Gbps)"},
			{Source: "frr-router", Target: "switch2", Type: "ethernet", Bandwidth: "192.168.20.0/24 (1Gbps)"},
			{Source: "switch2", Target: "server", Type: "ethernet", Bandwidth: "192.168.20.0/24 (1Gbps)"},
		},
	}
}

package collector

import (
	"context"
	"fmt"
	"log"

	nmap "github.com/Ullaakut/nmap/v3"

	"netviz/internal/domain"
)

// NmapSweep discovers live hosts with an nmap ping sweep. It reports
// host presence only; system metrics stay empty because a sweep cannot
// see inside the host.
type NmapSweep struct {
	// CIDR is the network to sweep, e.g. "192.168.10.0/24"
	CIDR string
}

// NewNmapSweep creates a sweep collector for the given network
func NewNmapSweep(cidr string) *NmapSweep {
	return &NmapSweep{CIDR: cidr}
}

// FetchMetrics implements Collector
func (n *NmapSweep) FetchMetrics(ctx context.Context) (domain.MetricsSnapshot, error) {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets(n.CIDR),
		nmap.WithPingScan(),
	)
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("ping sweep of %s: %w", n.CIDR, err)
	}
	if warnings != nil && len(*warnings) > 0 {
		log.Printf("nmap warnings for %s: %v", n.CIDR, *warnings)
	}

	snapshot := make(domain.MetricsSnapshot)
	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}

		name := ""
		for _, hn := range host.Hostnames {
			if hn.Name != "" {
				name = hn.Name
				break
			}
		}
		// Fall back to the address when reverse DNS gave nothing
		if name == "" && len(host.Addresses) > 0 {
			name = host.Addresses[0].Addr
		}
		if name == "" {
			continue
		}

		snapshot[name] = domain.HostMetrics{}
	}

	log.Printf("nmap sweep of %s found %d live hosts", n.CIDR, len(snapshot))
	return snapshot, nil
}

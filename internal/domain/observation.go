package domain

// ContainerMetrics is one observed container on a host
type ContainerMetrics struct {
	Name        string   `json:"name"`
	ContainerID string   `json:"id,omitempty"`
	Status      string   `json:"status,omitempty"`
	CPUUsage    *float64 `json:"cpu_usage,omitempty"`
	MemoryUsage *float64 `json:"memory_usage,omitempty"`
}

// HostMetrics is the per-host slice of an observation snapshot: the latest
// system metrics plus the containers seen running on the host. Missing
// metrics stay nil and are dropped before they reach node metadata.
type HostMetrics struct {
	CPUUsage      *float64           `json:"cpu_usage,omitempty"`
	MemoryUsage   *float64           `json:"memory_usage,omitempty"`
	MemoryTotalMB *float64           `json:"memory_total,omitempty"`
	MemoryUsedMB  *float64           `json:"memory_used,omitempty"`
	DiskUsage     *float64           `json:"disk_usage,omitempty"`
	LoadAverage   *float64           `json:"load_average,omitempty"`
	UptimeSeconds *float64           `json:"uptime,omitempty"`
	Containers    []ContainerMetrics `json:"containers,omitempty"`
}

// SystemFields flattens the host-level metrics into metadata entries,
// omitting values the feed did not report
func (h HostMetrics) SystemFields() map[string]any {
	fields := make(map[string]any)
	put := func(key string, v *float64) {
		if v != nil {
			fields[key] = *v
		}
	}
	put("cpu_usage", h.CPUUsage)
	put("memory_usage", h.MemoryUsage)
	put("memory_total", h.MemoryTotalMB)
	put("memory_used", h.MemoryUsedMB)
	put("disk_usage", h.DiskUsage)
	put("load_average", h.LoadAverage)
	put("uptime", h.UptimeSeconds)
	return fields
}

// MetricsSnapshot maps hostname to what the observation feed saw there.
// An empty snapshot means the source was unavailable, which is distinct
// from "the network is empty" and must never trigger deletions.
type MetricsSnapshot map[string]HostMetrics

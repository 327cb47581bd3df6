// Package collector provides observation sources for the reconciler.
// Each collector produces a snapshot of what the network looks like
// right now; the reconciler converges the graph to match it.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"netviz/internal/domain"
)

// Collector fetches one observation snapshot. An error means the source
// was unreachable; an empty snapshot means it answered and saw nothing.
// The two are handled differently downstream, so implementations must
// not turn failures into empty snapshots.
type Collector interface {
	FetchMetrics(ctx context.Context) (domain.MetricsSnapshot, error)
}

// Static always returns the same snapshot. Used in demos and tests.
type Static struct {
	Snapshot domain.MetricsSnapshot
}

// FetchMetrics implements Collector
func (s *Static) FetchMetrics(ctx context.Context) (domain.MetricsSnapshot, error) {
	return s.Snapshot, nil
}

// HTTP polls a metrics endpoint that serves a JSON object keyed by
// hostname, each value holding system metrics and a container list
type HTTP struct {
	URL    string
	Client *http.Client
}

// NewHTTP creates an HTTP collector with the given per-fetch timeout
func NewHTTP(url string, timeout time.Duration) *HTTP {
	return &HTTP{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// FetchMetrics implements Collector
func (h *HTTP) FetchMetrics(ctx context.Context) (domain.MetricsSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build metrics request: %w", err)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch metrics: unexpected status %s", resp.Status)
	}

	var snapshot domain.MetricsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}

	return snapshot, nil
}

// Package metrics exposes Prometheus instrumentation for the topology
// mirror. All metrics live in a Registry owned by the caller so tests can
// create isolated instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	registry *prometheus.Registry

	// Graph metrics
	GraphNodes            prometheus.Gauge
	GraphEdges            prometheus.Gauge
	GraphCacheReloads     prometheus.Counter
	GraphMutationsTotal   *prometheus.CounterVec

	// Reconciler metrics
	ReconcileRunsTotal  *prometheus.CounterVec
	ReconcileDuration   prometheus.Histogram
	NodesSweptTotal     prometheus.Counter

	// Broadcast metrics
	EventsBroadcastTotal prometheus.Counter
	ConnectedClients     prometheus.Gauge
}

// New creates a Registry with all metrics registered
func New() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.GraphNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "netviz_graph_nodes",
			Help: "Number of nodes currently in the graph",
		},
	)

	r.GraphEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "netviz_graph_edges",
			Help: "Number of edges currently in the graph",
		},
	)

	r.GraphCacheReloads = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "netviz_graph_cache_reloads_total",
			Help: "Times the graph projection was reloaded from the database",
		},
	)

	r.GraphMutationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netviz_graph_mutations_total",
			Help: "Graph mutations by entity type and update type",
		},
		[]string{"entity", "update"},
	)

	r.ReconcileRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netviz_reconcile_runs_total",
			Help: "Reconcile runs by outcome",
		},
		[]string{"status"},
	)

	r.ReconcileDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netviz_reconcile_duration_seconds",
			Help:    "Reconcile run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0},
		},
	)

	r.NodesSweptTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "netviz_nodes_swept_total",
			Help: "Stale nodes deleted by the staleness sweep",
		},
	)

	r.EventsBroadcastTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "netviz_events_broadcast_total",
			Help: "Graph update events fanned out to connected sessions",
		},
	)

	r.ConnectedClients = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "netviz_connected_clients",
			Help: "Currently connected websocket channels",
		},
	)

	return r
}

// SetGraphSize updates the node and edge gauges from a loaded projection
func (r *Registry) SetGraphSize(nodes, edges int) {
	r.GraphNodes.Set(float64(nodes))
	r.GraphEdges.Set(float64(edges))
}

// Handler returns an http.Handler serving this registry in the
// Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

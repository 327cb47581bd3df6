// Package reconciler converges the stored graph with observation
// snapshots. Each run upserts observed hosts and containers, evicts
// stale unmanaged nodes, and realizes the configured topology links,
// all inside a single store transaction.
package reconciler

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"netviz/internal/collector"
	"netviz/internal/config"
	"netviz/internal/domain"
	"netviz/internal/metrics"
	"netviz/internal/repository"
	"netviz/internal/service"
)

// SourceCollector tags audit entries and broadcasts produced by
// reconcile runs
const SourceCollector = "collector"

// provenanceKey marks nodes owned by the observation feed. Nodes
// carrying it are exempt from staleness eviction forever, even through
// long observation gaps.
const provenanceKey = "metric_source"

// Invalidator drops the graph projection cache after a committed run
type Invalidator interface {
	InvalidateCache()
}

// Change is one committed mutation, queued for broadcast after commit
type Change struct {
	UpdateType domain.UpdateType
	EntityType domain.EntityType
	Entity     any
}

// RunResult summarizes one reconcile run
type RunResult struct {
	// Touched holds the node names upserted this run; the staleness
	// sweep spares them regardless of age
	Touched map[string]struct{}

	Created int
	Updated int
	Deleted int
	Edges   int
}

// Reconciler converges the graph with collector snapshots
type Reconciler struct {
	store      repository.Store
	source     collector.Collector
	hub        service.Broadcaster
	cache      Invalidator
	staleAfter time.Duration

	// rules can be swapped at runtime by the config watcher
	rulesMu sync.RWMutex
	rules   config.TopologyConfig

	metricsCache *MetricsCache
	mreg         *metrics.Registry

	// now is replaceable in tests
	now func() time.Time
}

// New creates a reconciler. hub and cache may be nil in tests.
func New(store repository.Store, source collector.Collector, hub service.Broadcaster, cache Invalidator, rules config.TopologyConfig, staleAfter, cacheTTL time.Duration) *Reconciler {
	return &Reconciler{
		store:        store,
		source:       source,
		hub:          hub,
		cache:        cache,
		rules:        rules,
		staleAfter:   staleAfter,
		metricsCache: NewMetricsCache(cacheTTL),
		now:          time.Now,
	}
}

// SetMetrics attaches an instrumentation registry. Safe to skip in tests.
func (r *Reconciler) SetMetrics(reg *metrics.Registry) {
	r.mreg = reg
}

// SetRules replaces the topology rules. The next run picks them up; a
// run already in flight keeps the rules it started with.
func (r *Reconciler) SetRules(rules config.TopologyConfig) {
	r.rulesMu.Lock()
	r.rules = rules
	r.rulesMu.Unlock()
}

func (r *Reconciler) currentRules() config.TopologyConfig {
	r.rulesMu.RLock()
	defer r.rulesMu.RUnlock()
	return r.rules
}

// MetricsCache exposes the short-TTL snapshot cache for read paths
func (r *Reconciler) MetricsCache() *MetricsCache {
	return r.metricsCache
}

// Run executes one reconcile pass. All graph changes commit in a single
// transaction; cache invalidation and broadcasts happen after commit.
func (r *Reconciler) Run(ctx context.Context) (RunResult, error) {
	started := r.now()

	snapshot, err := r.source.FetchMetrics(ctx)
	if err != nil {
		r.observeRun(started, "error")
		return RunResult{}, fmt.Errorf("fetch snapshot: %w", err)
	}

	// An empty snapshot means the source saw nothing, not that the
	// network is empty. Skip the run rather than evict everything.
	if len(snapshot) == 0 {
		r.observeRun(started, "empty")
		return RunResult{Touched: map[string]struct{}{}}, nil
	}

	result := RunResult{Touched: make(map[string]struct{})}
	rules := r.currentRules()
	var changes []Change

	err = r.store.Update(ctx, func(tx repository.Tx) error {
		now := r.now().UTC()

		nodes, err := tx.ListNodes()
		if err != nil {
			return err
		}
		byName := make(map[string]*domain.Node, len(nodes))
		for _, n := range nodes {
			byName[n.Name] = n
		}

		upserts, err := r.applySnapshot(tx, byName, snapshot, rules, now, result.Touched)
		if err != nil {
			return err
		}
		changes = append(changes, upserts...)

		swept, err := r.sweepStale(tx, nodes, result.Touched, now)
		if err != nil {
			return err
		}
		changes = append(changes, swept...)

		// Swept nodes must not anchor configured links
		for _, c := range swept {
			if n, ok := c.Entity.(*domain.Node); ok && c.EntityType == domain.EntityNode {
				delete(byName, n.Name)
			}
		}

		linked, err := r.ensureEdges(tx, byName, rules, now)
		if err != nil {
			return err
		}
		changes = append(changes, linked...)

		return nil
	})
	if err != nil {
		r.observeRun(started, "error")
		return RunResult{}, err
	}

	for _, c := range changes {
		switch {
		case c.EntityType == domain.EntityEdge:
			result.Edges++
		case c.UpdateType == domain.UpdateCreated:
			result.Created++
		case c.UpdateType == domain.UpdateUpdated:
			result.Updated++
		case c.UpdateType == domain.UpdateDeleted:
			result.Deleted++
		}
	}

	// Post-commit: one cache drop for the whole batch, then fan-out
	if len(changes) > 0 && r.cache != nil {
		r.cache.InvalidateCache()
	}
	if r.hub != nil {
		for _, c := range changes {
			r.hub.BroadcastGraphUpdate(c.UpdateType, c.EntityType, c.Entity, SourceCollector)
		}
	}

	r.metricsCache.Set(snapshot)
	r.observeRun(started, "ok")
	return result, nil
}

func (r *Reconciler) observeRun(started time.Time, status string) {
	if r.mreg == nil {
		return
	}
	r.mreg.ReconcileRunsTotal.WithLabelValues(status).Inc()
	r.mreg.ReconcileDuration.Observe(r.now().Sub(started).Seconds())
}

// ============================================================================
// Snapshot Upserts
// ============================================================================

// applySnapshot upserts a node per observed host and container, marking
// each upserted name as touched. byName is kept current so later steps
// see the nodes created here.
func (r *Reconciler) applySnapshot(tx repository.Tx, byName map[string]*domain.Node, snapshot domain.MetricsSnapshot, rules config.TopologyConfig, now time.Time, touched map[string]struct{}) ([]Change, error) {
	var changes []Change

	hostnames := make([]string, 0, len(snapshot))
	for h := range snapshot {
		hostnames = append(hostnames, h)
	}
	sort.Strings(hostnames)

	for _, hostname := range hostnames {
		host := snapshot[hostname]

		change, err := r.upsertHost(tx, byName, hostname, host, now)
		if err != nil {
			return nil, err
		}
		touched["host-"+hostname] = struct{}{}
		if change != nil {
			changes = append(changes, *change)
		}

		for _, c := range host.Containers {
			if c.Name == "" {
				continue
			}
			change, err := r.upsertContainer(tx, byName, c, rules, hostname, now)
			if err != nil {
				return nil, err
			}
			touched[c.Name] = struct{}{}
			if change != nil {
				changes = append(changes, *change)
			}
		}
	}

	return changes, nil
}

// upsertHost creates or refreshes the infrastructure node for one
// observed host. Returns nil when the stored node already matches.
func (r *Reconciler) upsertHost(tx repository.Tx, byName map[string]*domain.Node, hostname string, host domain.HostMetrics, now time.Time) (*Change, error) {
	name := "host-" + hostname

	fields := host.SystemFields()
	fields[provenanceKey] = SourceCollector

	if existing, ok := byName[name]; ok {
		node := existing.Clone()
		node.Status = domain.NodeStatusOnline
		node.Metadata = domain.MergeMetadata(existing.Metadata, fields)

		if nodeUnchanged(existing, node) {
			return nil, nil
		}

		node.LastUpdated = now
		if err := r.writeNodeUpdate(tx, existing, node, now); err != nil {
			return nil, err
		}
		byName[name] = node
		return &Change{domain.UpdateUpdated, domain.EntityNode, node}, nil
	}

	node := domain.NewNode(uuid.NewString(), name, domain.NodeTypeHost)
	node.Layer = domain.LayerInfrastructure
	node.Status = domain.NodeStatusOnline
	node.Metadata = domain.FilterMetadata(fields)
	node.LastUpdated = now

	if err := r.writeNodeCreate(tx, node, now); err != nil {
		return nil, err
	}
	byName[name] = node
	return &Change{domain.UpdateCreated, domain.EntityNode, node}, nil
}

// upsertContainer creates or refreshes the node for one observed
// container, resolving type and address from the topology rules
func (r *Reconciler) upsertContainer(tx repository.Tx, byName map[string]*domain.Node, c domain.ContainerMetrics, rules config.TopologyConfig, hostname string, now time.Time) (*Change, error) {
	nodeType := domain.NodeTypeContainer
	address := ""
	if rule, ok := rules.Devices[c.Name]; ok {
		if rule.Type != "" {
			nodeType = rule.Type
		}
		address = rule.Address
	}

	status := domain.NodeStatusOffline
	if strings.Contains(c.Status, "Up") {
		status = domain.NodeStatusOnline
	}

	fields := map[string]any{
		"container_id":     c.ContainerID,
		"container_status": c.Status,
		"host":             hostname,
		provenanceKey:      SourceCollector,
	}
	if c.CPUUsage != nil {
		fields["cpu_usage"] = *c.CPUUsage
	}
	if c.MemoryUsage != nil {
		fields["memory_usage"] = *c.MemoryUsage
	}

	if existing, ok := byName[c.Name]; ok {
		node := existing.Clone()
		node.Type = nodeType
		node.Address = address
		node.Status = status
		node.Metadata = domain.MergeMetadata(existing.Metadata, fields)

		if nodeUnchanged(existing, node) {
			return nil, nil
		}

		node.LastUpdated = now
		if err := r.writeNodeUpdate(tx, existing, node, now); err != nil {
			return nil, err
		}
		byName[c.Name] = node
		return &Change{domain.UpdateUpdated, domain.EntityNode, node}, nil
	}

	node := domain.NewNode(uuid.NewString(), c.Name, nodeType)
	node.Address = address
	node.Status = status
	node.Metadata = domain.FilterMetadata(fields)
	node.LastUpdated = now

	if err := r.writeNodeCreate(tx, node, now); err != nil {
		return nil, err
	}
	byName[c.Name] = node
	return &Change{domain.UpdateCreated, domain.EntityNode, node}, nil
}

// nodeUnchanged reports whether an upsert would write identical state.
// Skipping the write keeps consecutive identical runs byte-identical.
func nodeUnchanged(old, next *domain.Node) bool {
	return old.Status == next.Status &&
		old.Type == next.Type &&
		old.Address == next.Address &&
		reflect.DeepEqual(old.Metadata, next.Metadata)
}

func (r *Reconciler) writeNodeCreate(tx repository.Tx, node *domain.Node, now time.Time) error {
	if err := tx.InsertNode(node); err != nil {
		return err
	}
	return tx.AppendAudit(domain.AuditEntry{
		UpdateType: domain.UpdateCreated,
		EntityType: domain.EntityNode,
		EntityID:   node.ID,
		NewData:    node,
		Source:     SourceCollector,
		Timestamp:  now,
	})
}

func (r *Reconciler) writeNodeUpdate(tx repository.Tx, old, node *domain.Node, now time.Time) error {
	if err := tx.UpdateNode(node); err != nil {
		return err
	}
	return tx.AppendAudit(domain.AuditEntry{
		UpdateType: domain.UpdateUpdated,
		EntityType: domain.EntityNode,
		EntityID:   node.ID,
		OldData:    old,
		NewData:    node,
		Source:     SourceCollector,
		Timestamp:  now,
	})
}

// ============================================================================
// Staleness Sweep
// ============================================================================

// sweepStale deletes nodes that were not touched this run, have aged
// past the grace window, and never carried the collector provenance tag.
// Provenance-tagged nodes survive arbitrarily long observation gaps.
func (r *Reconciler) sweepStale(tx repository.Tx, nodes []*domain.Node, touched map[string]struct{}, now time.Time) ([]Change, error) {
	cutoff := now.Add(-r.staleAfter)
	var changes []Change

	for _, node := range nodes {
		if _, ok := touched[node.Name]; ok {
			continue
		}
		if !node.LastUpdated.Before(cutoff) {
			continue
		}
		if node.Metadata[provenanceKey] == SourceCollector {
			continue
		}

		removed, err := tx.DeleteNodeEdges(node.ID)
		if err != nil {
			return nil, err
		}
		if err := tx.DeleteNode(node.ID); err != nil {
			return nil, err
		}
		if err := tx.AppendAudit(domain.AuditEntry{
			UpdateType: domain.UpdateDeleted,
			EntityType: domain.EntityNode,
			EntityID:   node.ID,
			OldData:    map[string]any{"node": node, "edges": removed},
			Source:     SourceCollector,
			Timestamp:  now,
		}); err != nil {
			return nil, err
		}

		changes = append(changes, Change{domain.UpdateDeleted, domain.EntityNode, node})
		for _, e := range removed {
			changes = append(changes, Change{domain.UpdateDeleted, domain.EntityEdge, e})
		}
		if r.mreg != nil {
			r.mreg.NodesSweptTotal.Inc()
		}
	}

	return changes, nil
}

// ============================================================================
// Configured Links
// ============================================================================

// ensureEdges realizes the configured topology links whose endpoints
// both exist. An edge already present in either direction is never
// duplicated; operator-set bandwidth is never overwritten.
func (r *Reconciler) ensureEdges(tx repository.Tx, byName map[string]*domain.Node, rules config.TopologyConfig, now time.Time) ([]Change, error) {
	edges, err := tx.ListEdges()
	if err != nil {
		return nil, err
	}

	nameByID := make(map[string]string, len(byName))
	for name, node := range byName {
		nameByID[node.ID] = name
	}

	existing := make(map[[2]string]*domain.Edge, len(edges))
	for _, e := range edges {
		src, ok1 := nameByID[e.SourceID]
		dst, ok2 := nameByID[e.TargetID]
		if !ok1 || !ok2 {
			continue
		}
		existing[[2]string{src, dst}] = e
	}

	var changes []Change
	for _, link := range rules.Links {
		source, ok := byName[link.Source]
		if !ok {
			continue
		}
		target, ok := byName[link.Target]
		if !ok {
			continue
		}

		forward := [2]string{link.Source, link.Target}
		reverse := [2]string{link.Target, link.Source}

		if _, ok := existing[reverse]; ok {
			continue
		}

		if current, ok := existing[forward]; ok {
			change, err := r.refreshEdge(tx, current, link, now)
			if err != nil {
				return nil, err
			}
			if change != nil {
				changes = append(changes, *change)
			}
			continue
		}

		edge := domain.NewEdge(uuid.NewString(), source.ID, target.ID)
		if link.Type != "" {
			edge.Type = link.Type
		}
		edge.Bandwidth = link.Bandwidth
		edge.Status = domain.EdgeStatusActive
		edge.Metadata = map[string]any{
			"auto_created": true,
			"topology":     "config",
			"subnet":       subnetFromLabel(link.Bandwidth),
		}
		edge.LastUpdated = now

		if err := tx.InsertEdge(edge); err != nil {
			return nil, err
		}
		if err := tx.AppendAudit(domain.AuditEntry{
			UpdateType: domain.UpdateCreated,
			EntityType: domain.EntityEdge,
			EntityID:   edge.ID,
			NewData:    edge,
			Source:     SourceCollector,
			Timestamp:  now,
		}); err != nil {
			return nil, err
		}

		existing[forward] = edge
		changes = append(changes, Change{domain.UpdateCreated, domain.EntityEdge, edge})
	}

	return changes, nil
}

// refreshEdge re-activates a configured link and backfills bandwidth and
// subnet metadata only where absent. Returns nil when nothing changed.
func (r *Reconciler) refreshEdge(tx repository.Tx, current *domain.Edge, link config.LinkRule, now time.Time) (*Change, error) {
	edge := current.Clone()
	edge.Status = domain.EdgeStatusActive
	if edge.Bandwidth == "" {
		edge.Bandwidth = link.Bandwidth
	}
	if _, ok := edge.Metadata["subnet"]; !ok {
		edge.Metadata["subnet"] = subnetFromLabel(link.Bandwidth)
	}

	if current.Status == edge.Status &&
		current.Bandwidth == edge.Bandwidth &&
		reflect.DeepEqual(current.Metadata, edge.Metadata) {
		return nil, nil
	}

	edge.LastUpdated = now
	if err := tx.UpdateEdge(edge); err != nil {
		return nil, err
	}
	if err := tx.AppendAudit(domain.AuditEntry{
		UpdateType: domain.UpdateUpdated,
		EntityType: domain.EntityEdge,
		EntityID:   edge.ID,
		OldData:    current,
		NewData:    edge,
		Source:     SourceCollector,
		Timestamp:  now,
	}); err != nil {
		return nil, err
	}

	return &Change{domain.UpdateUpdated, domain.EntityEdge, edge}, nil
}

// subnetFromLabel extracts the subnet part of a "subnet (speed)"
// bandwidth label
func subnetFromLabel(label string) string {
	if i := strings.Index(label, " ("); i >= 0 {
		return label[:i]
	}
	if label == "" {
		return "N/A"
	}
	return label
}

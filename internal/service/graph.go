package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"netviz/internal/domain"
	"netviz/internal/metrics"
	"netviz/internal/repository"
)

// ErrInvalidInput marks validation failures so handlers can map them to
// client errors without string matching
var ErrInvalidInput = errors.New("invalid input")

// SourceAPI tags audit entries and broadcasts produced by API mutations
const SourceAPI = "api"

// Broadcaster fans a committed graph change out to connected sessions.
// The hub implements it; tests substitute a recorder.
type Broadcaster interface {
	BroadcastGraphUpdate(updateType domain.UpdateType, entityType domain.EntityType, entity any, source string)
}

// GraphService provides business logic for graph operations. Reads go
// through an in-memory projection cache; every committed mutation
// invalidates the cache and broadcasts the change.
type GraphService struct {
	store repository.Store
	hub   Broadcaster
	cache graphCache
	mreg  *metrics.Registry
}

// NewGraphService creates a new graph service
func NewGraphService(store repository.Store, hub Broadcaster) *GraphService {
	return &GraphService{store: store, hub: hub}
}

// SetMetrics attaches an instrumentation registry. Safe to skip in tests.
func (s *GraphService) SetMetrics(reg *metrics.Registry) {
	s.mreg = reg
}

// ============================================================================
// Reads
// ============================================================================

// GetGraph returns the graph projection, loading it from the store when
// the cache is cold. reload forces a fresh load.
func (s *GraphService) GetGraph(ctx context.Context, reload bool) (*domain.Graph, error) {
	if reload {
		s.cache.Invalidate()
	}
	if g := s.cache.Get(); g != nil {
		return g, nil
	}

	g, err := s.store.LoadGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	s.cache.Set(g)

	if s.mreg != nil {
		s.mreg.GraphCacheReloads.Inc()
		s.mreg.SetGraphSize(len(g.Nodes), len(g.Edges))
	}
	return g, nil
}

// GetStats summarizes the current projection
func (s *GraphService) GetStats(ctx context.Context) (domain.Stats, error) {
	g, err := s.GetGraph(ctx, false)
	if err != nil {
		return domain.Stats{}, err
	}
	return g.Stats(), nil
}

// ListAudit returns recent audit entries, newest first
func (s *GraphService) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return s.store.ListAudit(ctx, limit)
}

// InvalidateCache drops the cached projection. The reconciler calls this
// once after committing a batch of changes.
func (s *GraphService) InvalidateCache() {
	s.cache.Invalidate()
}

// ============================================================================
// Node Mutations
// ============================================================================

// NodeInput carries the fields accepted when creating a node
type NodeInput struct {
	ID       string
	Name     string
	Type     string
	Address  string
	Status   string
	Layer    string
	Position *domain.Position
	Metadata map[string]any
}

// NodeUpdate carries a partial node update. Nil fields are left unchanged;
// a non-nil Metadata replaces the stored metadata wholesale.
type NodeUpdate struct {
	Name     *string
	Type     *string
	Address  *string
	Status   *string
	Layer    *string
	Position *domain.Position
	Metadata map[string]any
}

var validNodeStatuses = map[domain.NodeStatus]bool{
	domain.NodeStatusOnline:      true,
	domain.NodeStatusOffline:     true,
	domain.NodeStatusWarning:     true,
	domain.NodeStatusError:       true,
	domain.NodeStatusMaintenance: true,
	domain.NodeStatusUnknown:     true,
}

var validEdgeStatuses = map[domain.EdgeStatus]bool{
	domain.EdgeStatusActive:   true,
	domain.EdgeStatusInactive: true,
	domain.EdgeStatusError:    true,
	domain.EdgeStatusUnknown:  true,
}

// CreateNode validates, persists, and broadcasts a new node
func (s *GraphService) CreateNode(ctx context.Context, in NodeInput) (*domain.Node, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Type == "" {
		return nil, fmt.Errorf("%w: type is required", ErrInvalidInput)
	}
	if in.Status != "" && !validNodeStatuses[domain.NodeStatus(in.Status)] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	node := domain.NewNode(id, in.Name, in.Type)
	node.Address = in.Address
	if in.Status != "" {
		node.Status = domain.NodeStatus(in.Status)
	}
	if in.Layer != "" {
		node.Layer = in.Layer
	}
	if in.Position != nil {
		node.Position = *in.Position
	}
	node.Metadata = domain.FilterMetadata(in.Metadata)
	node.LastUpdated = time.Now().UTC()

	err := s.store.Update(ctx, func(tx repository.Tx) error {
		if err := tx.InsertNode(node); err != nil {
			return err
		}
		return tx.AppendAudit(domain.AuditEntry{
			UpdateType: domain.UpdateCreated,
			EntityType: domain.EntityNode,
			EntityID:   node.ID,
			NewData:    node,
			Source:     SourceAPI,
			Timestamp:  node.LastUpdated,
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(domain.UpdateCreated, domain.EntityNode, node)
	return node, nil
}

// UpdateNode applies a partial update to an existing node
func (s *GraphService) UpdateNode(ctx context.Context, id string, in NodeUpdate) (*domain.Node, error) {
	if in.Name != nil && *in.Name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	if in.Status != nil && !validNodeStatuses[domain.NodeStatus(*in.Status)] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *in.Status)
	}

	var updated *domain.Node
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		old, err := tx.NodeByID(id)
		if err != nil {
			return err
		}

		node := old.Clone()
		if in.Name != nil {
			node.Name = *in.Name
		}
		if in.Type != nil {
			node.Type = *in.Type
		}
		if in.Address != nil {
			node.Address = *in.Address
		}
		if in.Status != nil {
			node.Status = domain.NodeStatus(*in.Status)
		}
		if in.Layer != nil {
			node.Layer = *in.Layer
		}
		if in.Position != nil {
			node.Position = *in.Position
		}
		if in.Metadata != nil {
			node.Metadata = domain.FilterMetadata(in.Metadata)
		}
		node.LastUpdated = time.Now().UTC()

		if err := tx.UpdateNode(node); err != nil {
			return err
		}
		if err := tx.AppendAudit(domain.AuditEntry{
			UpdateType: domain.UpdateUpdated,
			EntityType: domain.EntityNode,
			EntityID:   node.ID,
			OldData:    old,
			NewData:    node,
			Source:     SourceAPI,
			Timestamp:  node.LastUpdated,
		}); err != nil {
			return err
		}

		updated = node
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(domain.UpdateUpdated, domain.EntityNode, updated)
	return updated, nil
}

// DeleteNode removes a node and every edge touching it. Returns false
// without error when the node does not exist.
func (s *GraphService) DeleteNode(ctx context.Context, id string) (bool, error) {
	var (
		old     *domain.Node
		removed []*domain.Edge
	)
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		node, err := tx.NodeByID(id)
		if err != nil {
			return err
		}
		old = node

		removed, err = tx.DeleteNodeEdges(id)
		if err != nil {
			return err
		}
		if err := tx.DeleteNode(id); err != nil {
			return err
		}

		// The cascaded edges ride along in the node's audit entry
		// instead of getting entries of their own
		return tx.AppendAudit(domain.AuditEntry{
			UpdateType: domain.UpdateDeleted,
			EntityType: domain.EntityNode,
			EntityID:   id,
			OldData:    map[string]any{"node": old, "edges": removed},
			Source:     SourceAPI,
			Timestamp:  time.Now().UTC(),
		})
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.afterMutation(domain.UpdateDeleted, domain.EntityNode, old)
	for _, edge := range removed {
		s.broadcast(domain.UpdateDeleted, domain.EntityEdge, edge)
	}
	return true, nil
}

// ============================================================================
// Edge Mutations
// ============================================================================

// EdgeInput carries the fields accepted when creating an edge
type EdgeInput struct {
	ID          string
	SourceID    string
	TargetID    string
	Type        string
	Bandwidth   string
	Utilization float64
	Status      string
	Metadata    map[string]any
}

// EdgeUpdate carries a partial edge update. Endpoints are immutable;
// delete and recreate the edge to rewire it.
type EdgeUpdate struct {
	Type        *string
	Bandwidth   *string
	Utilization *float64
	Status      *string
	Metadata    map[string]any
}

// CreateEdge validates, persists, and broadcasts a new edge
func (s *GraphService) CreateEdge(ctx context.Context, in EdgeInput) (*domain.Edge, error) {
	if in.SourceID == "" || in.TargetID == "" {
		return nil, fmt.Errorf("%w: source and target are required", ErrInvalidInput)
	}
	if in.Status != "" && !validEdgeStatuses[domain.EdgeStatus(in.Status)] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	edge := domain.NewEdge(id, in.SourceID, in.TargetID)
	if in.Type != "" {
		edge.Type = in.Type
	}
	edge.Bandwidth = in.Bandwidth
	edge.Utilization = in.Utilization
	if in.Status != "" {
		edge.Status = domain.EdgeStatus(in.Status)
	}
	edge.Metadata = domain.FilterMetadata(in.Metadata)
	edge.LastUpdated = time.Now().UTC()

	err := s.store.Update(ctx, func(tx repository.Tx) error {
		if err := tx.InsertEdge(edge); err != nil {
			return err
		}
		return tx.AppendAudit(domain.AuditEntry{
			UpdateType: domain.UpdateCreated,
			EntityType: domain.EntityEdge,
			EntityID:   edge.ID,
			NewData:    edge,
			Source:     SourceAPI,
			Timestamp:  edge.LastUpdated,
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(domain.UpdateCreated, domain.EntityEdge, edge)
	return edge, nil
}

// UpdateEdge applies a partial update to an existing edge
func (s *GraphService) UpdateEdge(ctx context.Context, id string, in EdgeUpdate) (*domain.Edge, error) {
	if in.Status != nil && !validEdgeStatuses[domain.EdgeStatus(*in.Status)] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *in.Status)
	}

	var updated *domain.Edge
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		old, err := tx.EdgeByID(id)
		if err != nil {
			return err
		}

		edge := old.Clone()
		if in.Type != nil {
			edge.Type = *in.Type
		}
		if in.Bandwidth != nil {
			edge.Bandwidth = *in.Bandwidth
		}
		if in.Utilization != nil {
			edge.Utilization = *in.Utilization
		}
		if in.Status != nil {
			edge.Status = domain.EdgeStatus(*in.Status)
		}
		if in.Metadata != nil {
			edge.Metadata = domain.FilterMetadata(in.Metadata)
		}
		edge.LastUpdated = time.Now().UTC()

		if err := tx.UpdateEdge(edge); err != nil {
			return err
		}
		if err := tx.AppendAudit(domain.AuditEntry{
			UpdateType: domain.UpdateUpdated,
			EntityType: domain.EntityEdge,
			EntityID:   edge.ID,
			OldData:    old,
			NewData:    edge,
			Source:     SourceAPI,
			Timestamp:  edge.LastUpdated,
		}); err != nil {
			return err
		}

		updated = edge
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(domain.UpdateUpdated, domain.EntityEdge, updated)
	return updated, nil
}

// DeleteEdge removes an edge. Returns false without error when absent.
func (s *GraphService) DeleteEdge(ctx context.Context, id string) (bool, error) {
	var old *domain.Edge
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		edge, err := tx.EdgeByID(id)
		if err != nil {
			return err
		}
		old = edge

		if err := tx.DeleteEdge(id); err != nil {
			return err
		}
		return tx.AppendAudit(domain.AuditEntry{
			UpdateType: domain.UpdateDeleted,
			EntityType: domain.EntityEdge,
			EntityID:   id,
			OldData:    old,
			Source:     SourceAPI,
			Timestamp:  time.Now().UTC(),
		})
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.afterMutation(domain.UpdateDeleted, domain.EntityEdge, old)
	return true, nil
}

// ============================================================================
// Post-commit Plumbing
// ============================================================================

// afterMutation runs the cache invalidation and fan-out shared by every
// committed mutation. Order matters: the cache must drop before clients
// react to the broadcast and re-fetch.
func (s *GraphService) afterMutation(updateType domain.UpdateType, entityType domain.EntityType, entity any) {
	s.cache.Invalidate()
	if s.mreg != nil {
		s.mreg.GraphMutationsTotal.WithLabelValues(string(entityType), string(updateType)).Inc()
	}
	s.broadcast(updateType, entityType, entity)
}

func (s *GraphService) broadcast(updateType domain.UpdateType, entityType domain.EntityType, entity any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastGraphUpdate(updateType, entityType, entity, SourceAPI)
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"netviz/internal/domain"
	"netviz/internal/repository"
)

// SourceImport tags audit entries and broadcasts produced by bulk imports
const SourceImport = "import"

// ImportResult counts what one import changed
type ImportResult struct {
	NodesCreated int `json:"nodes_created"`
	NodesUpdated int `json:"nodes_updated"`
	EdgesCreated int `json:"edges_created"`
	EdgesSkipped int `json:"edges_skipped"`
}

type importChange struct {
	updateType domain.UpdateType
	entityType domain.EntityType
	entity     any
}

// ImportGraph upserts a batch of nodes and edges in one transaction.
// Nodes match existing ones by ID, then by name; matched nodes get their
// non-empty fields overlaid and metadata merged. Edge endpoints may
// reference nodes by ID or by name, and an edge whose endpoint pair
// already exists in either direction is skipped. The cache is
// invalidated once after commit, then every change is broadcast.
func (s *GraphService) ImportGraph(ctx context.Context, nodes []*domain.Node, edges []*domain.Edge) (ImportResult, error) {
	var (
		result  ImportResult
		changes []importChange
	)

	err := s.store.Update(ctx, func(tx repository.Tx) error {
		existing, err := tx.ListNodes()
		if err != nil {
			return err
		}
		byID := make(map[string]*domain.Node, len(existing))
		byName := make(map[string]*domain.Node, len(existing))
		for _, n := range existing {
			byID[n.ID] = n
			byName[n.Name] = n
		}

		now := time.Now().UTC()
		for _, in := range nodes {
			if in.Name == "" {
				return fmt.Errorf("%w: imported node without a name", ErrInvalidInput)
			}
			if in.Status != "" && !validNodeStatuses[in.Status] {
				return fmt.Errorf("%w: node %q: unknown status %q", ErrInvalidInput, in.Name, in.Status)
			}

			old := byID[in.ID]
			if old == nil {
				old = byName[in.Name]
			}

			if old != nil {
				node := old.Clone()
				if in.Type != "" {
					node.Type = in.Type
				}
				if in.Address != "" {
					node.Address = in.Address
				}
				if in.Status != "" {
					node.Status = in.Status
				}
				if in.Layer != "" {
					node.Layer = in.Layer
				}
				if in.Position != (domain.Position{}) {
					node.Position = in.Position
				}
				node.Metadata = domain.MergeMetadata(node.Metadata, in.Metadata)
				node.LastUpdated = now

				if err := tx.UpdateNode(node); err != nil {
					return err
				}
				if err := tx.AppendAudit(domain.AuditEntry{
					UpdateType: domain.UpdateUpdated,
					EntityType: domain.EntityNode,
					EntityID:   node.ID,
					OldData:    old,
					NewData:    node,
					Source:     SourceImport,
					Timestamp:  now,
				}); err != nil {
					return err
				}

				byID[node.ID] = node
				byName[node.Name] = node
				changes = append(changes, importChange{domain.UpdateUpdated, domain.EntityNode, node})
				result.NodesUpdated++
				continue
			}

			if in.Type == "" {
				return fmt.Errorf("%w: node %q: type is required", ErrInvalidInput, in.Name)
			}

			id := in.ID
			if id == "" {
				id = uuid.NewString()
			}
			node := domain.NewNode(id, in.Name, in.Type)
			node.Address = in.Address
			if in.Status != "" {
				node.Status = in.Status
			}
			if in.Layer != "" {
				node.Layer = in.Layer
			}
			node.Position = in.Position
			node.Metadata = domain.FilterMetadata(in.Metadata)
			node.LastUpdated = now

			if err := tx.InsertNode(node); err != nil {
				return err
			}
			if err := tx.AppendAudit(domain.AuditEntry{
				UpdateType: domain.UpdateCreated,
				EntityType: domain.EntityNode,
				EntityID:   node.ID,
				NewData:    node,
				Source:     SourceImport,
				Timestamp:  now,
			}); err != nil {
				return err
			}

			byID[node.ID] = node
			byName[node.Name] = node
			changes = append(changes, importChange{domain.UpdateCreated, domain.EntityNode, node})
			result.NodesCreated++
		}

		resolve := func(ref string) (string, error) {
			if _, ok := byID[ref]; ok {
				return ref, nil
			}
			if n, ok := byName[ref]; ok {
				return n.ID, nil
			}
			return "", fmt.Errorf("%w: edge endpoint %q", repository.ErrEndpointMissing, ref)
		}

		existingEdges, err := tx.ListEdges()
		if err != nil {
			return err
		}
		pairs := make(map[[2]string]bool, len(existingEdges))
		for _, e := range existingEdges {
			pairs[[2]string{e.SourceID, e.TargetID}] = true
		}

		for _, in := range edges {
			sourceID, err := resolve(in.SourceID)
			if err != nil {
				return err
			}
			targetID, err := resolve(in.TargetID)
			if err != nil {
				return err
			}

			if pairs[[2]string{sourceID, targetID}] || pairs[[2]string{targetID, sourceID}] {
				result.EdgesSkipped++
				continue
			}
			if in.Status != "" && !validEdgeStatuses[in.Status] {
				return fmt.Errorf("%w: edge %s->%s: unknown status %q", ErrInvalidInput, in.SourceID, in.TargetID, in.Status)
			}

			id := in.ID
			if id == "" {
				id = uuid.NewString()
			}
			edge := domain.NewEdge(id, sourceID, targetID)
			if in.Type != "" {
				edge.Type = in.Type
			}
			edge.Bandwidth = in.Bandwidth
			edge.Utilization = in.Utilization
			if in.Status != "" {
				edge.Status = in.Status
			}
			edge.Metadata = domain.FilterMetadata(in.Metadata)
			edge.LastUpdated = now

			if err := tx.InsertEdge(edge); err != nil {
				return err
			}
			if err := tx.AppendAudit(domain.AuditEntry{
				UpdateType: domain.UpdateCreated,
				EntityType: domain.EntityEdge,
				EntityID:   edge.ID,
				NewData:    edge,
				Source:     SourceImport,
				Timestamp:  now,
			}); err != nil {
				return err
			}

			pairs[[2]string{sourceID, targetID}] = true
			changes = append(changes, importChange{domain.UpdateCreated, domain.EntityEdge, edge})
			result.EdgesCreated++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	if len(changes) > 0 {
		s.cache.Invalidate()
	}
	for _, c := range changes {
		if s.mreg != nil {
			s.mreg.GraphMutationsTotal.WithLabelValues(string(c.entityType), string(c.updateType)).Inc()
		}
		if s.hub != nil {
			s.hub.BroadcastGraphUpdate(c.updateType, c.entityType, c.entity, SourceImport)
		}
	}
	return result, nil
}

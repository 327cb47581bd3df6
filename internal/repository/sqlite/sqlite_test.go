package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"netviz/internal/domain"
	"netviz/internal/repository"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestStore creates a store backed by a throwaway database file. A file
// is used instead of :memory: because database/sql may open more than one
// connection and each in-memory connection is a separate database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertErrIs fails the test unless errors.Is(err, target)
func assertErrIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected error %v, got %v", target, err)
	}
}

// insertTestNode inserts a node with an audit entry, as the service does
func insertTestNode(t *testing.T, store *Store, id, name string) *domain.Node {
	t.Helper()
	node := domain.NewNode(id, name, domain.NodeTypeHost)
	err := store.Update(context.Background(), func(tx repository.Tx) error {
		if err := tx.InsertNode(node); err != nil {
			return err
		}
		return tx.AppendAudit(domain.AuditEntry{
			UpdateType: domain.UpdateCreated,
			EntityType: domain.EntityNode,
			EntityID:   node.ID,
			NewData:    node,
			Source:     "test",
			Timestamp:  time.Now(),
		})
	})
	assertNoError(t, err)
	return node
}

// ============================================================================
// Node Tests
// ============================================================================

func TestNodeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	node := domain.NewNode("n1", "web-01", domain.NodeTypeServer)
	node.Address = "10.0.0.5"
	node.Status = domain.NodeStatusOnline
	node.Layer = domain.LayerInfrastructure
	node.Position = domain.Position{X: 120, Y: 40}
	node.Metadata = map[string]any{"rack": "a1", "cpu_usage": 12.5}

	err := store.Update(ctx, func(tx repository.Tx) error {
		return tx.InsertNode(node)
	})
	assertNoError(t, err)

	graph, err := store.LoadGraph(ctx)
	assertNoError(t, err)

	got, ok := graph.Nodes["n1"]
	if !ok {
		t.Fatal("node missing from loaded graph")
	}
	if got.Name != "web-01" || got.Address != "10.0.0.5" {
		t.Fatalf("unexpected node: %+v", got)
	}
	if got.Status != domain.NodeStatusOnline || got.Layer != domain.LayerInfrastructure {
		t.Fatalf("status/layer not persisted: %+v", got)
	}
	if got.Position.X != 120 || got.Position.Y != 40 {
		t.Fatalf("position not persisted: %+v", got.Position)
	}
	if got.Metadata["rack"] != "a1" {
		t.Fatalf("metadata not persisted: %v", got.Metadata)
	}
}

func TestNodeNameUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertTestNode(t, store, "n1", "web-01")

	err := store.Update(ctx, func(tx repository.Tx) error {
		return tx.InsertNode(domain.NewNode("n2", "web-01", domain.NodeTypeHost))
	})
	assertErrIs(t, err, repository.ErrNameConflict)

	// The failed transaction must leave no trace
	graph, err := store.LoadGraph(ctx)
	assertNoError(t, err)
	if len(graph.Nodes) != 1 {
		t.Fatalf("expected 1 node after conflict, got %d", len(graph.Nodes))
	}
}

func TestNodeLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertTestNode(t, store, "n1", "web-01")

	err := store.Update(ctx, func(tx repository.Tx) error {
		byID, err := tx.NodeByID("n1")
		if err != nil {
			return err
		}
		if byID.Name != "web-01" {
			t.Fatalf("unexpected node by id: %+v", byID)
		}

		byName, err := tx.NodeByName("web-01")
		if err != nil {
			return err
		}
		if byName.ID != "n1" {
			t.Fatalf("unexpected node by name: %+v", byName)
		}

		_, err = tx.NodeByID("missing")
		assertErrIs(t, err, repository.ErrNotFound)
		return nil
	})
	assertNoError(t, err)
}

func TestUpdateMissingNode(t *testing.T) {
	store := newTestStore(t)

	node := domain.NewNode("ghost", "ghost", domain.NodeTypeHost)
	err := store.Update(context.Background(), func(tx repository.Tx) error {
		return tx.UpdateNode(node)
	})
	assertErrIs(t, err, repository.ErrNotFound)
}

func TestDeleteNodeRemovesTouchingEdges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertTestNode(t, store, "a", "node-a")
	insertTestNode(t, store, "b", "node-b")
	insertTestNode(t, store, "c", "node-c")

	err := store.Update(ctx, func(tx repository.Tx) error {
		if err := tx.InsertEdge(domain.NewEdge("e1", "a", "b")); err != nil {
			return err
		}
		if err := tx.InsertEdge(domain.NewEdge("e2", "c", "a")); err != nil {
			return err
		}
		return tx.InsertEdge(domain.NewEdge("e3", "b", "c"))
	})
	assertNoError(t, err)

	err = store.Update(ctx, func(tx repository.Tx) error {
		removed, err := tx.DeleteNodeEdges("a")
		if err != nil {
			return err
		}
		if len(removed) != 2 {
			t.Fatalf("expected 2 removed edges, got %d", len(removed))
		}
		return tx.DeleteNode("a")
	})
	assertNoError(t, err)

	graph, err := store.LoadGraph(ctx)
	assertNoError(t, err)
	if _, ok := graph.Nodes["a"]; ok {
		t.Fatal("node a still present")
	}
	if len(graph.Edges) != 1 {
		t.Fatalf("expected only e3 to survive, got %v", graph.Edges)
	}
	if _, ok := graph.Edges["e3"]; !ok {
		t.Fatal("edge e3 should survive")
	}
}

// ============================================================================
// Edge Tests
// ============================================================================

func TestEdgeEndpointMustExist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertTestNode(t, store, "a", "node-a")

	err := store.Update(ctx, func(tx repository.Tx) error {
		return tx.InsertEdge(domain.NewEdge("e1", "a", "nowhere"))
	})
	assertErrIs(t, err, repository.ErrEndpointMissing)
}

func TestEdgeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertTestNode(t, store, "a", "node-a")
	insertTestNode(t, store, "b", "node-b")

	edge := domain.NewEdge("e1", "a", "b")
	edge.Bandwidth = "1Gbps"
	edge.Status = domain.EdgeStatusActive
	edge.Metadata = map[string]any{"subnet": "192.168.10.0/24"}

	err := store.Update(ctx, func(tx repository.Tx) error {
		return tx.InsertEdge(edge)
	})
	assertNoError(t, err)

	graph, err := store.LoadGraph(ctx)
	assertNoError(t, err)

	got, ok := graph.Edges["e1"]
	if !ok {
		t.Fatal("edge missing from loaded graph")
	}
	if got.SourceID != "a" || got.TargetID != "b" {
		t.Fatalf("endpoints not persisted: %+v", got)
	}
	if got.Bandwidth != "1Gbps" || got.Status != domain.EdgeStatusActive {
		t.Fatalf("edge attributes not persisted: %+v", got)
	}
	if got.Metadata["subnet"] != "192.168.10.0/24" {
		t.Fatalf("edge metadata not persisted: %v", got.Metadata)
	}
}

// ============================================================================
// Transaction and Audit Tests
// ============================================================================

func TestUpdateRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Update(ctx, func(tx repository.Tx) error {
		if err := tx.InsertNode(domain.NewNode("n1", "web-01", domain.NodeTypeHost)); err != nil {
			return err
		}
		if err := tx.AppendAudit(domain.AuditEntry{
			UpdateType: domain.UpdateCreated,
			EntityType: domain.EntityNode,
			EntityID:   "n1",
			Source:     "test",
			Timestamp:  time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	assertErrIs(t, err, boom)

	graph, err := store.LoadGraph(ctx)
	assertNoError(t, err)
	if len(graph.Nodes) != 0 {
		t.Fatal("rolled back node was persisted")
	}

	entries, err := store.ListAudit(ctx, 10)
	assertNoError(t, err)
	if len(entries) != 0 {
		t.Fatal("rolled back audit entry was persisted")
	}
}

func TestListAuditNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertTestNode(t, store, "n1", "first")
	insertTestNode(t, store, "n2", "second")
	insertTestNode(t, store, "n3", "third")

	entries, err := store.ListAudit(ctx, 2)
	assertNoError(t, err)

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].EntityID != "n3" || entries[1].EntityID != "n2" {
		t.Fatalf("entries not newest first: %v, %v", entries[0].EntityID, entries[1].EntityID)
	}
	if entries[0].UpdateType != domain.UpdateCreated {
		t.Fatalf("unexpected update type: %v", entries[0].UpdateType)
	}

	// NewData round-trips as a JSON object
	data, ok := entries[0].NewData.(map[string]any)
	if !ok {
		t.Fatalf("expected map new data, got %T", entries[0].NewData)
	}
	if data["name"] != "third" {
		t.Fatalf("unexpected audit payload: %v", data)
	}
}

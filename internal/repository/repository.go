package repository

import (
	"context"
	"errors"

	"netviz/internal/domain"
)

// Sentinel errors surfaced by the store. Callers match them with errors.Is
// to map storage failures onto API responses.
var (
	// ErrNotFound means the requested node or edge does not exist
	ErrNotFound = errors.New("entity not found")

	// ErrNameConflict means a node insert or rename collided with the
	// unique name constraint
	ErrNameConflict = errors.New("node name already in use")

	// ErrDuplicateID means an insert reused an existing entity ID
	ErrDuplicateID = errors.New("entity id already exists")

	// ErrEndpointMissing means an edge references a node that is not in
	// the store
	ErrEndpointMissing = errors.New("edge endpoint does not exist")
)

// Store defines persistent access to the topology graph and its audit log
type Store interface {
	// LoadGraph reads the full graph projection from the database
	LoadGraph(ctx context.Context) (*domain.Graph, error)

	// Update runs fn inside a single transaction. If fn returns an error
	// the transaction rolls back and nothing is persisted, including any
	// audit entries appended along the way.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// ListAudit returns the most recent audit entries, newest first
	ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error)

	// Close releases resources
	Close() error
}

// Tx exposes the mutation surface available inside Store.Update. Every
// write that changes graph state must be paired with an AppendAudit call
// in the same transaction.
type Tx interface {
	// Node reads
	NodeByID(id string) (*domain.Node, error)
	NodeByName(name string) (*domain.Node, error)
	ListNodes() ([]*domain.Node, error)

	// Node writes
	InsertNode(node *domain.Node) error
	UpdateNode(node *domain.Node) error
	DeleteNode(id string) error

	// DeleteNodeEdges removes every edge touching the node and returns
	// the removed edges so the caller can audit and broadcast them
	DeleteNodeEdges(nodeID string) ([]*domain.Edge, error)

	// Edge reads
	EdgeByID(id string) (*domain.Edge, error)
	ListEdges() ([]*domain.Edge, error)

	// Edge writes
	InsertEdge(edge *domain.Edge) error
	UpdateEdge(edge *domain.Edge) error
	DeleteEdge(id string) error

	// AppendAudit records one mutation in the append-only log
	AppendAudit(entry domain.AuditEntry) error
}

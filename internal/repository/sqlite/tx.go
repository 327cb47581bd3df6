package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"netviz/internal/domain"
	"netviz/internal/repository"
)

// storeTx implements repository.Tx on top of one *sql.Tx
type storeTx struct {
	tx  *sql.Tx
	ctx context.Context
}

// mapConstraintErr translates SQLite constraint failures into the
// repository sentinels so callers do not depend on driver error strings
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: nodes.name"):
		return repository.ErrNameConflict
	case strings.Contains(msg, "UNIQUE constraint failed: nodes.id"),
		strings.Contains(msg, "UNIQUE constraint failed: edges.id"):
		return repository.ErrDuplicateID
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return repository.ErrEndpointMissing
	}
	return err
}

// ============================================================================
// Node Operations
// ============================================================================

func (t *storeTx) NodeByID(id string) (*domain.Node, error) {
	return t.scanNode(`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
}

func (t *storeTx) NodeByName(name string) (*domain.Node, error) {
	return t.scanNode(`SELECT `+nodeColumns+` FROM nodes WHERE name = ?`, name)
}

func (t *storeTx) scanNode(query string, arg any) (*domain.Node, error) {
	var row nodeRow
	err := t.tx.QueryRowContext(t.ctx, query, arg).Scan(row.scanArgs()...)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query node: %w", err)
	}
	return row.toDomain()
}

func (t *storeTx) ListNodes() ([]*domain.Node, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT `+nodeColumns+` FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*domain.Node
	for rows.Next() {
		var row nodeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

func (t *storeTx) InsertNode(node *domain.Node) error {
	args, err := nodeInsertArgs(node)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO nodes (id, name, type, address, status, layer, position_x, position_y, metadata, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		if mapped := mapConstraintErr(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to insert node: %w", err)
	}
	return nil
}

func (t *storeTx) UpdateNode(node *domain.Node) error {
	args, err := nodeInsertArgs(node)
	if err != nil {
		return err
	}

	// id moves from first positional arg to the WHERE clause
	args = append(args[1:], node.ID)

	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE nodes SET name = ?, type = ?, address = ?, status = ?, layer = ?,
			position_x = ?, position_y = ?, metadata = ?, last_updated = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		if mapped := mapConstraintErr(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update node: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *storeTx) DeleteNode(id string) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *storeTx) DeleteNodeEdges(nodeID string) ([]*domain.Edge, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT `+edgeColumns+` FROM edges WHERE source_id = ? OR target_id = ?
	`, nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node edges: %w", err)
	}
	defer rows.Close()

	var removed []*domain.Edge
	for rows.Next() {
		var row edgeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edge, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		removed = append(removed, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node edges: %w", err)
	}

	if len(removed) == 0 {
		return nil, nil
	}

	if _, err := t.tx.ExecContext(t.ctx, `
		DELETE FROM edges WHERE source_id = ? OR target_id = ?
	`, nodeID, nodeID); err != nil {
		return nil, fmt.Errorf("failed to delete node edges: %w", err)
	}

	return removed, nil
}

// ============================================================================
// Edge Operations
// ============================================================================

func (t *storeTx) EdgeByID(id string) (*domain.Edge, error) {
	var row edgeRow
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT `+edgeColumns+` FROM edges WHERE id = ?
	`, id).Scan(row.scanArgs()...)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query edge: %w", err)
	}
	return row.toDomain()
}

func (t *storeTx) ListEdges() ([]*domain.Edge, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT `+edgeColumns+` FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []*domain.Edge
	for rows.Next() {
		var row edgeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edge, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return edges, nil
}

func (t *storeTx) InsertEdge(edge *domain.Edge) error {
	args, err := edgeInsertArgs(edge)
	if err != nil {
		return err
	}

	// FK enforcement in SQLite defers the failure to the statement, but
	// the message does not say which endpoint is missing. Check up front
	// so callers get ErrEndpointMissing consistently.
	if err := t.checkEndpoints(edge); err != nil {
		return err
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO edges (id, source_id, target_id, type, bandwidth, utilization, status, metadata, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		if mapped := mapConstraintErr(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to insert edge: %w", err)
	}
	return nil
}

func (t *storeTx) checkEndpoints(edge *domain.Edge) error {
	for _, id := range []string{edge.SourceID, edge.TargetID} {
		var exists int
		err := t.tx.QueryRowContext(t.ctx, `SELECT 1 FROM nodes WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("node %s: %w", id, repository.ErrEndpointMissing)
		}
		if err != nil {
			return fmt.Errorf("failed to check edge endpoint: %w", err)
		}
	}
	return nil
}

func (t *storeTx) UpdateEdge(edge *domain.Edge) error {
	args, err := edgeInsertArgs(edge)
	if err != nil {
		return err
	}
	args = append(args[1:], edge.ID)

	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE edges SET source_id = ?, target_id = ?, type = ?, bandwidth = ?,
			utilization = ?, status = ?, metadata = ?, last_updated = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		if mapped := mapConstraintErr(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update edge: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *storeTx) DeleteEdge(id string) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM edges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ============================================================================
// Audit Log
// ============================================================================

func (t *storeTx) AppendAudit(entry domain.AuditEntry) error {
	oldJSON, err := marshalToNull(entry.OldData)
	if err != nil {
		return fmt.Errorf("marshal old data: %w", err)
	}
	newJSON, err := marshalToNull(entry.NewData)
	if err != nil {
		return fmt.Errorf("marshal new data: %w", err)
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO graph_audit (update_type, entity_type, entity_id, old_data, new_data, source, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(entry.UpdateType), string(entry.EntityType), entry.EntityID,
		oldJSON, newJSON, entry.Source, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

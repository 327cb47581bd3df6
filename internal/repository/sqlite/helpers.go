package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"netviz/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals a value to a nullable JSON string.
// Returns empty NullString for nil or empty maps.
func marshalToNull(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}

	// Empty metadata maps are stored as NULL, not "{}"
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return sql.NullString{}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ============================================================================
// Node Row Scanner
// ============================================================================

// nodeRow holds all columns from a node query for scanning
type nodeRow struct {
	ID           string
	Name         string
	Type         string
	Address      sql.NullString
	Status       string
	Layer        string
	PositionX    float64
	PositionY    float64
	MetadataJSON sql.NullString
	LastUpdated  time.Time
}

// scanArgs returns pointers to all fields for sql.Scan().
// MUST match nodeColumns order exactly.
func (r *nodeRow) scanArgs() []any {
	return []any{
		&r.ID,
		&r.Name,
		&r.Type,
		&r.Address,
		&r.Status,
		&r.Layer,
		&r.PositionX,
		&r.PositionY,
		&r.MetadataJSON,
		&r.LastUpdated,
	}
}

// toDomain converts the scanned row to a domain.Node
func (r *nodeRow) toDomain() (*domain.Node, error) {
	node := &domain.Node{
		ID:          r.ID,
		Name:        r.Name,
		Type:        r.Type,
		Address:     nullToString(r.Address),
		Status:      domain.NodeStatus(r.Status),
		Layer:       r.Layer,
		Position:    domain.Position{X: r.PositionX, Y: r.PositionY},
		Metadata:    make(map[string]any),
		LastUpdated: r.LastUpdated,
	}

	if err := unmarshalJSONField(r.MetadataJSON, &node.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal node metadata: %w", err)
	}

	return node, nil
}

// nodeColumns is the SELECT column list for node queries
const nodeColumns = `id, name, type, address, status, layer,
	position_x, position_y, metadata, last_updated`

// nodeInsertArgs prepares arguments for node INSERT.
// Returns: id, name, type, address, status, layer, position_x, position_y,
// metadata, last_updated
func nodeInsertArgs(node *domain.Node) ([]any, error) {
	metaJSON, err := marshalToNull(node.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal node metadata: %w", err)
	}

	return []any{
		node.ID,
		node.Name,
		node.Type,
		stringToNull(node.Address),
		string(node.Status),
		node.Layer,
		node.Position.X,
		node.Position.Y,
		metaJSON,
		node.LastUpdated,
	}, nil
}

// ============================================================================
// Edge Row Scanner
// ============================================================================

// edgeRow holds all columns from an edge query for scanning
type edgeRow struct {
	ID           string
	SourceID     string
	TargetID     string
	Type         string
	Bandwidth    sql.NullString
	Utilization  float64
	Status       string
	MetadataJSON sql.NullString
	LastUpdated  time.Time
}

// scanArgs returns pointers to all fields for sql.Scan().
// MUST match edgeColumns order exactly.
func (r *edgeRow) scanArgs() []any {
	return []any{
		&r.ID,
		&r.SourceID,
		&r.TargetID,
		&r.Type,
		&r.Bandwidth,
		&r.Utilization,
		&r.Status,
		&r.MetadataJSON,
		&r.LastUpdated,
	}
}

// toDomain converts the scanned row to a domain.Edge
func (r *edgeRow) toDomain() (*domain.Edge, error) {
	edge := &domain.Edge{
		ID:          r.ID,
		SourceID:    r.SourceID,
		TargetID:    r.TargetID,
		Type:        r.Type,
		Bandwidth:   nullToString(r.Bandwidth),
		Utilization: r.Utilization,
		Status:      domain.EdgeStatus(r.Status),
		Metadata:    make(map[string]any),
		LastUpdated: r.LastUpdated,
	}

	if err := unmarshalJSONField(r.MetadataJSON, &edge.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal edge metadata: %w", err)
	}

	return edge, nil
}

// edgeColumns is the SELECT column list for edge queries
const edgeColumns = `id, source_id, target_id, type, bandwidth,
	utilization, status, metadata, last_updated`

// edgeInsertArgs prepares arguments for edge INSERT.
// Returns: id, source_id, target_id, type, bandwidth, utilization, status,
// metadata, last_updated
func edgeInsertArgs(edge *domain.Edge) ([]any, error) {
	metaJSON, err := marshalToNull(edge.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal edge metadata: %w", err)
	}

	return []any{
		edge.ID,
		edge.SourceID,
		edge.TargetID,
		edge.Type,
		stringToNull(edge.Bandwidth),
		edge.Utilization,
		string(edge.Status),
		metaJSON,
		edge.LastUpdated,
	}, nil
}

// ============================================================================
// Audit Row Scanner
// ============================================================================

// auditRow holds all columns from a graph_audit query for scanning
type auditRow struct {
	ID          int64
	UpdateType  string
	EntityType  string
	EntityID    string
	OldDataJSON sql.NullString
	NewDataJSON sql.NullString
	Source      string
	Timestamp   time.Time
}

// scanArgs returns pointers to all fields for sql.Scan().
// MUST match auditColumns order exactly.
func (r *auditRow) scanArgs() []any {
	return []any{
		&r.ID,
		&r.UpdateType,
		&r.EntityType,
		&r.EntityID,
		&r.OldDataJSON,
		&r.NewDataJSON,
		&r.Source,
		&r.Timestamp,
	}
}

// toDomain converts the scanned row to a domain.AuditEntry
func (r *auditRow) toDomain() (domain.AuditEntry, error) {
	entry := domain.AuditEntry{
		ID:         r.ID,
		UpdateType: domain.UpdateType(r.UpdateType),
		EntityType: domain.EntityType(r.EntityType),
		EntityID:   r.EntityID,
		Source:     r.Source,
		Timestamp:  r.Timestamp,
	}

	if err := unmarshalJSONField(r.OldDataJSON, &entry.OldData); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("unmarshal audit old data: %w", err)
	}
	if err := unmarshalJSONField(r.NewDataJSON, &entry.NewData); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("unmarshal audit new data: %w", err)
	}

	return entry, nil
}

// auditColumns is the SELECT column list for audit queries
const auditColumns = `id, update_type, entity_type, entity_id,
	old_data, new_data, source, timestamp`

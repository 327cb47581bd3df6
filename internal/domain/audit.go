package domain

import "time"

// UpdateType classifies an audit entry
type UpdateType string

const (
	UpdateCreated UpdateType = "created"
	UpdateUpdated UpdateType = "updated"
	UpdateDeleted UpdateType = "deleted"
)

// EntityType identifies which table an audit entry refers to
type EntityType string

const (
	EntityNode EntityType = "node"
	EntityEdge EntityType = "edge"
)

// AuditEntry is one row of the append-only mutation log. OldData and
// NewData hold JSON snapshots of the entity before and after the change;
// either may be nil depending on the update type.
type AuditEntry struct {
	ID         int64      `json:"id"`
	UpdateType UpdateType `json:"update_type"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	OldData    any        `json:"old_data,omitempty"`
	NewData    any        `json:"new_data,omitempty"`
	Source     string     `json:"source"`
	Timestamp  time.Time  `json:"timestamp"`
}

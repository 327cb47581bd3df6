package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"netviz/internal/domain"
	"netviz/internal/repository"

	_ "modernc.org/sqlite"
)

// Store implements repository.Store using SQLite
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the database at dbPath
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		address TEXT,
		status TEXT NOT NULL DEFAULT 'unknown',
		layer TEXT NOT NULL DEFAULT 'network',
		position_x REAL NOT NULL DEFAULT 0,
		position_y REAL NOT NULL DEFAULT 0,
		metadata JSON,
		last_updated DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		type TEXT NOT NULL,
		bandwidth TEXT,
		utilization REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'unknown',
		metadata JSON,
		last_updated DATETIME NOT NULL,
		FOREIGN KEY (source_id) REFERENCES nodes(id),
		FOREIGN KEY (target_id) REFERENCES nodes(id)
	);

	CREATE TABLE IF NOT EXISTS graph_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		update_type TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		old_data JSON,
		new_data JSON,
		source TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON graph_audit(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// LoadGraph reads the complete graph projection from the database
func (s *Store) LoadGraph(ctx context.Context) (*domain.Graph, error) {
	graph := domain.NewGraph()

	rows, err := s.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row nodeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		graph.Nodes[node.ID] = node
		if node.LastUpdated.After(graph.LastUpdated) {
			graph.LastUpdated = node.LastUpdated
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	edgeRows, err := s.db.QueryContext(ctx, `SELECT `+edgeColumns+` FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var row edgeRow
		if err := edgeRows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edge, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		graph.Edges[edge.ID] = edge
		if edge.LastUpdated.After(graph.LastUpdated) {
			graph.LastUpdated = edge.LastUpdated
		}
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return graph, nil
}

// Update runs fn inside a single transaction
func (s *Store) Update(ctx context.Context, fn func(tx repository.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := fn(&storeTx{tx: dbTx, ctx: ctx}); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListAudit returns the most recent audit entries, newest first
func (s *Store) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auditColumns+` FROM graph_audit
		ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0, limit)
	for rows.Next() {
		var row auditRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}

	return entries, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

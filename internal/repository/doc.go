// Package repository defines the data access interfaces for NetViz.
//
// This package provides the storage abstraction for persisting and
// retrieving the topology graph. The actual implementation is in the
// sqlite subpackage.
//
// # Store Interface
//
// The Store interface covers graph projection loads, transactional
// mutations, and audit log reads. Mutations happen through Update, which
// hands the caller a Tx scoped to one database transaction so a batch of
// changes and their audit entries commit or roll back together.
//
// # SQLite Implementation
//
// The sqlite implementation provides a complete store using SQLite with
// WAL mode for concurrency. It handles:
//
//   - CRUD operations for nodes and edges
//   - JSON serialization of metadata and position columns
//   - Foreign key constraints between edges and their endpoints
//   - An append-only graph_audit table written in the same transaction
//     as the change it records
//
// # Schema Migration
//
// The sqlite store creates its schema on startup, preserving existing
// data across restarts.
//
// # Testing
//
// The sqlite store is tested against throwaway database files to verify
// the transactional contract and constraint mapping.
package repository

// Package service implements the business logic for NetViz.
//
// GraphService owns the graph projection cache and the mutation contract:
// every write validates its input, commits the change and its audit entry
// in one transaction, invalidates the cache, and broadcasts the change to
// connected sessions. Reads never hit the database while the cache is
// warm.
//
// The reconciler writes to the store directly and then calls
// InvalidateCache once per run, so a batch of collector-driven changes
// costs one projection reload instead of one per change.
package service

// Package domain defines the core entities of the topology mirror: nodes,
// edges, the graph projection, audit entries, and the observation snapshot
// shapes produced by collectors. It has no dependencies on storage or
// transport packages.
package domain

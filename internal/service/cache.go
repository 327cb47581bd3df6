package service

import (
	"sync"

	"netviz/internal/domain"
)

// graphCache holds the in-memory graph projection between mutations.
// Invalidate drops the projection; the next read rebuilds it from the
// store. A stale projection is never patched in place.
type graphCache struct {
	mu    sync.RWMutex
	graph *domain.Graph
}

// Get returns the cached projection, or nil when invalidated
func (c *graphCache) Get() *domain.Graph {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph
}

// Set replaces the cached projection
func (c *graphCache) Set(g *domain.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graph = g
}

// Invalidate drops the cached projection
func (c *graphCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graph = nil
}

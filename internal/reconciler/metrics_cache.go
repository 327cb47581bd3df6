package reconciler

import (
	"sync"
	"time"

	"netviz/internal/domain"
)

// MetricsCache holds the most recent observation snapshot for cheap read
// paths. It is independent from the graph projection cache: a stale
// snapshot here never implies a stale graph, and vice versa.
type MetricsCache struct {
	mu        sync.RWMutex
	snapshot  domain.MetricsSnapshot
	fetchedAt time.Time
	ttl       time.Duration

	// now is replaceable in tests
	now func() time.Time
}

// NewMetricsCache creates a cache with the given freshness window
func NewMetricsCache(ttl time.Duration) *MetricsCache {
	return &MetricsCache{ttl: ttl, now: time.Now}
}

// Set stores a snapshot and stamps its fetch time
func (c *MetricsCache) Set(snapshot domain.MetricsSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = snapshot
	c.fetchedAt = c.now()
}

// Get returns the cached snapshot and whether it is still fresh
func (c *MetricsCache) Get() (domain.MetricsSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return nil, false
	}
	return c.snapshot, c.now().Sub(c.fetchedAt) <= c.ttl
}

// Info describes the cache for the inspection endpoint
type Info struct {
	Metrics     domain.MetricsSnapshot `json:"metrics"`
	LastUpdated *time.Time             `json:"last_updated"`
	CacheSize   int                    `json:"cache_size"`
	Fresh       bool                   `json:"fresh"`
}

// Info returns the cache contents and freshness for inspection
func (c *MetricsCache) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := Info{
		Metrics:   c.snapshot,
		CacheSize: len(c.snapshot),
	}
	if !c.fetchedAt.IsZero() {
		t := c.fetchedAt
		info.LastUpdated = &t
		info.Fresh = c.now().Sub(c.fetchedAt) <= c.ttl
	}
	return info
}

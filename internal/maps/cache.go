package maps

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// RouteCache is a tiny in-memory cache for route lookups keyed by coords.
type RouteCache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	leg RouteLeg
	ts  time.Time
}

func NewRouteCache(ttl time.Duration) *RouteCache {
	return &RouteCache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(a, b models.Coord) string {
	return fmtCoord(a) + "->" + fmtCoord(b)
}

func fmtCoord(c models.Coord) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Get returns the cached leg and true if present and not expired.
func (c *RouteCache) Get(a, b models.Coord) (RouteLeg, bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return RouteLeg{}, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return RouteLeg{}, false
	}
	return e.leg, true
}

func (c *RouteCache) Set(a, b models.Coord, leg RouteLeg) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{leg: leg, ts: time.Now()}
	c.mu.Unlock()
}

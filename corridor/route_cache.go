package corridor

import (
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
)

// RouteCacheKey identifies a cached route by start, goal, and the
// requesting agent's coarse state (a route planned while TO_PICKUP isn't
// reused for a TO_DROPOFF request even between the same two cells).
type RouteCacheKey struct {
	Start, Goal grid.Cell
	State       fleet.AgentState
}

type cacheEntry struct {
	path    []grid.Cell
	hits    int
}

// RouteCache is a capacity-bounded cache of previously found paths,
// evicted by least-accessed, ported from the original's RouteCache.
type RouteCache struct {
	maxSize int
	entries map[RouteCacheKey]*cacheEntry
}

// NewRouteCache returns a cache bounded to maxSize entries.
func NewRouteCache(maxSize int) *RouteCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &RouteCache{maxSize: maxSize, entries: make(map[RouteCacheKey]*cacheEntry)}
}

// Get returns a cached path for key, bumping its access count. The
// returned slice is a copy; callers may freely mutate it.
func (rc *RouteCache) Get(key RouteCacheKey) ([]grid.Cell, bool) {
	e, ok := rc.entries[key]
	if !ok {
		return nil, false
	}
	e.hits++
	out := make([]grid.Cell, len(e.path))
	copy(out, e.path)
	return out, true
}

// Put stores path under key, evicting the least-accessed entry first if
// at capacity.
func (rc *RouteCache) Put(key RouteCacheKey, path []grid.Cell) {
	if _, exists := rc.entries[key]; !exists && len(rc.entries) >= rc.maxSize {
		rc.evictLeastUsed()
	}
	stored := make([]grid.Cell, len(path))
	copy(stored, path)
	rc.entries[key] = &cacheEntry{path: stored}
}

// Invalidate drops every cached route whose path intersects any cell in
// blocked.
func (rc *RouteCache) Invalidate(blocked map[grid.Cell]struct{}) {
	for key, e := range rc.entries {
		for _, c := range e.path {
			if _, hit := blocked[c]; hit {
				delete(rc.entries, key)
				break
			}
		}
	}
}

// Clear empties the cache.
func (rc *RouteCache) Clear() {
	rc.entries = make(map[RouteCacheKey]*cacheEntry)
}

func (rc *RouteCache) evictLeastUsed() {
	var worstKey RouteCacheKey
	worstHits := -1
	for key, e := range rc.entries {
		if worstHits == -1 || e.hits < worstHits {
			worstHits = e.hits
			worstKey = key
		}
	}
	if worstHits != -1 {
		delete(rc.entries, worstKey)
	}
}

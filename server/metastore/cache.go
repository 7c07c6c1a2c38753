package metastore

import (
	"strings"
	"sync"

	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/cube"
)

// tableEntry pairs a raw catalog row with its classification tag. Rows are
// classified once when fetched so reads never re-inspect properties.
type tableEntry struct {
	row *cattypes.Table
	tag cube.TableType
}

// objectCache is the write-through cache in front of the catalog: raw rows
// plus the decoded cube, fact and dimension models, all keyed by lowercase
// name. Reads may run concurrently; mutations of the same entity are
// serialized by the caller, so a mutation only has to leave its own entry
// refreshed or evicted before returning.
//
// Cached objects are shared. Callers treat anything a getter returns as
// read-only; mutations decode their own working copy from the raw row.
//
// With caching disabled every put is a no-op and every get misses, so all
// reads go to the catalog.
type objectCache struct {
	enabled bool

	mu     sync.RWMutex
	tables map[string]*tableEntry
	cubes  map[string]*cube.Cube
	facts  map[string]*cube.FactTable
	dims   map[string]*cube.DimensionTable
}

func newObjectCache(enabled bool) *objectCache {
	return &objectCache{
		enabled: enabled,
		tables:  make(map[string]*tableEntry),
		cubes:   make(map[string]*cube.Cube),
		facts:   make(map[string]*cube.FactTable),
		dims:    make(map[string]*cube.DimensionTable),
	}
}

func (c *objectCache) getTable(name string) (*tableEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.tables[strings.ToLower(name)]
	return entry, ok
}

func (c *objectCache) putTable(name string, entry *tableEntry) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[strings.ToLower(name)] = entry
}

func (c *objectCache) getCube(name string) (*cube.Cube, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cb, ok := c.cubes[strings.ToLower(name)]
	return cb, ok
}

func (c *objectCache) putCube(name string, cb *cube.Cube) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cubes[strings.ToLower(name)] = cb
}

func (c *objectCache) getFact(name string) (*cube.FactTable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fact, ok := c.facts[strings.ToLower(name)]
	return fact, ok
}

func (c *objectCache) putFact(name string, fact *cube.FactTable) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.facts[strings.ToLower(name)] = fact
}

func (c *objectCache) getDim(name string) (*cube.DimensionTable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dim, ok := c.dims[strings.ToLower(name)]
	return dim, ok
}

func (c *objectCache) putDim(name string, dim *cube.DimensionTable) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dims[strings.ToLower(name)] = dim
}

// evict removes the name from every section. Drops and failed refreshes use
// it so no section can outlive the row it was decoded from.
func (c *objectCache) evict(name string) {
	key := strings.ToLower(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, key)
	delete(c.cubes, key)
	delete(c.facts, key)
	delete(c.dims, key)
}

// reset drops every cached entry.
func (c *objectCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = make(map[string]*tableEntry)
	c.cubes = make(map[string]*cube.Cube)
	c.facts = make(map[string]*cube.FactTable)
	c.dims = make(map[string]*cube.DimensionTable)
}

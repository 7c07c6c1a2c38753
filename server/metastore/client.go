package metastore

import (
	"context"
	"strings"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog"
	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/config"
	"github.com/gear6io/lattice/server/cube"
	"github.com/rs/zerolog"
)

// ComponentType defines the metastore component type identifier
const ComponentType = "metastore"

// Metastore orchestrates cube metadata on top of a catalog store: it decodes
// rows into cube models, keeps the logical and physical tables of an entity
// in step, maintains latest markers, and fronts all of it with a
// write-through object cache.
//
// Reads are safe to run concurrently. Mutations of the same entity must be
// serialized by the caller; the metastore does not lock entities.
//
// The metastore owns the store it is constructed with and closes it on
// shutdown.
type Metastore struct {
	store  catalog.Store
	cache  *objectCache
	logger zerolog.Logger
}

// New creates a metastore over the given catalog store. Caching mode comes
// from the configuration and is fixed for the metastore's lifetime.
func New(cfg *config.Config, store catalog.Store, logger zerolog.Logger) *Metastore {
	return &Metastore{
		store:  store,
		cache:  newObjectCache(cfg.CachingEnabled()),
		logger: logger.With().Str("component", ComponentType).Logger(),
	}
}

// GetType returns the component type identifier
func (m *Metastore) GetType() string {
	return ComponentType
}

// Shutdown gracefully shuts down the metastore and its catalog store
func (m *Metastore) Shutdown(ctx context.Context) error {
	m.logger.Debug().Msg("Shutting down metastore")
	return m.Close()
}

// Close releases the metastore, closing the underlying catalog store.
func (m *Metastore) Close() error {
	m.cache.reset()
	return m.store.Close()
}

// Store exposes the underlying catalog store.
func (m *Metastore) Store() catalog.Store {
	return m.store
}

// fetchTable returns the cached entry for the name, reading through to the
// store on a miss. Unknown tables return (nil, nil) like the store itself.
func (m *Metastore) fetchTable(ctx context.Context, name string) (*tableEntry, error) {
	key := strings.ToLower(name)
	if entry, ok := m.cache.getTable(key); ok {
		return entry, nil
	}
	row, err := m.store.GetTable(ctx, key)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	entry := &tableEntry{row: row, tag: cube.ClassifyRow(row)}
	m.cache.putTable(key, entry)
	return entry, nil
}

// requireTable is fetchTable for callers that need the table to exist.
func (m *Metastore) requireTable(ctx context.Context, name string) (*tableEntry, error) {
	entry, err := m.fetchTable(ctx, name)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errors.New(cattypes.ErrTableNotFound, "table does not exist", nil).
			AddContext("table", strings.ToLower(name))
	}
	return entry, nil
}

// requireTyped fetches a table and checks its classification tag.
func (m *Metastore) requireTyped(ctx context.Context, name string, want cube.TableType) (*tableEntry, error) {
	entry, err := m.requireTable(ctx, name)
	if err != nil {
		return nil, err
	}
	if entry.tag != want {
		return nil, errors.Newf(ErrWrongTableType, "table is not a %s", strings.ToLower(want.String())).
			AddContext("table", strings.ToLower(name)).
			AddContext("type", entry.tag.String())
	}
	return entry, nil
}

// refreshTable re-reads a row after a mutation so the cache agrees with the
// catalog. A row that vanished is evicted and reported as not found.
func (m *Metastore) refreshTable(ctx context.Context, name string) (*tableEntry, error) {
	key := strings.ToLower(name)
	row, err := m.store.GetTable(ctx, key)
	if err != nil {
		m.cache.evict(key)
		return nil, err
	}
	if row == nil {
		m.cache.evict(key)
		return nil, errors.New(cattypes.ErrTableNotFound, "table vanished during refresh", nil).
			AddContext("table", key)
	}
	entry := &tableEntry{row: row, tag: cube.ClassifyRow(row)}
	m.cache.putTable(key, entry)
	return entry, nil
}

// refreshFact rebuilds the cached fact model from a fresh row read. Decode
// failures evict the entry so a malformed row is never served from cache.
func (m *Metastore) refreshFact(ctx context.Context, name string) error {
	entry, err := m.refreshTable(ctx, name)
	if err != nil {
		return err
	}
	fact, err := cube.FactFromRow(entry.row)
	if err != nil {
		m.cache.evict(name)
		return err
	}
	m.cache.putFact(name, fact)
	return nil
}

// refreshDim rebuilds the cached dimension model from a fresh row read.
func (m *Metastore) refreshDim(ctx context.Context, name string) error {
	entry, err := m.refreshTable(ctx, name)
	if err != nil {
		return err
	}
	dim, err := cube.DimensionFromRow(entry.row)
	if err != nil {
		m.cache.evict(name)
		return err
	}
	m.cache.putDim(name, dim)
	return nil
}

// refreshCube rebuilds the cached cube model from a fresh row read.
func (m *Metastore) refreshCube(ctx context.Context, name string) error {
	entry, err := m.refreshTable(ctx, name)
	if err != nil {
		return err
	}
	cb, err := cube.CubeFromRow(entry.row)
	if err != nil {
		m.cache.evict(name)
		return err
	}
	m.cache.putCube(name, cb)
	return nil
}

// GetTable returns the raw catalog row of any table, cube entity or not.
func (m *Metastore) GetTable(ctx context.Context, name string) (*cattypes.Table, error) {
	entry, err := m.requireTable(ctx, name)
	if err != nil {
		return nil, err
	}
	return entry.row, nil
}

// TableExists reports whether the named table exists.
func (m *Metastore) TableExists(ctx context.Context, name string) (bool, error) {
	entry, err := m.fetchTable(ctx, name)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// AllTableNames returns the names of every catalog table, sorted.
func (m *Metastore) AllTableNames(ctx context.Context) ([]string, error) {
	return m.store.GetAllTables(ctx)
}

// IsCube reports whether the named table is a cube.
func (m *Metastore) IsCube(ctx context.Context, name string) (bool, error) {
	entry, err := m.requireTable(ctx, name)
	if err != nil {
		return false, err
	}
	return entry.tag == cube.TypeCube, nil
}

// IsFactTable reports whether the named table is a fact table.
func (m *Metastore) IsFactTable(ctx context.Context, name string) (bool, error) {
	entry, err := m.requireTable(ctx, name)
	if err != nil {
		return false, err
	}
	return entry.tag == cube.TypeFact, nil
}

// IsDimensionTable reports whether the named table is a dimension table.
func (m *Metastore) IsDimensionTable(ctx context.Context, name string) (bool, error) {
	entry, err := m.requireTable(ctx, name)
	if err != nil {
		return false, err
	}
	return entry.tag == cube.TypeDimension, nil
}

// GetCube returns the cube model for the name. A missing table fails with
// the catalog not-found code, a table of another kind with
// metastore.wrong_table_type.
func (m *Metastore) GetCube(ctx context.Context, name string) (*cube.Cube, error) {
	key := strings.ToLower(name)
	if cb, ok := m.cache.getCube(key); ok {
		return cb, nil
	}
	entry, err := m.requireTyped(ctx, key, cube.TypeCube)
	if err != nil {
		return nil, err
	}
	cb, err := cube.CubeFromRow(entry.row)
	if err != nil {
		return nil, err
	}
	m.cache.putCube(key, cb)
	return cb, nil
}

// GetFactTable returns the fact model for the name.
func (m *Metastore) GetFactTable(ctx context.Context, name string) (*cube.FactTable, error) {
	key := strings.ToLower(name)
	if fact, ok := m.cache.getFact(key); ok {
		return fact, nil
	}
	entry, err := m.requireTyped(ctx, key, cube.TypeFact)
	if err != nil {
		return nil, err
	}
	fact, err := cube.FactFromRow(entry.row)
	if err != nil {
		return nil, err
	}
	m.cache.putFact(key, fact)
	return fact, nil
}

// GetDimensionTable returns the dimension model for the name.
func (m *Metastore) GetDimensionTable(ctx context.Context, name string) (*cube.DimensionTable, error) {
	key := strings.ToLower(name)
	if dim, ok := m.cache.getDim(key); ok {
		return dim, nil
	}
	entry, err := m.requireTyped(ctx, key, cube.TypeDimension)
	if err != nil {
		return nil, err
	}
	dim, err := cube.DimensionFromRow(entry.row)
	if err != nil {
		return nil, err
	}
	m.cache.putDim(key, dim)
	return dim, nil
}

// AllCubes returns every cube in the catalog. Foreign tables and other
// entity kinds are skipped; a cube row that no longer decodes fails the
// listing.
func (m *Metastore) AllCubes(ctx context.Context) ([]*cube.Cube, error) {
	names, err := m.store.GetAllTables(ctx)
	if err != nil {
		return nil, err
	}
	cubes := make([]*cube.Cube, 0)
	for _, name := range names {
		entry, err := m.fetchTable(ctx, name)
		if err != nil {
			return nil, err
		}
		if entry == nil || entry.tag != cube.TypeCube {
			continue
		}
		cb, err := m.GetCube(ctx, name)
		if err != nil {
			return nil, err
		}
		cubes = append(cubes, cb)
	}
	return cubes, nil
}

// AllFactTables returns every fact table in the catalog.
func (m *Metastore) AllFactTables(ctx context.Context) ([]*cube.FactTable, error) {
	names, err := m.store.GetAllTables(ctx)
	if err != nil {
		return nil, err
	}
	facts := make([]*cube.FactTable, 0)
	for _, name := range names {
		entry, err := m.fetchTable(ctx, name)
		if err != nil {
			return nil, err
		}
		if entry == nil || entry.tag != cube.TypeFact {
			continue
		}
		fact, err := m.GetFactTable(ctx, name)
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

// AllDimensionTables returns every dimension table in the catalog.
func (m *Metastore) AllDimensionTables(ctx context.Context) ([]*cube.DimensionTable, error) {
	names, err := m.store.GetAllTables(ctx)
	if err != nil {
		return nil, err
	}
	dims := make([]*cube.DimensionTable, 0)
	for _, name := range names {
		entry, err := m.fetchTable(ctx, name)
		if err != nil {
			return nil, err
		}
		if entry == nil || entry.tag != cube.TypeDimension {
			continue
		}
		dim, err := m.GetDimensionTable(ctx, name)
		if err != nil {
			return nil, err
		}
		dims = append(dims, dim)
	}
	return dims, nil
}

// AllFactTablesForCube returns the fact tables declaring membership in the
// cube. The cube itself must exist.
func (m *Metastore) AllFactTablesForCube(ctx context.Context, cubeName string) ([]*cube.FactTable, error) {
	cb, err := m.GetCube(ctx, cubeName)
	if err != nil {
		return nil, err
	}
	facts, err := m.AllFactTables(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*cube.FactTable, 0, len(facts))
	for _, fact := range facts {
		if fact.BelongsTo(cb.Name) {
			matched = append(matched, fact)
		}
	}
	return matched, nil
}

// PartColumnNames returns the partition column names of a table, lowercased,
// in declaration order.
func (m *Metastore) PartColumnNames(ctx context.Context, tableName string) ([]string, error) {
	entry, err := m.requireTable(ctx, tableName)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entry.row.PartitionColumns))
	for _, col := range entry.row.PartitionColumns {
		names = append(names, strings.ToLower(col.Name))
	}
	return names, nil
}

// PartColumnExists reports whether the table declares the partition column,
// case-insensitively.
func (m *Metastore) PartColumnExists(ctx context.Context, tableName, column string) (bool, error) {
	names, err := m.PartColumnNames(ctx, tableName)
	if err != nil {
		return false, err
	}
	lowered := strings.ToLower(column)
	for _, name := range names {
		if name == lowered {
			return true, nil
		}
	}
	return false, nil
}

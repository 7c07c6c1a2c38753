package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/config"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ComponentType defines the memory catalog component type identifier
const ComponentType = "catalog"

// tableEntry holds a table together with its partitions, keyed by
// canonical spec
type tableEntry struct {
	table      *cattypes.Table
	partitions map[string]*cattypes.Partition
}

// Store implements the catalog in process memory. It carries the same
// semantics as the SQLite backend and is meant for tests and
// single-process setups that do not need durability.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*tableEntry
	clock  clockwork.Clock
	logger zerolog.Logger
}

// NewStore creates a memory-backed catalog store from the configuration
func NewStore(cfg *config.Config, logger zerolog.Logger) (*Store, error) {
	return NewStoreWithClock(logger, clockwork.NewRealClock()), nil
}

// NewStoreWithClock creates a store with an injectable clock, used by
// tests to control audit timestamps
func NewStoreWithClock(logger zerolog.Logger, clock clockwork.Clock) *Store {
	return &Store{
		tables: make(map[string]*tableEntry),
		clock:  clock,
		logger: logger,
	}
}

// Name returns the human-readable backend name
func (s *Store) Name() string {
	return "lattice-memory-catalog"
}

// GetType returns the component type identifier
func (s *Store) GetType() string {
	return ComponentType
}

// Shutdown gracefully shuts down the memory catalog store
func (s *Store) Shutdown(ctx context.Context) error {
	s.logger.Debug().Msg("Shutting down memory catalog store")
	return s.Close()
}

// Close drops all stored state
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]*tableEntry)
	return nil
}

// CreateTable creates a new table
func (s *Store) CreateTable(ctx context.Context, table *cattypes.Table) error {
	if table == nil || table.Name == "" {
		return errors.New(errors.CommonInvalidInput, "table name is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table.Name]; ok {
		return errors.New(cattypes.ErrTableAlreadyExists, "table already exists", nil).AddContext("table", table.Name)
	}

	stored := table.Clone()
	now := s.clock.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.tables[table.Name] = &tableEntry{
		table:      stored,
		partitions: make(map[string]*cattypes.Partition),
	}
	return nil
}

// GetTable returns the named table, or (nil, nil) if it does not exist
func (s *Store) GetTable(ctx context.Context, name string) (*cattypes.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tables[name]
	if !ok {
		return nil, nil
	}
	return entry.table.Clone(), nil
}

// AlterTable replaces the stored schema and properties of the table
func (s *Store) AlterTable(ctx context.Context, table *cattypes.Table) error {
	if table == nil || table.Name == "" {
		return errors.New(errors.CommonInvalidInput, "table name is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tables[table.Name]
	if !ok {
		return errors.New(cattypes.ErrTableNotFound, "table does not exist", nil).AddContext("table", table.Name)
	}

	stored := table.Clone()
	stored.CreatedAt = entry.table.CreatedAt
	stored.UpdatedAt = s.clock.Now().UTC()
	entry.table = stored
	return nil
}

// DropTable removes the table and its partitions
func (s *Store) DropTable(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; !ok {
		return errors.New(cattypes.ErrTableNotFound, "table does not exist", nil).AddContext("table", name)
	}
	delete(s.tables, name)
	return nil
}

// GetAllTables returns the names of all tables, sorted
func (s *Store) GetAllTables(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// TableExists reports whether the named table exists
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.tables[name]
	return ok, nil
}

// AddPartitions registers the batch atomically, upserting partitions
// whose values already exist
func (s *Store) AddPartitions(ctx context.Context, tableName string, partitions []*cattypes.Partition) error {
	if len(partitions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tables[tableName]
	if !ok {
		return errors.New(cattypes.ErrTableNotFound, "table does not exist", nil).AddContext("table", tableName)
	}

	// Validate the whole batch before touching anything so a bad member
	// leaves no partial writes behind
	for _, part := range partitions {
		if err := validateSpec(entry.table, part); err != nil {
			return err
		}
	}

	now := s.clock.Now().UTC()
	for _, part := range partitions {
		spec := cattypes.CanonicalSpec(part.Values)
		stored := part.Clone()
		stored.TableName = tableName

		if existing, ok := entry.partitions[spec]; ok {
			stored.CreatedAt = existing.CreatedAt
		} else {
			stored.CreatedAt = now
		}
		stored.UpdatedAt = now
		entry.partitions[spec] = stored
	}
	return nil
}

// GetPartition returns the exact-match partition, or (nil, nil) if absent
func (s *Store) GetPartition(ctx context.Context, tableName string, values map[string]string) (*cattypes.Partition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tables[tableName]
	if !ok {
		return nil, nil
	}

	part, ok := entry.partitions[cattypes.CanonicalSpec(values)]
	if !ok {
		return nil, nil
	}
	return part.Clone(), nil
}

// DropPartition removes the exact-match partition
func (s *Store) DropPartition(ctx context.Context, tableName string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tables[tableName]
	if !ok {
		return errors.New(cattypes.ErrTableNotFound, "table does not exist", nil).AddContext("table", tableName)
	}

	spec := cattypes.CanonicalSpec(values)
	if _, ok := entry.partitions[spec]; !ok {
		return errors.New(cattypes.ErrPartitionNotFound, "partition does not exist", nil).
			AddContext("table", tableName).
			AddContext("spec", spec)
	}
	delete(entry.partitions, spec)
	return nil
}

// GetPartitionsByFilter returns the partitions matching the filter,
// ordered by canonical spec
func (s *Store) GetPartitionsByFilter(ctx context.Context, tableName string, filter string) ([]*cattypes.Partition, error) {
	terms, err := cattypes.ParseFilter(filter)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tables[tableName]
	if !ok {
		return nil, errors.New(cattypes.ErrTableNotFound, "table does not exist", nil).AddContext("table", tableName)
	}

	specs := make([]string, 0, len(entry.partitions))
	for spec, part := range entry.partitions {
		if cattypes.MatchesFilter(part.Values, terms) {
			specs = append(specs, spec)
		}
	}
	sort.Strings(specs)

	parts := make([]*cattypes.Partition, 0, len(specs))
	for _, spec := range specs {
		parts = append(parts, entry.partitions[spec].Clone())
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return parts, nil
}

// GetNumPartitionsByFilter counts the partitions matching the filter
func (s *Store) GetNumPartitionsByFilter(ctx context.Context, tableName string, filter string) (int, error) {
	parts, err := s.GetPartitionsByFilter(ctx, tableName, filter)
	if err != nil {
		return 0, err
	}
	return len(parts), nil
}

// validateSpec checks a partition's value map against the table's
// partition columns
func validateSpec(table *cattypes.Table, part *cattypes.Partition) error {
	if part == nil || len(part.Values) == 0 {
		return errors.New(cattypes.ErrInvalidPartitionSpec, "partition values are required", nil).AddContext("table", table.Name)
	}

	for _, col := range table.PartitionColumns {
		if _, ok := part.Values[col.Name]; !ok {
			return errors.New(cattypes.ErrInvalidPartitionSpec, "partition value missing for partition column", nil).
				AddContext("table", table.Name).
				AddContext("column", col.Name)
		}
	}

	for name := range part.Values {
		if !table.HasPartitionColumn(name) {
			return errors.New(cattypes.ErrInvalidPartitionSpec, "value given for unknown partition column", nil).
				AddContext("table", table.Name).
				AddContext("column", name)
		}
	}

	return nil
}

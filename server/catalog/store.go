package catalog

import (
	"context"

	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/shared"
)

// Store defines the common interface for all catalog backends.
//
// Lookups for entities that are expected to be absent in normal
// operation return (nil, nil): GetTable for an unknown table and
// GetPartition for an unknown partition. Mutations against unknown
// entities return errors carrying the cattypes error codes so callers
// can classify them.
type Store interface {
	shared.Component

	// Name returns the human-readable backend name
	Name() string

	// CreateTable creates a new table. It fails with
	// cattypes.ErrTableAlreadyExists if the name is taken.
	CreateTable(ctx context.Context, table *cattypes.Table) error

	// GetTable returns the named table, or (nil, nil) if it does not exist
	GetTable(ctx context.Context, name string) (*cattypes.Table, error)

	// AlterTable replaces the stored schema and properties of the table
	// identified by table.Name
	AlterTable(ctx context.Context, table *cattypes.Table) error

	// DropTable removes the table and every partition registered under it
	DropTable(ctx context.Context, name string) error

	// GetAllTables returns the names of all tables, sorted
	GetAllTables(ctx context.Context) ([]string, error)

	// TableExists reports whether the named table exists
	TableExists(ctx context.Context, name string) (bool, error)

	// AddPartitions registers the given partitions of a table in a single
	// atomic batch: either all of them land or none do. A partition whose
	// values match an existing one replaces that partition's parameters
	// instead of failing.
	AddPartitions(ctx context.Context, tableName string, partitions []*cattypes.Partition) error

	// GetPartition returns the partition exactly matching the given value
	// map, or (nil, nil) if no such partition exists
	GetPartition(ctx context.Context, tableName string, values map[string]string) (*cattypes.Partition, error)

	// DropPartition removes the partition exactly matching the given value
	// map. It fails with cattypes.ErrPartitionNotFound if there is none.
	DropPartition(ctx context.Context, tableName string, values map[string]string) error

	// GetPartitionsByFilter returns the partitions of a table matching the
	// filter expression. An empty filter matches every partition.
	GetPartitionsByFilter(ctx context.Context, tableName string, filter string) ([]*cattypes.Partition, error)

	// GetNumPartitionsByFilter counts the partitions matching the filter
	// without materializing them
	GetNumPartitionsByFilter(ctx context.Context, tableName string, filter string) (int, error)

	// Close releases the backend's resources
	Close() error
}

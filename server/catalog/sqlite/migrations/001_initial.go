package migrations

import (
	"context"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/sqlite/models"
	"github.com/uptrace/bun"
)

// Package-specific error codes for migrations
var (
	MigrationTableCreationFailed = errors.MustNewCode("migrations.table_creation_failed")
	MigrationIndexCreationFailed = errors.MustNewCode("migrations.index_creation_failed")
)

// Migration001 represents the initial catalog schema migration
type Migration001 struct{}

// Version returns the migration version
func (m *Migration001) Version() int {
	return 1
}

// Name returns the migration name
func (m *Migration001) Name() string {
	return "initial_catalog_schema"
}

// Description returns the migration description
func (m *Migration001) Description() string {
	return "Initial catalog schema for tables, columns, partitions and partition values"
}

// Up runs the migration
func (m *Migration001) Up(ctx context.Context, tx bun.Tx) error {
	// Tables table (main table registry)
	if _, err := tx.NewCreateTable().
		Model((*models.Table)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.New(MigrationTableCreationFailed, "failed to create catalog_tables table", err)
	}

	tableIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_catalog_tables_name ON catalog_tables(name)`,
	}

	// Columns table (data and partition column definitions)
	if _, err := tx.NewCreateTable().
		Model((*models.TableColumn)(nil)).
		ForeignKey(`("table_id") REFERENCES "catalog_tables" ("id") ON DELETE CASCADE`).
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.New(MigrationTableCreationFailed, "failed to create catalog_columns table", err)
	}

	columnIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_catalog_columns_table ON catalog_columns(table_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_catalog_columns_table_name ON catalog_columns(table_id, name)`,
	}

	// Partitions table (partition registry keyed by canonical spec)
	if _, err := tx.NewCreateTable().
		Model((*models.Partition)(nil)).
		ForeignKey(`("table_id") REFERENCES "catalog_tables" ("id") ON DELETE CASCADE`).
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.New(MigrationTableCreationFailed, "failed to create catalog_partitions table", err)
	}

	partitionIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_catalog_partitions_table ON catalog_partitions(table_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_catalog_partitions_table_spec ON catalog_partitions(table_id, spec)`,
	}

	// Partition values table (normalized column/value pairs for filtering)
	if _, err := tx.NewCreateTable().
		Model((*models.PartitionValue)(nil)).
		ForeignKey(`("partition_id") REFERENCES "catalog_partitions" ("id") ON DELETE CASCADE`).
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.New(MigrationTableCreationFailed, "failed to create catalog_partition_values table", err)
	}

	partitionValueIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_catalog_partition_values_partition ON catalog_partition_values(partition_id)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_partition_values_lookup ON catalog_partition_values(column_name, value)`,
	}

	// Create all indexes
	allIndexes := [][]string{
		tableIndexes,
		columnIndexes,
		partitionIndexes,
		partitionValueIndexes,
	}

	for _, indexGroup := range allIndexes {
		for _, indexSQL := range indexGroup {
			if _, err := tx.ExecContext(ctx, indexSQL); err != nil {
				return errors.New(MigrationIndexCreationFailed, "failed to create index", err).AddContext("sql", indexSQL)
			}
		}
	}

	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/sqlite/migrations"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
)

// Migration interface that all migration files must implement
type Migration interface {
	Version() int
	Name() string
	Description() string
	Up(ctx context.Context, tx bun.Tx) error
}

// MigrationManager applies the catalog schema migrations in order
type MigrationManager struct {
	db     *bun.DB
	logger zerolog.Logger
}

// NewMigrationManager creates a migration manager on top of an open
// bun connection
func NewMigrationManager(db *bun.DB, logger zerolog.Logger) *MigrationManager {
	return &MigrationManager{
		db:     db,
		logger: logger,
	}
}

// MigrateToLatest runs all pending migrations in a single transaction
func (mm *MigrationManager) MigrateToLatest(ctx context.Context) error {
	currentVersion, err := mm.GetCurrentVersion(ctx)
	if err != nil {
		return errors.New(ErrMigrationFailed, "failed to get current migration version", err)
	}

	var pending []Migration
	for _, migration := range availableMigrations() {
		if migration.Version() > currentVersion {
			pending = append(pending, migration)
		}
	}

	if len(pending) == 0 {
		mm.logger.Debug().Int("version", currentVersion).Msg("No pending catalog migrations")
		return nil
	}

	tx, err := mm.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(ErrMigrationFailed, "failed to begin transaction for migrations", err)
	}
	defer tx.Rollback()

	for _, migration := range pending {
		mm.logger.Info().
			Int("version", migration.Version()).
			Str("name", migration.Name()).
			Msg("Running catalog migration")

		if err := migration.Up(ctx, tx); err != nil {
			return errors.New(ErrMigrationFailed, "catalog migration failed", err).
				AddContext("migration", migration.Name())
		}
	}

	// Record all applied migrations within the same transaction
	now := time.Now().UTC().Format(time.RFC3339)
	for _, migration := range pending {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO catalog_migrations (version, name, applied_at) VALUES (?, ?, ?)
		`, migration.Version(), migration.Name(), now)
		if err != nil {
			return errors.New(ErrMigrationFailed, "failed to record migration", err).
				AddContext("migration", migration.Name())
		}
	}

	// All migrations succeed or none do
	if err := tx.Commit(); err != nil {
		return errors.New(ErrMigrationFailed, "failed to commit migrations", err)
	}

	mm.logger.Info().Int("count", len(pending)).Msg("Catalog migrations completed")
	return nil
}

// availableMigrations returns all known migrations (hardcoded)
func availableMigrations() []Migration {
	return []Migration{
		&migrations.Migration001{}, // from migrations/001_initial.go
		// Future migrations will be added here
	}
}

// GetCurrentVersion returns the highest applied migration version
func (mm *MigrationManager) GetCurrentVersion(ctx context.Context) (int, error) {
	exists, err := mm.tableExists(ctx, "catalog_migrations")
	if err != nil {
		return 0, errors.New(ErrMigrationFailed, "failed to check migrations table", err)
	}

	if !exists {
		if err := mm.createMigrationsTable(ctx); err != nil {
			return 0, errors.New(ErrMigrationFailed, "failed to create migrations table", err)
		}
		return 0, nil
	}

	var version int
	err = mm.db.NewSelect().
		Column("version").
		Table("catalog_migrations").
		Order("version DESC").
		Limit(1).
		Scan(ctx, &version)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, errors.New(ErrMigrationFailed, "failed to get current version", err)
	}

	return version, nil
}

// createMigrationsTable creates the migrations tracking table
func (mm *MigrationManager) createMigrationsTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model(&struct {
			bun.BaseModel `bun:"table:catalog_migrations"`
			Version       int    `bun:"version,pk,type:integer"`
			Name          string `bun:"name,type:text,notnull"`
			AppliedAt     string `bun:"applied_at,type:text,notnull"`
		}{}).
		IfNotExists().
		Exec(ctx)
	return err
}

// VerifySchema verifies that every expected catalog table exists
func (mm *MigrationManager) VerifySchema(ctx context.Context) error {
	expectedTables := []string{
		"catalog_migrations", "catalog_tables", "catalog_columns",
		"catalog_partitions", "catalog_partition_values",
	}

	for _, tableName := range expectedTables {
		exists, err := mm.tableExists(ctx, tableName)
		if err != nil {
			return errors.New(ErrSchemaVerificationFailed, "failed to verify table", err).AddContext("table", tableName)
		}
		if !exists {
			return errors.New(ErrSchemaVerificationFailed, "expected table does not exist", nil).AddContext("table", tableName)
		}
	}

	return nil
}

// tableExists checks if a table exists
func (mm *MigrationManager) tableExists(ctx context.Context, tableName string) (bool, error) {
	var exists int
	err := mm.db.NewRaw("SELECT 1 FROM sqlite_master WHERE type='table' AND name=?", tableName).Scan(ctx, &exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

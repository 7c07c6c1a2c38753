package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/catalog/sqlite/models"
	"github.com/gear6io/lattice/server/config"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// ComponentType defines the SQLite catalog component type identifier
const ComponentType = "catalog"

// Store implements the catalog on SQLite with bun migrations
type Store struct {
	db       *bun.DB
	dbPath   string
	clock    clockwork.Clock
	logger   zerolog.Logger
	migrator *MigrationManager
}

// NewStore creates a SQLite-backed catalog store from the configuration
func NewStore(cfg *config.Config, logger zerolog.Logger) (*Store, error) {
	return NewStoreWithClock(cfg.GetCatalogPath(), logger, clockwork.NewRealClock())
}

// NewStoreWithClock creates a store with an injectable clock, used by
// tests to control audit timestamps
func NewStoreWithClock(dbPath string, logger zerolog.Logger, clock clockwork.Clock) (*Store, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.New(ErrDirectoryCreateFailed, "failed to create catalog directory", err).AddContext("path", dbPath)
	}

	sqldb, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, errors.New(ErrDatabaseOpenFailed, "failed to open SQLite database", err).AddContext("path", dbPath)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	store := &Store{
		db:     db,
		dbPath: dbPath,
		clock:  clock,
		logger: logger,
	}
	store.migrator = NewMigrationManager(db, logger)

	ctx := context.Background()
	if err := store.migrator.MigrateToLatest(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := store.migrator.VerifySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Name returns the human-readable backend name
func (s *Store) Name() string {
	return "lattice-sqlite-catalog"
}

// GetType returns the component type identifier
func (s *Store) GetType() string {
	return ComponentType
}

// Shutdown gracefully shuts down the SQLite catalog store
func (s *Store) Shutdown(ctx context.Context) error {
	s.logger.Debug().Str("path", s.dbPath).Msg("Shutting down SQLite catalog store")
	return s.Close()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return errors.New(ErrDatabaseCloseFailed, "failed to close SQLite catalog store", err)
		}
	}
	return nil
}

// CreateTable creates a new table with its columns in a single transaction
func (s *Store) CreateTable(ctx context.Context, table *cattypes.Table) error {
	if table == nil || table.Name == "" {
		return errors.New(errors.CommonInvalidInput, "table name is required", nil)
	}

	exists, err := s.TableExists(ctx, table.Name)
	if err != nil {
		return err
	}
	if exists {
		return errors.New(cattypes.ErrTableAlreadyExists, "table already exists", nil).AddContext("table", table.Name)
	}

	props, err := marshalKeyValues(table.Properties)
	if err != nil {
		return errors.New(ErrEncodingFailed, "failed to marshal table properties", err).AddContext("table", table.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(ErrTransactionFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := s.clock.Now().UTC()
	row := &models.Table{
		Name:       table.Name,
		Properties: props,
		TimeAuditable: models.TimeAuditable{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
		return errors.New(cattypes.ErrOperationFailed, "failed to insert table", err).AddContext("table", table.Name)
	}

	if err := insertColumns(ctx, tx, row.ID, table); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.New(ErrTransactionFailed, "failed to commit transaction", err)
	}

	return nil
}

// GetTable returns the named table, or (nil, nil) if it does not exist
func (s *Store) GetTable(ctx context.Context, name string) (*cattypes.Table, error) {
	_, table, err := s.getTableWithRow(ctx, name)
	return table, err
}

// getTableWithRow fetches the raw table row together with its converted
// form, (nil, nil, nil) when the table is absent
func (s *Store) getTableWithRow(ctx context.Context, name string) (*models.Table, *cattypes.Table, error) {
	row, err := s.getTableRow(ctx, name)
	if err != nil || row == nil {
		return nil, nil, err
	}

	var columns []*models.TableColumn
	err = s.db.NewSelect().
		Model(&columns).
		Where("table_id = ?", row.ID).
		Order("ordinal_position ASC").
		Scan(ctx)
	if err != nil {
		return nil, nil, errors.New(ErrQueryFailed, "failed to query table columns", err).AddContext("table", name)
	}

	table, err := rowToTable(row, columns)
	if err != nil {
		return nil, nil, err
	}
	return row, table, nil
}

// AlterTable replaces the stored schema and properties of the table
func (s *Store) AlterTable(ctx context.Context, table *cattypes.Table) error {
	if table == nil || table.Name == "" {
		return errors.New(errors.CommonInvalidInput, "table name is required", nil)
	}

	row, err := s.getTableRow(ctx, table.Name)
	if err != nil {
		return err
	}
	if row == nil {
		return errors.New(cattypes.ErrTableNotFound, "table does not exist", nil).AddContext("table", table.Name)
	}

	props, err := marshalKeyValues(table.Properties)
	if err != nil {
		return errors.New(ErrEncodingFailed, "failed to marshal table properties", err).AddContext("table", table.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(ErrTransactionFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := s.clock.Now().UTC()
	_, err = tx.NewUpdate().
		Model((*models.Table)(nil)).
		Set("properties = ?", props).
		Set("updated_at = ?", now).
		Where("id = ?", row.ID).
		Exec(ctx)
	if err != nil {
		return errors.New(cattypes.ErrOperationFailed, "failed to update table", err).AddContext("table", table.Name)
	}

	// Replace the column set wholesale, ordinals are rebuilt
	_, err = tx.NewDelete().
		Model((*models.TableColumn)(nil)).
		Where("table_id = ?", row.ID).
		Exec(ctx)
	if err != nil {
		return errors.New(cattypes.ErrOperationFailed, "failed to delete old columns", err).AddContext("table", table.Name)
	}

	if err := insertColumns(ctx, tx, row.ID, table); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.New(ErrTransactionFailed, "failed to commit transaction", err)
	}

	return nil
}

// DropTable removes the table, its columns and partitions cascade
func (s *Store) DropTable(ctx context.Context, name string) error {
	res, err := s.db.NewDelete().
		Model((*models.Table)(nil)).
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return errors.New(cattypes.ErrOperationFailed, "failed to drop table", err).AddContext("table", name)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.New(cattypes.ErrOperationFailed, "failed to get rows affected", err)
	}
	if affected == 0 {
		return errors.New(cattypes.ErrTableNotFound, "table does not exist", nil).AddContext("table", name)
	}

	return nil
}

// GetAllTables returns the names of all tables, sorted
func (s *Store) GetAllTables(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.NewSelect().
		Model((*models.Table)(nil)).
		Column("name").
		Order("name ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, errors.New(ErrQueryFailed, "failed to query tables", err)
	}
	return names, nil
}

// TableExists reports whether the named table exists
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*models.Table)(nil)).
		Where("name = ?", name).
		Exists(ctx)
	if err != nil {
		return false, errors.New(ErrQueryFailed, "failed to check table existence", err).AddContext("table", name)
	}
	return exists, nil
}

// AddPartitions registers the batch atomically, upserting partitions
// whose values already exist
func (s *Store) AddPartitions(ctx context.Context, tableName string, partitions []*cattypes.Partition) error {
	if len(partitions) == 0 {
		return nil
	}

	row, table, err := s.getTableWithRow(ctx, tableName)
	if err != nil {
		return err
	}
	if table == nil {
		return errors.New(cattypes.ErrTableNotFound, "table does not exist", nil).AddContext("table", tableName)
	}

	for _, part := range partitions {
		if err := validateSpec(table, part); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(ErrTransactionFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := s.clock.Now().UTC()
	for _, part := range partitions {
		if err := s.upsertPartition(ctx, tx, row.ID, tableName, part, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.New(ErrTransactionFailed, "failed to commit transaction", err)
	}

	return nil
}

// GetPartition returns the exact-match partition, or (nil, nil) if absent
func (s *Store) GetPartition(ctx context.Context, tableName string, values map[string]string) (*cattypes.Partition, error) {
	row, err := s.getTableRow(ctx, tableName)
	if err != nil || row == nil {
		return nil, err
	}

	var part models.Partition
	err = s.db.NewSelect().
		Model(&part).
		Where("table_id = ? AND spec = ?", row.ID, cattypes.CanonicalSpec(values)).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(ErrQueryFailed, "failed to query partition", err).AddContext("table", tableName)
	}

	parts, err := s.attachValues(ctx, tableName, []*models.Partition{&part})
	if err != nil {
		return nil, err
	}
	return parts[0], nil
}

// DropPartition removes the exact-match partition
func (s *Store) DropPartition(ctx context.Context, tableName string, values map[string]string) error {
	row, err := s.getTableRow(ctx, tableName)
	if err != nil {
		return err
	}
	if row == nil {
		return errors.New(cattypes.ErrTableNotFound, "table does not exist", nil).AddContext("table", tableName)
	}

	res, err := s.db.NewDelete().
		Model((*models.Partition)(nil)).
		Where("table_id = ? AND spec = ?", row.ID, cattypes.CanonicalSpec(values)).
		Exec(ctx)
	if err != nil {
		return errors.New(cattypes.ErrOperationFailed, "failed to drop partition", err).AddContext("table", tableName)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.New(cattypes.ErrOperationFailed, "failed to get rows affected", err)
	}
	if affected == 0 {
		return errors.New(cattypes.ErrPartitionNotFound, "partition does not exist", nil).
			AddContext("table", tableName).
			AddContext("spec", cattypes.CanonicalSpec(values))
	}

	return nil
}

// GetPartitionsByFilter returns the partitions matching the filter,
// ordered by canonical spec
func (s *Store) GetPartitionsByFilter(ctx context.Context, tableName string, filter string) ([]*cattypes.Partition, error) {
	query, err := s.filterQuery(ctx, tableName, filter)
	if err != nil || query == nil {
		return nil, err
	}

	var rows []*models.Partition
	err = query.Model(&rows).Order("spec ASC").Scan(ctx)
	if err != nil {
		return nil, errors.New(ErrQueryFailed, "failed to query partitions", err).AddContext("table", tableName)
	}

	return s.attachValues(ctx, tableName, rows)
}

// GetNumPartitionsByFilter counts the partitions matching the filter
func (s *Store) GetNumPartitionsByFilter(ctx context.Context, tableName string, filter string) (int, error) {
	query, err := s.filterQuery(ctx, tableName, filter)
	if err != nil {
		return 0, err
	}
	if query == nil {
		return 0, nil
	}

	count, err := query.Model((*models.Partition)(nil)).Count(ctx)
	if err != nil {
		return 0, errors.New(ErrQueryFailed, "failed to count partitions", err).AddContext("table", tableName)
	}
	return count, nil
}

// filterQuery builds the partition select for a parsed filter. It
// returns a nil query when the table itself does not exist.
func (s *Store) filterQuery(ctx context.Context, tableName string, filter string) (*bun.SelectQuery, error) {
	terms, err := cattypes.ParseFilter(filter)
	if err != nil {
		return nil, err
	}

	row, err := s.getTableRow(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.New(cattypes.ErrTableNotFound, "table does not exist", nil).AddContext("table", tableName)
	}

	query := s.db.NewSelect().Where("table_id = ?", row.ID)
	for _, term := range terms {
		query = query.Where(
			"EXISTS (SELECT 1 FROM catalog_partition_values pv WHERE pv.partition_id = cp.id AND pv.column_name = ? AND pv.value = ?)",
			term.Column, term.Value,
		)
	}
	return query, nil
}

// getTableRow fetches the raw table row, (nil, nil) when absent
func (s *Store) getTableRow(ctx context.Context, name string) (*models.Table, error) {
	var row models.Table
	err := s.db.NewSelect().
		Model(&row).
		Where("name = ?", name).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(ErrQueryFailed, "failed to query table", err).AddContext("table", name)
	}
	return &row, nil
}

// upsertPartition inserts a new partition or refreshes the parameters
// of the one already holding the same values
func (s *Store) upsertPartition(ctx context.Context, tx bun.Tx, tableID int64, tableName string, part *cattypes.Partition, now time.Time) error {
	spec := cattypes.CanonicalSpec(part.Values)
	params, err := marshalKeyValues(part.Parameters)
	if err != nil {
		return errors.New(ErrEncodingFailed, "failed to marshal partition parameters", err).AddContext("table", tableName)
	}

	var existing models.Partition
	err = tx.NewSelect().
		Model(&existing).
		Where("table_id = ? AND spec = ?", tableID, spec).
		Scan(ctx)
	if err == nil {
		_, err = tx.NewUpdate().
			Model((*models.Partition)(nil)).
			Set("parameters = ?", params).
			Set("updated_at = ?", now).
			Where("id = ?", existing.ID).
			Exec(ctx)
		if err != nil {
			return errors.New(cattypes.ErrOperationFailed, "failed to update partition", err).
				AddContext("table", tableName).
				AddContext("spec", spec)
		}
		return nil
	}
	if err != sql.ErrNoRows {
		return errors.New(ErrQueryFailed, "failed to query partition", err).
			AddContext("table", tableName).
			AddContext("spec", spec)
	}

	row := &models.Partition{
		ID:         uuid.New().String(),
		TableID:    tableID,
		Spec:       spec,
		Parameters: params,
		TimeAuditable: models.TimeAuditable{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
		return errors.New(cattypes.ErrOperationFailed, "failed to insert partition", err).
			AddContext("table", tableName).
			AddContext("spec", spec)
	}

	valueRows := make([]*models.PartitionValue, 0, len(part.Values))
	for column, value := range part.Values {
		valueRows = append(valueRows, &models.PartitionValue{
			PartitionID: row.ID,
			ColumnName:  column,
			Value:       value,
		})
	}
	if _, err := tx.NewInsert().Model(&valueRows).Exec(ctx); err != nil {
		return errors.New(cattypes.ErrOperationFailed, "failed to insert partition values", err).
			AddContext("table", tableName).
			AddContext("spec", spec)
	}

	return nil
}

// attachValues loads the value rows for a batch of partitions and
// converts them to catalog partitions
func (s *Store) attachValues(ctx context.Context, tableName string, rows []*models.Partition) ([]*cattypes.Partition, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var values []*models.PartitionValue
	err := s.db.NewSelect().
		Model(&values).
		Where("partition_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, errors.New(ErrQueryFailed, "failed to query partition values", err).AddContext("table", tableName)
	}

	byPartition := make(map[string]map[string]string, len(rows))
	for _, value := range values {
		if byPartition[value.PartitionID] == nil {
			byPartition[value.PartitionID] = make(map[string]string)
		}
		byPartition[value.PartitionID][value.ColumnName] = value.Value
	}

	parts := make([]*cattypes.Partition, 0, len(rows))
	for _, row := range rows {
		params, err := unmarshalKeyValues(row.Parameters)
		if err != nil {
			return nil, errors.New(ErrEncodingFailed, "failed to unmarshal partition parameters", err).AddContext("table", tableName)
		}
		parts = append(parts, &cattypes.Partition{
			TableName:  tableName,
			Values:     byPartition[row.ID],
			Parameters: params,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
		})
	}
	return parts, nil
}

// insertColumns writes the full column set of a table, data columns
// first and partition columns after them
func insertColumns(ctx context.Context, tx bun.Tx, tableID int64, table *cattypes.Table) error {
	ordinal := 0
	rows := make([]*models.TableColumn, 0, len(table.Columns)+len(table.PartitionColumns))

	appendColumns := func(columns []cattypes.Column, isPartition bool) {
		for _, col := range columns {
			rows = append(rows, &models.TableColumn{
				TableID:         tableID,
				Name:            col.Name,
				Type:            col.Type,
				Comment:         col.Comment,
				IsPartition:     isPartition,
				OrdinalPosition: ordinal,
			})
			ordinal++
		}
	}
	appendColumns(table.Columns, false)
	appendColumns(table.PartitionColumns, true)

	if len(rows) == 0 {
		return nil
	}

	if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return errors.New(cattypes.ErrOperationFailed, "failed to insert columns", err).AddContext("table", table.Name)
	}
	return nil
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

// rowToTable converts raw rows into a catalog table
func rowToTable(row *models.Table, columns []*models.TableColumn) (*cattypes.Table, error) {
	props, err := unmarshalKeyValues(row.Properties)
	if err != nil {
		return nil, errors.New(ErrEncodingFailed, "failed to unmarshal table properties", err).AddContext("table", row.Name)
	}

	table := &cattypes.Table{
		Name:       row.Name,
		Properties: props,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	for _, col := range columns {
		converted := cattypes.Column{Name: col.Name, Type: col.Type, Comment: col.Comment}
		if col.IsPartition {
			table.PartitionColumns = append(table.PartitionColumns, converted)
		} else {
			table.Columns = append(table.Columns, converted)
		}
	}
	return table, nil
}

// marshalKeyValues renders a string map as JSON text, nil maps become
// the empty object
func marshalKeyValues(kv map[string]string) (string, error) {
	if len(kv) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(kv)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalKeyValues parses JSON text back into a string map
func unmarshalKeyValues(data string) (map[string]string, error) {
	kv := make(map[string]string)
	if data == "" {
		return kv, nil
	}
	if err := json.Unmarshal([]byte(data), &kv); err != nil {
		return nil, err
	}
	return kv, nil
}

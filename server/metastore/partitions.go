package metastore

import (
	"context"
	"strings"
	"time"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/cube"
	"github.com/gear6io/lattice/utils"
)

// AddPartition registers a partition of an entity on a storage. The data
// partition and any latest marker moves it causes land in one atomic batch,
// so a reader never sees the data without its markers. Re-registering an
// existing partition replaces its parameters.
func (m *Metastore) AddPartition(ctx context.Context, desc *cube.StoragePartitionDesc, storage *cube.Storage) error {
	if desc == nil || desc.EntityName == "" {
		return errors.New(errors.CommonInvalidInput, "partition description needs an entity name", nil)
	}
	if storage == nil {
		return errors.New(errors.CommonInvalidInput, "storage is required", nil)
	}
	if len(desc.TimeSpec) > 0 && desc.UpdatePeriod == cube.UpdatePeriodUnknown {
		return errors.New(cube.ErrInvalidUpdatePeriod, "partition write with time values needs an update period", nil).
			AddContext("entity", strings.ToLower(desc.EntityName))
	}

	tableName := storage.TableName(desc.EntityName)
	entry, err := m.requireTable(ctx, tableName)
	if err != nil {
		return err
	}
	latest, err := m.latestInfo(ctx, entry.row, desc)
	if err != nil {
		return err
	}
	batch := cube.PartitionBatch(entry.row, desc, latest)
	if err := m.store.AddPartitions(ctx, tableName, batch); err != nil {
		return err
	}
	m.logger.Info().
		Str("op_id", utils.GenerateOperationID()).
		Str("table", tableName).
		Strs("markers_moved", latest.ColumnNames()).
		Msg("Added partition")
	return nil
}

// PartitionExists reports whether a storage table holds the partition whose
// time values format to the given spec at the period.
func (m *Metastore) PartitionExists(ctx context.Context, storageTableName string, period cube.UpdatePeriod, timestamps map[string]time.Time) (bool, error) {
	return m.partitionExists(ctx, storageTableName, cube.PartitionSpec(period, timestamps))
}

// FactPartitionExists reports whether a fact's storage holds the partition
// for the timestamps at the period, merged with any extra non-time spec
// values. Formatted timestamps win over extra values for the same column.
func (m *Metastore) FactPartitionExists(ctx context.Context, factName string, storage *cube.Storage, period cube.UpdatePeriod, timestamps map[string]time.Time, extraSpec map[string]string) (bool, error) {
	if storage == nil {
		return false, errors.New(errors.CommonInvalidInput, "storage is required", nil)
	}
	spec := make(map[string]string, len(extraSpec)+len(timestamps))
	for column, value := range extraSpec {
		spec[strings.ToLower(column)] = value
	}
	for column, value := range cube.PartitionSpec(period, timestamps) {
		spec[column] = value
	}
	return m.partitionExists(ctx, storage.TableName(factName), spec)
}

// DimPartitionExists reports whether a dimension's storage holds the
// snapshot partition for the timestamps, formatted at the dump period the
// dimension tracks for that storage.
func (m *Metastore) DimPartitionExists(ctx context.Context, dimName string, storage *cube.Storage, timestamps map[string]time.Time) (bool, error) {
	if storage == nil {
		return false, errors.New(errors.CommonInvalidInput, "storage is required", nil)
	}
	dim, err := m.GetDimensionTable(ctx, dimName)
	if err != nil {
		return false, err
	}
	period, ok := dim.SnapshotDumpPeriods[storage.Name]
	if !ok {
		return false, errors.New(ErrStorageMismatch, "dimension does not track the storage", nil).
			AddContext("dimension", dim.Name).
			AddContext("storage", storage.Name)
	}
	return m.PartitionExists(ctx, storage.TableName(dimName), period, timestamps)
}

// LatestPartitionExists reports whether a fact's storage has a latest marker
// for the time partition column.
func (m *Metastore) LatestPartitionExists(ctx context.Context, factName string, storage *cube.Storage, column string) (bool, error) {
	if storage == nil {
		return false, errors.New(errors.CommonInvalidInput, "storage is required", nil)
	}
	return m.PartitionExistsByFilter(ctx, storage.TableName(factName), cube.LatestPartFilter(column))
}

// PartitionExistsByFilter reports whether a storage table has any partition
// matching the filter.
func (m *Metastore) PartitionExistsByFilter(ctx context.Context, storageTableName string, filter string) (bool, error) {
	count, err := m.GetNumPartitionsByFilter(ctx, storageTableName, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetPartitionsByFilter returns the partitions of a storage table matching
// the filter expression.
func (m *Metastore) GetPartitionsByFilter(ctx context.Context, storageTableName string, filter string) ([]*cattypes.Partition, error) {
	if _, err := m.requireTable(ctx, storageTableName); err != nil {
		return nil, err
	}
	return m.store.GetPartitionsByFilter(ctx, strings.ToLower(storageTableName), filter)
}

// GetNumPartitionsByFilter counts the partitions of a storage table matching
// the filter expression.
func (m *Metastore) GetNumPartitionsByFilter(ctx context.Context, storageTableName string, filter string) (int, error) {
	if _, err := m.requireTable(ctx, storageTableName); err != nil {
		return 0, err
	}
	return m.store.GetNumPartitionsByFilter(ctx, strings.ToLower(storageTableName), filter)
}

func (m *Metastore) partitionExists(ctx context.Context, tableName string, spec map[string]string) (bool, error) {
	if _, err := m.requireTable(ctx, tableName); err != nil {
		return false, err
	}
	part, err := m.store.GetPartition(ctx, strings.ToLower(tableName), spec)
	if err != nil {
		return false, err
	}
	return part != nil, nil
}

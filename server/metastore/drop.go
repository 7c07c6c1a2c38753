package metastore

import (
	"context"
	"strings"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/cube"
	"github.com/gear6io/lattice/utils"
)

// DropCube removes a cube's row. Facts declaring membership in the cube are
// left alone; membership is the fact's own metadata.
func (m *Metastore) DropCube(ctx context.Context, name string) error {
	key := strings.ToLower(name)
	if _, err := m.requireTyped(ctx, key, cube.TypeCube); err != nil {
		return err
	}
	if err := m.store.DropTable(ctx, key); err != nil {
		return err
	}
	m.cache.evict(key)
	m.logger.Info().Str("op_id", utils.GenerateOperationID()).Str("cube", key).Msg("Dropped cube")
	return nil
}

// DropFactTable removes a fact. With cascade each tracked storage is dropped
// first, physical tables included; without it the storage tables survive as
// orphans and only the fact's row goes away.
func (m *Metastore) DropFactTable(ctx context.Context, name string, cascade bool) error {
	key := strings.ToLower(name)
	entry, err := m.requireTyped(ctx, key, cube.TypeFact)
	if err != nil {
		return err
	}

	opID := utils.GenerateOperationID()
	if cascade {
		fact, err := cube.FactFromRow(entry.row)
		if err != nil {
			return err
		}
		for _, storageName := range fact.Storages() {
			if err := m.DropFactStorage(ctx, key, storageName); err != nil {
				return errors.AsError(err).AddContext("fact", key)
			}
		}
	}
	if err := m.store.DropTable(ctx, key); err != nil {
		return err
	}
	m.cache.evict(key)
	m.logger.Info().
		Str("op_id", opID).
		Str("fact", key).
		Bool("cascade", cascade).
		Msg("Dropped fact table")
	return nil
}

// DropDimensionTable removes a dimension table, honoring the cascade flag the
// same way facts do.
func (m *Metastore) DropDimensionTable(ctx context.Context, name string, cascade bool) error {
	key := strings.ToLower(name)
	entry, err := m.requireTyped(ctx, key, cube.TypeDimension)
	if err != nil {
		return err
	}

	opID := utils.GenerateOperationID()
	if cascade {
		dim, err := cube.DimensionFromRow(entry.row)
		if err != nil {
			return err
		}
		for _, storageName := range dim.Storages() {
			if err := m.DropDimStorage(ctx, key, storageName); err != nil {
				return errors.AsError(err).AddContext("dimension", key)
			}
		}
	}
	if err := m.store.DropTable(ctx, key); err != nil {
		return err
	}
	m.cache.evict(key)
	m.logger.Info().
		Str("op_id", opID).
		Str("dimension", key).
		Bool("cascade", cascade).
		Msg("Dropped dimension table")
	return nil
}

// DropFactStorage untracks a storage from a fact and drops its physical
// table, partitions included. The physical table is addressed by the default
// storage prefix.
func (m *Metastore) DropFactStorage(ctx context.Context, factName, storageName string) error {
	key := strings.ToLower(factName)
	entry, err := m.requireTyped(ctx, key, cube.TypeFact)
	if err != nil {
		return err
	}
	fact, err := cube.FactFromRow(entry.row)
	if err != nil {
		return err
	}
	storage := cube.NewStorage(storageName)
	if !fact.HasStorage(storage.Name) {
		return errors.New(ErrStorageMismatch, "fact does not track the storage", nil).
			AddContext("fact", key).
			AddContext("storage", storage.Name)
	}
	delete(fact.StorageUpdatePeriods, storage.Name)

	tableName := storage.TableName(key)
	if err := m.store.DropTable(ctx, tableName); err != nil {
		return err
	}
	m.cache.evict(tableName)

	merged, _ := mergeEntityRow(entry.row, fact.ToRow())
	if err := m.store.AlterTable(ctx, merged); err != nil {
		return err
	}
	if err := m.refreshFact(ctx, key); err != nil {
		return err
	}
	m.logger.Info().
		Str("op_id", utils.GenerateOperationID()).
		Str("fact", key).
		Str("storage", storage.Name).
		Msg("Dropped storage from fact table")
	return nil
}

// DropDimStorage untracks a storage from a dimension table and drops its
// physical table.
func (m *Metastore) DropDimStorage(ctx context.Context, dimName, storageName string) error {
	key := strings.ToLower(dimName)
	entry, err := m.requireTyped(ctx, key, cube.TypeDimension)
	if err != nil {
		return err
	}
	dim, err := cube.DimensionFromRow(entry.row)
	if err != nil {
		return err
	}
	storage := cube.NewStorage(storageName)
	if !dim.HasStorage(storage.Name) {
		return errors.New(ErrStorageMismatch, "dimension does not track the storage", nil).
			AddContext("dimension", key).
			AddContext("storage", storage.Name)
	}
	delete(dim.SnapshotDumpPeriods, storage.Name)

	tableName := storage.TableName(key)
	if err := m.store.DropTable(ctx, tableName); err != nil {
		return err
	}
	m.cache.evict(tableName)

	merged, _ := mergeEntityRow(entry.row, dim.ToRow())
	if err := m.store.AlterTable(ctx, merged); err != nil {
		return err
	}
	if err := m.refreshDim(ctx, key); err != nil {
		return err
	}
	m.logger.Info().
		Str("op_id", utils.GenerateOperationID()).
		Str("dimension", key).
		Str("storage", storage.Name).
		Msg("Dropped storage from dimension table")
	return nil
}

package metastore

import (
	"context"
	"strings"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/cube"
	"github.com/gear6io/lattice/utils"
)

// mergeEntityRow folds an entity's serialized row into the stored one:
// properties merge with the new value winning, columns are replaced only
// when they differ. Merging never deletes a property, so keys the new
// definition no longer writes survive on the row; readers go through the
// entity's tracking lists and ignore them.
func mergeEntityRow(stored, updated *cattypes.Table) (*cattypes.Table, bool) {
	merged := stored.Clone()
	if merged.Properties == nil {
		merged.Properties = make(map[string]string, len(updated.Properties))
	}
	for k, v := range updated.Properties {
		merged.Properties[k] = v
	}
	columnsChanged := !cattypes.ColumnsEqual(stored.Columns, updated.Columns)
	if columnsChanged {
		merged.Columns = append([]cattypes.Column(nil), updated.Columns...)
	}
	return merged, columnsChanged
}

// AlterCube replaces a cube's definition. Properties merge, columns replace.
func (m *Metastore) AlterCube(ctx context.Context, name string, cb *cube.Cube) error {
	key := strings.ToLower(name)
	if cb == nil {
		return errors.New(errors.CommonInvalidInput, "cube definition is required", nil)
	}
	if cb.Name != key {
		return errors.New(ErrEntityNameMismatch, "new definition is named differently from the cube being altered", nil).
			AddContext("cube", key).
			AddContext("definition", cb.Name)
	}

	entry, err := m.requireTyped(ctx, key, cube.TypeCube)
	if err != nil {
		return err
	}
	merged, _ := mergeEntityRow(entry.row, cb.ToRow())
	if err := m.store.AlterTable(ctx, merged); err != nil {
		return err
	}
	if err := m.refreshCube(ctx, key); err != nil {
		return err
	}
	m.logger.Info().Str("op_id", utils.GenerateOperationID()).Str("cube", key).Msg("Altered cube")
	return nil
}

// AlterFactTable replaces a fact's definition. When the columns changed the
// new schema fans out to every storage table of the fact. A fan-out failure
// leaves earlier storage tables altered; the cached model is refreshed off
// the row regardless, so the cache never disagrees with the catalog.
func (m *Metastore) AlterFactTable(ctx context.Context, name string, fact *cube.FactTable) error {
	key := strings.ToLower(name)
	if fact == nil {
		return errors.New(errors.CommonInvalidInput, "fact definition is required", nil)
	}
	if fact.Name != key {
		return errors.New(ErrEntityNameMismatch, "new definition is named differently from the fact being altered", nil).
			AddContext("fact", key).
			AddContext("definition", fact.Name)
	}

	entry, err := m.requireTyped(ctx, key, cube.TypeFact)
	if err != nil {
		return err
	}
	merged, columnsChanged := mergeEntityRow(entry.row, fact.ToRow())
	if err := m.store.AlterTable(ctx, merged); err != nil {
		return err
	}

	opID := utils.GenerateOperationID()
	var fanOutErr error
	if columnsChanged {
		fanOutErr = m.alterStorageSchemas(ctx, key, fact.Storages(), fact.Columns)
	}

	if err := m.refreshFact(ctx, key); err != nil {
		if fanOutErr != nil {
			m.logger.Error().Err(err).Str("op_id", opID).Str("fact", key).Msg("Cache refresh failed after fact alter")
			return fanOutErr
		}
		return err
	}
	if fanOutErr != nil {
		return fanOutErr
	}
	m.logger.Info().
		Str("op_id", opID).
		Str("fact", key).
		Bool("columns_changed", columnsChanged).
		Msg("Altered fact table")
	return nil
}

// AlterDimensionTable replaces a dimension table's definition with the same
// column fan-out behavior as facts.
func (m *Metastore) AlterDimensionTable(ctx context.Context, name string, dim *cube.DimensionTable) error {
	key := strings.ToLower(name)
	if dim == nil {
		return errors.New(errors.CommonInvalidInput, "dimension definition is required", nil)
	}
	if dim.Name != key {
		return errors.New(ErrEntityNameMismatch, "new definition is named differently from the dimension being altered", nil).
			AddContext("dimension", key).
			AddContext("definition", dim.Name)
	}

	entry, err := m.requireTyped(ctx, key, cube.TypeDimension)
	if err != nil {
		return err
	}
	merged, columnsChanged := mergeEntityRow(entry.row, dim.ToRow())
	if err := m.store.AlterTable(ctx, merged); err != nil {
		return err
	}

	opID := utils.GenerateOperationID()
	var fanOutErr error
	if columnsChanged {
		fanOutErr = m.alterStorageSchemas(ctx, key, dim.Storages(), dim.Columns)
	}

	if err := m.refreshDim(ctx, key); err != nil {
		if fanOutErr != nil {
			m.logger.Error().Err(err).Str("op_id", opID).Str("dimension", key).Msg("Cache refresh failed after dimension alter")
			return fanOutErr
		}
		return err
	}
	if fanOutErr != nil {
		return fanOutErr
	}
	m.logger.Info().
		Str("op_id", opID).
		Str("dimension", key).
		Bool("columns_changed", columnsChanged).
		Msg("Altered dimension table")
	return nil
}

// alterStorageSchemas pushes a new column schema to the storage tables of an
// entity, stopping at the first failure. Storage tables are addressed by the
// default storage prefix.
func (m *Metastore) alterStorageSchemas(ctx context.Context, entityName string, storages []string, columns []cattypes.Column) error {
	for _, storageName := range storages {
		tableName := cube.NewStorage(storageName).TableName(entityName)
		if err := m.alterStorageColumns(ctx, tableName, columns); err != nil {
			return errors.AsError(err).
				AddContext("entity", entityName).
				AddContext("storage", storageName)
		}
	}
	return nil
}

// alterStorageColumns replaces one storage table's column schema, keeping
// its partition columns and properties, and refreshes the cached row.
func (m *Metastore) alterStorageColumns(ctx context.Context, tableName string, columns []cattypes.Column) error {
	entry, err := m.requireTable(ctx, tableName)
	if err != nil {
		return err
	}
	updated := entry.row.Clone()
	updated.Columns = append([]cattypes.Column(nil), columns...)
	if err := m.store.AlterTable(ctx, updated); err != nil {
		return err
	}
	_, err = m.refreshTable(ctx, tableName)
	return err
}

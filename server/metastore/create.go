package metastore

import (
	"context"
	"strings"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/cube"
	"github.com/gear6io/lattice/utils"
)

// StorageBinding pairs a storage with the descriptor of the physical table
// an entity materializes on it.
type StorageBinding struct {
	Storage    *cube.Storage
	Descriptor *cube.StorageTableDescriptor
}

// CreateTable persists an entity: its logical row first, then one storage
// table per binding. A storage table failure stops the loop and reports
// which binding failed; already created tables are left in place.
func (m *Metastore) CreateTable(ctx context.Context, entity cube.Entity, bindings []StorageBinding) error {
	if entity == nil {
		return errors.New(errors.CommonInvalidInput, "entity is required", nil)
	}
	row := entity.ToRow()
	if row.Name == "" {
		return errors.New(errors.CommonInvalidInput, "entity name is required", nil)
	}

	opID := utils.GenerateOperationID()
	logger := m.logger.With().Str("op_id", opID).Str("entity", row.Name).Logger()

	if err := m.store.CreateTable(ctx, row); err != nil {
		return err
	}
	for _, binding := range bindings {
		if err := m.createStorageTable(ctx, entity, binding); err != nil {
			return errors.AsError(err).AddContext("entity", row.Name)
		}
	}
	logger.Info().Int("storage_tables", len(bindings)).Msg("Created cube entity")
	return nil
}

// CreateCube persists a cube. Cubes are purely logical and get no storage
// tables.
func (m *Metastore) CreateCube(ctx context.Context, cb *cube.Cube) error {
	return m.CreateTable(ctx, cb, nil)
}

// CreateCubeFromParts assembles a cube from measures and dimensions and
// persists it.
func (m *Metastore) CreateCubeFromParts(ctx context.Context, name string, measures []cube.Measure, dimensions []cube.Dimension, properties map[string]string) error {
	return m.CreateCube(ctx, cube.NewCube(name, measures, dimensions, properties, 0))
}

// CreateFactTable persists a fact table together with one storage table per
// tracked storage. The bindings must cover the fact's storages exactly.
func (m *Metastore) CreateFactTable(ctx context.Context, fact *cube.FactTable, bindings []StorageBinding) error {
	if fact == nil {
		return errors.New(errors.CommonInvalidInput, "fact table is required", nil)
	}
	if err := validateBindings(fact.Storages(), bindings); err != nil {
		return errors.AsError(err).AddContext("fact", fact.Name)
	}
	return m.CreateTable(ctx, fact, bindings)
}

// CreateDimensionTable persists a dimension table together with one storage
// table per tracked storage. The bindings must cover the dimension's
// storages exactly.
func (m *Metastore) CreateDimensionTable(ctx context.Context, dim *cube.DimensionTable, bindings []StorageBinding) error {
	if dim == nil {
		return errors.New(errors.CommonInvalidInput, "dimension table is required", nil)
	}
	if err := validateBindings(dim.Storages(), bindings); err != nil {
		return errors.AsError(err).AddContext("dimension", dim.Name)
	}
	return m.CreateTable(ctx, dim, bindings)
}

// AddFactStorage adds a storage to an existing fact: the physical table is
// created first, then the fact's row picks up the new tracking state, then
// the cached model is refreshed.
func (m *Metastore) AddFactStorage(ctx context.Context, factName string, storage *cube.Storage, updatePeriods []cube.UpdatePeriod, desc *cube.StorageTableDescriptor) error {
	if storage == nil {
		return errors.New(errors.CommonInvalidInput, "storage is required", nil)
	}
	if len(updatePeriods) == 0 {
		return errors.New(errors.CommonInvalidInput, "a fact storage needs at least one update period", nil).
			AddContext("fact", strings.ToLower(factName)).
			AddContext("storage", storage.Name)
	}

	key := strings.ToLower(factName)
	entry, err := m.requireTyped(ctx, key, cube.TypeFact)
	if err != nil {
		return err
	}
	fact, err := cube.FactFromRow(entry.row)
	if err != nil {
		return err
	}
	fact.StorageUpdatePeriods[storage.Name] = updatePeriods

	opID := utils.GenerateOperationID()
	if err := m.createStorageTable(ctx, fact, StorageBinding{Storage: storage, Descriptor: desc}); err != nil {
		return errors.AsError(err).AddContext("fact", key)
	}

	merged, _ := mergeEntityRow(entry.row, fact.ToRow())
	if err := m.store.AlterTable(ctx, merged); err != nil {
		return err
	}
	if err := m.refreshFact(ctx, key); err != nil {
		return err
	}
	m.logger.Info().
		Str("op_id", opID).
		Str("fact", key).
		Str("storage", storage.Name).
		Msg("Added storage to fact table")
	return nil
}

// AddDimStorage adds a storage to an existing dimension table. A zero dump
// period tracks the storage as append-only.
func (m *Metastore) AddDimStorage(ctx context.Context, dimName string, storage *cube.Storage, dumpPeriod cube.UpdatePeriod, desc *cube.StorageTableDescriptor) error {
	if storage == nil {
		return errors.New(errors.CommonInvalidInput, "storage is required", nil)
	}

	key := strings.ToLower(dimName)
	entry, err := m.requireTyped(ctx, key, cube.TypeDimension)
	if err != nil {
		return err
	}
	dim, err := cube.DimensionFromRow(entry.row)
	if err != nil {
		return err
	}
	dim.SnapshotDumpPeriods[storage.Name] = dumpPeriod

	opID := utils.GenerateOperationID()
	if err := m.createStorageTable(ctx, dim, StorageBinding{Storage: storage, Descriptor: desc}); err != nil {
		return errors.AsError(err).AddContext("dimension", key)
	}

	merged, _ := mergeEntityRow(entry.row, dim.ToRow())
	if err := m.store.AlterTable(ctx, merged); err != nil {
		return err
	}
	if err := m.refreshDim(ctx, key); err != nil {
		return err
	}
	m.logger.Info().
		Str("op_id", opID).
		Str("dimension", key).
		Str("storage", storage.Name).
		Msg("Added storage to dimension table")
	return nil
}

// createStorageTable materializes and persists one storage table of an
// entity.
func (m *Metastore) createStorageTable(ctx context.Context, entity cube.Entity, binding StorageBinding) error {
	if binding.Storage == nil || binding.Descriptor == nil {
		return errors.New(errors.CommonInvalidInput, "storage binding needs both a storage and a table descriptor", nil)
	}
	if err := binding.Descriptor.Validate(); err != nil {
		return errors.AsError(err).AddContext("storage", binding.Storage.Name)
	}
	table := binding.Storage.StorageTable(entity.EntityName(), entity.SchemaColumns(), binding.Descriptor)
	if err := m.store.CreateTable(ctx, table); err != nil {
		return errors.AsError(err).AddContext("storage", binding.Storage.Name)
	}
	return nil
}

// validateBindings checks that the bindings and an entity's tracked storages
// name the same set, so a tracked storage can never be created without its
// physical table.
func validateBindings(declared []string, bindings []StorageBinding) error {
	bound := make(map[string]bool, len(bindings))
	for _, binding := range bindings {
		if binding.Storage == nil {
			return errors.New(errors.CommonInvalidInput, "storage binding has no storage", nil)
		}
		if bound[binding.Storage.Name] {
			return errors.New(ErrStorageMismatch, "storage bound twice", nil).
				AddContext("storage", binding.Storage.Name)
		}
		bound[binding.Storage.Name] = true
	}
	for _, name := range declared {
		if !bound[name] {
			return errors.New(ErrStorageMismatch, "tracked storage has no storage table binding", nil).
				AddContext("storage", name)
		}
	}
	if len(bound) != len(declared) {
		for name := range bound {
			tracked := false
			for _, declaredName := range declared {
				if declaredName == name {
					tracked = true
					break
				}
			}
			if !tracked {
				return errors.New(ErrStorageMismatch, "storage table bound for an untracked storage", nil).
					AddContext("storage", name)
			}
		}
	}
	return nil
}

package cube

import (
	"sort"
	"strings"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
)

// DimensionTable is slowly changing reference data. Each storage either takes
// periodic full snapshots at a dump period or, with no dump period, grows
// append-only.
type DimensionTable struct {
	CubeTable
	References          map[string][]TableReference `json:"references,omitempty"`
	SnapshotDumpPeriods map[string]UpdatePeriod     `json:"snapshot_dump_periods"`
}

// NewDimensionTable builds a dimension table. SnapshotDumpPeriods keys are
// the storages; a zero period marks a storage as append-only.
func NewDimensionTable(name string, columns []cattypes.Column, references map[string][]TableReference, snapshotDumpPeriods map[string]UpdatePeriod, properties map[string]string, weight float64) *DimensionTable {
	refs := make(map[string][]TableReference, len(references))
	for column, columnRefs := range references {
		refs[strings.ToLower(column)] = columnRefs
	}
	periods := make(map[string]UpdatePeriod, len(snapshotDumpPeriods))
	for storage, period := range snapshotDumpPeriods {
		periods[strings.ToLower(storage)] = period
	}
	return &DimensionTable{
		CubeTable:           NewCubeTable(name, columns, properties, weight),
		References:          refs,
		SnapshotDumpPeriods: periods,
	}
}

// Storages returns the dimension table's storage names, sorted.
func (d *DimensionTable) Storages() []string {
	storages := make([]string, 0, len(d.SnapshotDumpPeriods))
	for storage := range d.SnapshotDumpPeriods {
		storages = append(storages, storage)
	}
	sort.Strings(storages)
	return storages
}

// HasStorage reports whether the dimension table lists the storage.
func (d *DimensionTable) HasStorage(storageName string) bool {
	_, ok := d.SnapshotDumpPeriods[strings.ToLower(storageName)]
	return ok
}

// ToRow serializes the dimension table into a catalog row. The storages list
// is always written; dump period properties only exist for snapshotted
// storages, so an absent one reads back as append-only.
func (d *DimensionTable) ToRow() *cattypes.Table {
	props := d.rowProperties(TypeDimension)
	props[DimStoragesKey(d.Name)] = formatNameList(d.Storages())
	for storage, period := range d.SnapshotDumpPeriods {
		if period != UpdatePeriodUnknown {
			props[DimDumpPeriodKey(d.Name, storage)] = period.String()
		}
	}
	for column, refs := range d.References {
		if len(refs) > 0 {
			props[DimReferencesKey(d.Name, column)] = formatReferences(refs)
		}
	}
	return &cattypes.Table{
		Name:       d.Name,
		Columns:    d.Columns,
		Properties: props,
	}
}

// DimensionFromRow deserializes a catalog row previously written by ToRow. A
// dimension row without its storages property is malformed.
func DimensionFromRow(row *cattypes.Table) (*DimensionTable, error) {
	base, err := baseFromRow(row)
	if err != nil {
		return nil, err
	}

	storagesRaw, ok := row.Properties[DimStoragesKey(base.Name)]
	if !ok {
		return nil, errors.New(ErrMalformedMetadata, "dimension row does not declare its storages", nil).AddContext("dimension", base.Name)
	}
	periods := make(map[string]UpdatePeriod)
	for _, storage := range parseNameList(storagesRaw) {
		period := UpdatePeriodUnknown
		if periodRaw, ok := row.Properties[DimDumpPeriodKey(base.Name, storage)]; ok {
			parsed, err := ParseUpdatePeriod(periodRaw)
			if err != nil {
				return nil, errors.New(ErrMalformedMetadata, "dimension storage has malformed dump period", err).
					AddContext("dimension", base.Name).
					AddContext("storage", storage)
			}
			period = parsed
		}
		periods[storage] = period
	}

	references, err := referencesFromRow(base.Name, row.Properties)
	if err != nil {
		return nil, err
	}

	return &DimensionTable{CubeTable: base, References: references, SnapshotDumpPeriods: periods}, nil
}

// referencesFromRow finds every per-column references property of the
// dimension by key shape, so columns need no separate registry.
func referencesFromRow(dimName string, properties map[string]string) (map[string][]TableReference, error) {
	prefix := "cube.dim." + dimName + "."
	const suffix = ".references"

	references := make(map[string][]TableReference)
	for key, value := range properties {
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
			continue
		}
		column := strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffix)
		if column == "" || strings.Contains(column, ".") {
			continue
		}
		refs, err := parseReferences(value)
		if err != nil {
			return nil, errors.New(ErrMalformedMetadata, "dimension column has malformed references", err).
				AddContext("dimension", dimName).
				AddContext("column", column)
		}
		if len(refs) > 0 {
			references[column] = refs
		}
	}
	return references, nil
}

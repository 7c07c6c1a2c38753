package cube

import (
	"sort"
	"strings"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
)

// FactTable is event-grained data belonging to one or more cubes, with a set
// of storages and the update periods each storage accepts.
type FactTable struct {
	CubeTable
	CubeNames            []string                  `json:"cube_names"`
	StorageUpdatePeriods map[string][]UpdatePeriod `json:"storage_update_periods"`
}

// NewFactTable builds a fact. Cube names and storage names are lowercased;
// membership in at least one cube is the orchestrator's rule to enforce, not
// this constructor's.
func NewFactTable(name string, columns []cattypes.Column, cubeNames []string, storageUpdatePeriods map[string][]UpdatePeriod, properties map[string]string, weight float64) *FactTable {
	lowered := make([]string, 0, len(cubeNames))
	for _, cubeName := range cubeNames {
		lowered = append(lowered, strings.ToLower(cubeName))
	}
	periods := make(map[string][]UpdatePeriod, len(storageUpdatePeriods))
	for storage, storagePeriods := range storageUpdatePeriods {
		periods[strings.ToLower(storage)] = storagePeriods
	}
	return &FactTable{
		CubeTable:            NewCubeTable(name, columns, properties, weight),
		CubeNames:            lowered,
		StorageUpdatePeriods: periods,
	}
}

// Storages returns the fact's storage names, sorted.
func (f *FactTable) Storages() []string {
	storages := make([]string, 0, len(f.StorageUpdatePeriods))
	for storage := range f.StorageUpdatePeriods {
		storages = append(storages, storage)
	}
	sort.Strings(storages)
	return storages
}

// HasStorage reports whether the fact lists the storage, case-insensitively.
func (f *FactTable) HasStorage(storageName string) bool {
	_, ok := f.StorageUpdatePeriods[strings.ToLower(storageName)]
	return ok
}

// BelongsTo reports whether the fact declares membership in the cube.
func (f *FactTable) BelongsTo(cubeName string) bool {
	lowered := strings.ToLower(cubeName)
	for _, name := range f.CubeNames {
		if name == lowered {
			return true
		}
	}
	return false
}

// ToRow serializes the fact into a catalog row.
func (f *FactTable) ToRow() *cattypes.Table {
	props := f.rowProperties(TypeFact)
	props[FactCubeNamesKey(f.Name)] = formatNameList(f.CubeNames)
	props[FactStoragesKey(f.Name)] = formatNameList(f.Storages())
	for storage, periods := range f.StorageUpdatePeriods {
		props[FactUpdatePeriodsKey(f.Name, storage)] = FormatUpdatePeriods(periods)
	}
	return &cattypes.Table{
		Name:       f.Name,
		Columns:    f.Columns,
		Properties: props,
	}
}

// FactFromRow deserializes a catalog row previously written by ToRow. A fact
// row without its cube membership property is malformed, as is a listed
// storage without an update periods property.
func FactFromRow(row *cattypes.Table) (*FactTable, error) {
	base, err := baseFromRow(row)
	if err != nil {
		return nil, err
	}

	cubeNamesRaw, ok := row.Properties[FactCubeNamesKey(base.Name)]
	if !ok {
		return nil, errors.New(ErrMalformedMetadata, "fact row does not declare its cubes", nil).AddContext("fact", base.Name)
	}
	cubeNames := parseNameList(cubeNamesRaw)

	periods := make(map[string][]UpdatePeriod)
	for _, storage := range parseNameList(row.Properties[FactStoragesKey(base.Name)]) {
		periodsRaw, ok := row.Properties[FactUpdatePeriodsKey(base.Name, storage)]
		if !ok {
			return nil, errors.New(ErrMalformedMetadata, "fact storage has no update periods", nil).
				AddContext("fact", base.Name).
				AddContext("storage", storage)
		}
		storagePeriods, err := ParseUpdatePeriods(periodsRaw)
		if err != nil {
			return nil, errors.New(ErrMalformedMetadata, "fact storage has malformed update periods", err).
				AddContext("fact", base.Name).
				AddContext("storage", storage)
		}
		periods[storage] = storagePeriods
	}

	return &FactTable{CubeTable: base, CubeNames: cubeNames, StorageUpdatePeriods: periods}, nil
}

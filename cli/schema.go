package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/cube"
	"github.com/gear6io/lattice/server/metastore"
)

// Entity definition files are yaml. Periods are written by name (hourly,
// daily, ...), references as "table.column" strings; both are validated
// while decoding so a bad file fails before anything touches the catalog.

type columnSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type measureSpec struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Aggregate string `yaml:"aggregate"`
	Unit      string `yaml:"unit"`
}

type cubeDimensionSpec struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	References []string `yaml:"references"`
}

type cubeFile struct {
	Name       string              `yaml:"name"`
	Weight     float64             `yaml:"weight"`
	Properties map[string]string   `yaml:"properties"`
	Measures   []measureSpec       `yaml:"measures"`
	Dimensions []cubeDimensionSpec `yaml:"dimensions"`
}

// storageSpec is one storage block of a fact or dimension file: how the
// entity is tracked on the storage plus the physical storage table shape.
type storageSpec struct {
	UpdatePeriods    []string          `yaml:"update_periods"`
	DumpPeriod       string            `yaml:"dump_period"`
	Columns          []columnSpec      `yaml:"columns"`
	PartitionColumns []columnSpec      `yaml:"partition_columns"`
	TimePartColumns  []string          `yaml:"time_part_columns"`
	Location         string            `yaml:"location"`
	Properties       map[string]string `yaml:"properties"`
}

type factFile struct {
	Name       string                 `yaml:"name"`
	Cubes      []string               `yaml:"cubes"`
	Weight     float64                `yaml:"weight"`
	Columns    []columnSpec           `yaml:"columns"`
	Properties map[string]string      `yaml:"properties"`
	Storages   map[string]storageSpec `yaml:"storages"`
}

type dimensionFile struct {
	Name       string                 `yaml:"name"`
	Weight     float64                `yaml:"weight"`
	Columns    []columnSpec           `yaml:"columns"`
	References map[string][]string    `yaml:"references"`
	Properties map[string]string      `yaml:"properties"`
	Storages   map[string]storageSpec `yaml:"storages"`
}

func decodeEntityFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read entity file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse entity file %s: %w", path, err)
	}
	return nil
}

func toColumns(specs []columnSpec) []cattypes.Column {
	columns := make([]cattypes.Column, 0, len(specs))
	for _, spec := range specs {
		columns = append(columns, cattypes.Column{Name: spec.Name, Type: spec.Type})
	}
	return columns
}

func parseReferences(values []string) ([]cube.TableReference, error) {
	refs := make([]cube.TableReference, 0, len(values))
	for _, value := range values {
		ref, err := cube.ParseTableReference(value)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func parsePeriodNames(names []string) ([]cube.UpdatePeriod, error) {
	periods := make([]cube.UpdatePeriod, 0, len(names))
	for _, name := range names {
		period, err := cube.ParseUpdatePeriod(name)
		if err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}
	return periods, nil
}

func buildDescriptor(spec storageSpec) *cube.StorageTableDescriptor {
	return &cube.StorageTableDescriptor{
		Columns:          toColumns(spec.Columns),
		PartitionColumns: toColumns(spec.PartitionColumns),
		TimePartColumns:  spec.TimePartColumns,
		Location:         spec.Location,
		Properties:       spec.Properties,
	}
}

// loadCubeFile decodes a cube definition file into its model.
func loadCubeFile(path string) (*cube.Cube, error) {
	var file cubeFile
	if err := decodeEntityFile(path, &file); err != nil {
		return nil, err
	}
	if file.Name == "" {
		return nil, fmt.Errorf("cube file %s has no name", path)
	}

	measures := make([]cube.Measure, 0, len(file.Measures))
	for _, m := range file.Measures {
		measures = append(measures, cube.Measure{
			Name:      m.Name,
			Type:      m.Type,
			Aggregate: m.Aggregate,
			Unit:      m.Unit,
		})
	}

	dimensions := make([]cube.Dimension, 0, len(file.Dimensions))
	for _, d := range file.Dimensions {
		refs, err := parseReferences(d.References)
		if err != nil {
			return nil, fmt.Errorf("cube file %s, dimension %s: %w", path, d.Name, err)
		}
		dimensions = append(dimensions, cube.Dimension{
			Name:       d.Name,
			Type:       d.Type,
			References: refs,
		})
	}

	return cube.NewCube(file.Name, measures, dimensions, file.Properties, file.Weight), nil
}

// loadFactFile decodes a fact definition file into its model and the storage
// table bindings to create alongside it.
func loadFactFile(path string) (*cube.FactTable, []metastore.StorageBinding, error) {
	var file factFile
	if err := decodeEntityFile(path, &file); err != nil {
		return nil, nil, err
	}
	if file.Name == "" {
		return nil, nil, fmt.Errorf("fact file %s has no name", path)
	}

	storagePeriods := make(map[string][]cube.UpdatePeriod, len(file.Storages))
	bindings := make([]metastore.StorageBinding, 0, len(file.Storages))
	for storageName, spec := range file.Storages {
		periods, err := parsePeriodNames(spec.UpdatePeriods)
		if err != nil {
			return nil, nil, fmt.Errorf("fact file %s, storage %s: %w", path, storageName, err)
		}
		if len(periods) == 0 {
			return nil, nil, fmt.Errorf("fact file %s, storage %s: at least one update period is required", path, storageName)
		}
		storagePeriods[storageName] = periods
		bindings = append(bindings, metastore.StorageBinding{
			Storage:    cube.NewStorage(storageName),
			Descriptor: buildDescriptor(spec),
		})
	}

	fact := cube.NewFactTable(file.Name, toColumns(file.Columns), file.Cubes, storagePeriods, file.Properties, file.Weight)
	return fact, bindings, nil
}

// loadDimensionFile decodes a dimension table definition file into its model
// and storage table bindings. A storage block without a dump_period marks
// that storage as append-only.
func loadDimensionFile(path string) (*cube.DimensionTable, []metastore.StorageBinding, error) {
	var file dimensionFile
	if err := decodeEntityFile(path, &file); err != nil {
		return nil, nil, err
	}
	if file.Name == "" {
		return nil, nil, fmt.Errorf("dimension file %s has no name", path)
	}

	references := make(map[string][]cube.TableReference, len(file.References))
	for column, values := range file.References {
		refs, err := parseReferences(values)
		if err != nil {
			return nil, nil, fmt.Errorf("dimension file %s, column %s: %w", path, column, err)
		}
		references[column] = refs
	}

	dumpPeriods := make(map[string]cube.UpdatePeriod, len(file.Storages))
	bindings := make([]metastore.StorageBinding, 0, len(file.Storages))
	for storageName, spec := range file.Storages {
		period := cube.UpdatePeriodUnknown
		if spec.DumpPeriod != "" {
			parsed, err := cube.ParseUpdatePeriod(spec.DumpPeriod)
			if err != nil {
				return nil, nil, fmt.Errorf("dimension file %s, storage %s: %w", path, storageName, err)
			}
			period = parsed
		}
		dumpPeriods[storageName] = period
		bindings = append(bindings, metastore.StorageBinding{
			Storage:    cube.NewStorage(storageName),
			Descriptor: buildDescriptor(spec),
		})
	}

	dim := cube.NewDimensionTable(file.Name, toColumns(file.Columns), references, dumpPeriods, file.Properties, file.Weight)
	return dim, bindings, nil
}

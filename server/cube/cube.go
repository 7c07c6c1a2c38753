package cube

import (
	"sort"
	"strings"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
)

// Cube is the logical schema of a subject area: measures and dimensions, no
// storage bindings. Facts declare membership in cubes, never the reverse.
type Cube struct {
	CubeTable
	Measures   []Measure   `json:"measures"`
	Dimensions []Dimension `json:"dimensions"`
}

// NewCube builds a cube whose row schema is derived from its measures and
// dimensions in declaration order.
func NewCube(name string, measures []Measure, dimensions []Dimension, properties map[string]string, weight float64) *Cube {
	columns := make([]cattypes.Column, 0, len(measures)+len(dimensions))
	for _, m := range measures {
		columns = append(columns, cattypes.Column{Name: strings.ToLower(m.Name), Type: m.Type})
	}
	for _, d := range dimensions {
		columns = append(columns, cattypes.Column{Name: strings.ToLower(d.Name), Type: d.Type})
	}
	return &Cube{
		CubeTable:  NewCubeTable(name, columns, properties, weight),
		Measures:   measures,
		Dimensions: dimensions,
	}
}

// MeasureNames returns the cube's measure names, lowercased and sorted.
func (c *Cube) MeasureNames() []string {
	names := make([]string, 0, len(c.Measures))
	for _, m := range c.Measures {
		names = append(names, strings.ToLower(m.Name))
	}
	sort.Strings(names)
	return names
}

// DimensionNames returns the cube's dimension names, lowercased and sorted.
func (c *Cube) DimensionNames() []string {
	names := make([]string, 0, len(c.Dimensions))
	for _, d := range c.Dimensions {
		names = append(names, strings.ToLower(d.Name))
	}
	sort.Strings(names)
	return names
}

// ToRow serializes the cube into a catalog row. The measure and dimension
// sets are carried entirely in properties so a row read back without this
// package still round-trips them untouched.
func (c *Cube) ToRow() *cattypes.Table {
	props := c.rowProperties(TypeCube)
	props[CubeMeasuresListKey(c.Name)] = formatNameList(measureNames(c.Measures))
	for _, m := range c.Measures {
		name := strings.ToLower(m.Name)
		props[MeasureTypeKey(name)] = m.Type
		if m.Aggregate != "" {
			props[MeasureAggregateKey(name)] = m.Aggregate
		}
		if m.Unit != "" {
			props[MeasureUnitKey(name)] = m.Unit
		}
	}
	props[CubeDimensionsListKey(c.Name)] = formatNameList(dimensionNames(c.Dimensions))
	for _, d := range c.Dimensions {
		name := strings.ToLower(d.Name)
		props[DimensionTypeKey(name)] = d.Type
		if len(d.References) > 0 {
			props[DimensionReferencesKey(name)] = formatReferences(d.References)
		}
	}
	return &cattypes.Table{
		Name:       c.Name,
		Columns:    c.Columns,
		Properties: props,
	}
}

// CubeFromRow deserializes a catalog row previously written by ToRow. Rows
// missing the measure or dimension list keys are malformed.
func CubeFromRow(row *cattypes.Table) (*Cube, error) {
	base, err := baseFromRow(row)
	if err != nil {
		return nil, err
	}

	measuresRaw, ok := row.Properties[CubeMeasuresListKey(base.Name)]
	if !ok {
		return nil, errors.New(ErrMalformedMetadata, "cube row has no measures list", nil).AddContext("cube", base.Name)
	}
	measures := make([]Measure, 0)
	for _, name := range parseNameList(measuresRaw) {
		measures = append(measures, Measure{
			Name:      name,
			Type:      row.Properties[MeasureTypeKey(name)],
			Aggregate: row.Properties[MeasureAggregateKey(name)],
			Unit:      row.Properties[MeasureUnitKey(name)],
		})
	}

	dimensionsRaw, ok := row.Properties[CubeDimensionsListKey(base.Name)]
	if !ok {
		return nil, errors.New(ErrMalformedMetadata, "cube row has no dimensions list", nil).AddContext("cube", base.Name)
	}
	dimensions := make([]Dimension, 0)
	for _, name := range parseNameList(dimensionsRaw) {
		refs, err := parseReferences(row.Properties[DimensionReferencesKey(name)])
		if err != nil {
			return nil, errors.New(ErrMalformedMetadata, "cube dimension has malformed references", err).
				AddContext("cube", base.Name).
				AddContext("dimension", name)
		}
		dimensions = append(dimensions, Dimension{
			Name:       name,
			Type:       row.Properties[DimensionTypeKey(name)],
			References: refs,
		})
	}

	return &Cube{CubeTable: base, Measures: measures, Dimensions: dimensions}, nil
}

func measureNames(measures []Measure) []string {
	names := make([]string, 0, len(measures))
	for _, m := range measures {
		names = append(names, m.Name)
	}
	return names
}

func dimensionNames(dimensions []Dimension) []string {
	names := make([]string, 0, len(dimensions))
	for _, d := range dimensions {
		names = append(names, d.Name)
	}
	return names
}

package cube

import (
	"strings"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
)

// TableType classifies what kind of cube entity a catalog row represents.
// Classification reads only the row's properties, never its schema.
type TableType int

const (
	TypeOther TableType = iota
	TypeCube
	TypeFact
	TypeDimension
)

var tableTypeNames = map[TableType]string{
	TypeCube:      "CUBE",
	TypeFact:      "FACT",
	TypeDimension: "DIMENSION",
}

func (t TableType) String() string {
	if name, ok := tableTypeNames[t]; ok {
		return name
	}
	return "OTHER"
}

// ParseTableType resolves a type name case-insensitively. Anything
// unrecognized, including the empty string, classifies as TypeOther.
func ParseTableType(value string) TableType {
	upper := strings.ToUpper(strings.TrimSpace(value))
	for tableType, name := range tableTypeNames {
		if name == upper {
			return tableType
		}
	}
	return TypeOther
}

// ClassifyRow reads a catalog row's type property. Rows without the property
// are foreign tables and classify as TypeOther.
func ClassifyRow(row *cattypes.Table) TableType {
	if row == nil || row.Properties == nil {
		return TypeOther
	}
	return ParseTableType(row.Properties[TableTypeKey])
}

// Entity is a cube model that persists as a catalog row: a cube, a fact
// table or a dimension table.
type Entity interface {
	// EntityName returns the lowercase identity of the entity.
	EntityName() string

	// SchemaColumns returns the logical column schema.
	SchemaColumns() []cattypes.Column

	// ToRow serializes the entity into its catalog row.
	ToRow() *cattypes.Table
}

// CubeTable carries what every cube entity shares: a lowercase identity, a
// column schema, free-form properties and an optional cost weight.
type CubeTable struct {
	Name       string            `json:"name"`
	Columns    []cattypes.Column `json:"columns,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Weight     float64           `json:"weight,omitempty"`
}

// EntityName returns the lowercase identity of the entity.
func (t *CubeTable) EntityName() string {
	return t.Name
}

// SchemaColumns returns the logical column schema.
func (t *CubeTable) SchemaColumns() []cattypes.Column {
	return t.Columns
}

// NewCubeTable builds the shared base of a cube entity, normalizing the name
// to its lowercase identity.
func NewCubeTable(name string, columns []cattypes.Column, properties map[string]string, weight float64) CubeTable {
	if properties == nil {
		properties = make(map[string]string)
	}
	return CubeTable{
		Name:       strings.ToLower(name),
		Columns:    columns,
		Properties: properties,
		Weight:     weight,
	}
}

// rowProperties assembles the base property set persisted for this entity:
// caller-supplied properties plus the type tag and, when set, the weight.
func (t *CubeTable) rowProperties(tableType TableType) map[string]string {
	props := make(map[string]string, len(t.Properties)+2)
	for k, v := range t.Properties {
		props[k] = v
	}
	props[TableTypeKey] = tableType.String()
	if t.Weight != 0 {
		props[TableWeightKey] = formatWeight(t.Weight)
	}
	return props
}

// baseFromRow reads the shared fields back off a catalog row. The returned
// Properties hold the row's full property set, model keys included, so
// re-serialization keeps anything a caller attached out of band.
func baseFromRow(row *cattypes.Table) (CubeTable, error) {
	base := CubeTable{
		Name:       strings.ToLower(row.Name),
		Columns:    row.Columns,
		Properties: make(map[string]string, len(row.Properties)),
	}
	for k, v := range row.Properties {
		base.Properties[k] = v
	}
	if raw, ok := row.Properties[TableWeightKey]; ok {
		weight, err := parseWeight(raw)
		if err != nil {
			return CubeTable{}, errors.New(ErrMalformedMetadata, "failed to parse table weight", err).
				AddContext("table", row.Name).
				AddContext("weight", raw)
		}
		base.Weight = weight
	}
	return base, nil
}

package cube

import (
	"strings"

	"github.com/gear6io/lattice/pkg/errors"
)

// TableReference points a dimension column at a column of another table,
// encoded in properties as "table.column".
type TableReference struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

func (r TableReference) String() string {
	return strings.ToLower(r.Table) + "." + strings.ToLower(r.Column)
}

// ParseTableReference decodes a "table.column" reference. Table names cannot
// contain dots, so the split happens at the first one.
func ParseTableReference(value string) (TableReference, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TableReference{}, errors.New(ErrInvalidReference, "reference must be table.column", nil).AddContext("reference", value)
	}
	return TableReference{
		Table:  strings.ToLower(parts[0]),
		Column: strings.ToLower(parts[1]),
	}, nil
}

func formatReferences(refs []TableReference) string {
	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		parts = append(parts, ref.String())
	}
	return strings.Join(parts, ",")
}

func parseReferences(value string) ([]TableReference, error) {
	var refs []TableReference
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ref, err := ParseTableReference(part)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Measure is a numeric quantity a cube exposes.
type Measure struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Aggregate string `json:"aggregate,omitempty"`
	Unit      string `json:"unit,omitempty"`
}

// Dimension is a slicing attribute a cube exposes, optionally referencing
// columns of dimension tables.
type Dimension struct {
	Name       string           `json:"name"`
	Type       string           `json:"type"`
	References []TableReference `json:"references,omitempty"`
}

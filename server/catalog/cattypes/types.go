package cattypes

import (
	"sort"
	"strings"
	"time"
)

// Column describes a single column of a catalog table
type Column struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Comment string `json:"comment,omitempty"`
}

// Table is the backend-neutral representation of a catalog table.
// Properties carry the table-level key/value metadata that higher
// layers encode their models into.
type Table struct {
	Name             string            `json:"name"`
	Columns          []Column          `json:"columns"`
	PartitionColumns []Column          `json:"partition_columns,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
	CreatedAt        time.Time         `json:"created_at,omitempty"`
	UpdatedAt        time.Time         `json:"updated_at,omitempty"`
}

// Partition is a single partition of a catalog table. Values maps every
// partition column of the table to its literal value, Parameters carries
// partition-level key/value metadata.
type Partition struct {
	TableName  string            `json:"table_name"`
	Values     map[string]string `json:"values"`
	Parameters map[string]string `json:"parameters,omitempty"`
	CreatedAt  time.Time         `json:"created_at,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
}

// PartitionColumnNames returns the names of the table's partition columns
// in declaration order
func (t *Table) PartitionColumnNames() []string {
	names := make([]string, 0, len(t.PartitionColumns))
	for _, col := range t.PartitionColumns {
		names = append(names, col.Name)
	}
	return names
}

// HasPartitionColumn reports whether the table declares the named
// partition column
func (t *Table) HasPartitionColumn(name string) bool {
	for _, col := range t.PartitionColumns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// ColumnsEqual reports whether two column lists are identical in order,
// names, types and comments
func ColumnsEqual(a, b []Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	clone := &Table{
		Name:      t.Name,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	clone.Columns = append([]Column(nil), t.Columns...)
	clone.PartitionColumns = append([]Column(nil), t.PartitionColumns...)
	if t.Properties != nil {
		clone.Properties = make(map[string]string, len(t.Properties))
		for k, v := range t.Properties {
			clone.Properties[k] = v
		}
	}
	return clone
}

// Clone returns a deep copy of the partition
func (p *Partition) Clone() *Partition {
	if p == nil {
		return nil
	}
	clone := &Partition{
		TableName: p.TableName,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Values != nil {
		clone.Values = make(map[string]string, len(p.Values))
		for k, v := range p.Values {
			clone.Values[k] = v
		}
	}
	if p.Parameters != nil {
		clone.Parameters = make(map[string]string, len(p.Parameters))
		for k, v := range p.Parameters {
			clone.Parameters[k] = v
		}
	}
	return clone
}

// CanonicalSpec renders a partition value map in its canonical string
// form: column=value pairs sorted by column name and joined with '/'.
// Both backends use it as the partition identity within a table, so two
// partitions with the same values always collide regardless of map
// iteration order.
func CanonicalSpec(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(values[k])
	}
	return sb.String()
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TimeAuditable provides common timestamp fields for all auditable rows
type TimeAuditable struct {
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Table represents the catalog_tables table
type Table struct {
	bun.BaseModel `bun:"table:catalog_tables"`
	TimeAuditable `bun:",inherit"`

	ID         int64  `bun:"id,pk,autoincrement" json:"id"`
	Name       string `bun:"name,notnull,unique" json:"name"`
	Properties string `bun:"properties,notnull,default:'{}'" json:"properties"`
}

// TableColumn represents the catalog_columns table. Partition columns
// share the table with data columns and are flagged, ordinal positions
// run across both groups.
type TableColumn struct {
	bun.BaseModel `bun:"table:catalog_columns"`

	ID              int64  `bun:"id,pk,autoincrement" json:"id"`
	TableID         int64  `bun:"table_id,notnull" json:"table_id"`
	Name            string `bun:"name,notnull" json:"name"`
	Type            string `bun:"type,notnull" json:"type"`
	Comment         string `bun:"comment" json:"comment"`
	IsPartition     bool   `bun:"is_partition,notnull,default:false" json:"is_partition"`
	OrdinalPosition int    `bun:"ordinal_position,notnull" json:"ordinal_position"`

	// Relations
	Table *Table `bun:"rel:belongs-to,join:table_id=id"`
}

// Partition represents the catalog_partitions table. Spec is the
// canonical rendering of the partition's value map and is unique per
// table, it is what upserts and exact lookups key on.
type Partition struct {
	bun.BaseModel `bun:"table:catalog_partitions,alias:cp"`
	TimeAuditable `bun:",inherit"`

	ID         string `bun:"id,pk" json:"id"`
	TableID    int64  `bun:"table_id,notnull" json:"table_id"`
	Spec       string `bun:"spec,notnull" json:"spec"`
	Parameters string `bun:"parameters,notnull,default:'{}'" json:"parameters"`

	// Relations
	Table  *Table            `bun:"rel:belongs-to,join:table_id=id"`
	Values []*PartitionValue `bun:"rel:has-many,join:id=partition_id"`
}

// PartitionValue represents the catalog_partition_values table, one row
// per partition column of a partition
type PartitionValue struct {
	bun.BaseModel `bun:"table:catalog_partition_values"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	PartitionID string `bun:"partition_id,notnull" json:"partition_id"`
	ColumnName  string `bun:"column_name,notnull" json:"column_name"`
	Value       string `bun:"value,notnull" json:"value"`
}

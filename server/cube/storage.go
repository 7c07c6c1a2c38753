package cube

import (
	"sort"
	"strings"
	"time"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
)

// Storage names a physical system partitions land on. Its prefix namespaces
// the storage tables it materializes, defaulting to "<name>_".
type Storage struct {
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
}

// NewStorage builds a storage with the default prefix.
func NewStorage(name string) *Storage {
	lowered := strings.ToLower(name)
	return &Storage{Name: lowered, Prefix: lowered + "_"}
}

// NewStorageWithPrefix builds a storage with an explicit prefix.
func NewStorageWithPrefix(name, prefix string) *Storage {
	return &Storage{Name: strings.ToLower(name), Prefix: strings.ToLower(prefix)}
}

// TableName derives the storage table name for an entity on this storage.
func (s *Storage) TableName(entityName string) string {
	return StorageTableName(entityName, s.Prefix)
}

// StorageTableDescriptor describes the physical shape of one storage table.
// An empty Columns slice means the storage table inherits the logical
// entity's schema.
type StorageTableDescriptor struct {
	Columns          []cattypes.Column `json:"columns,omitempty"`
	PartitionColumns []cattypes.Column `json:"partition_columns"`
	TimePartColumns  []string          `json:"time_part_columns,omitempty"`
	Location         string            `json:"location,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// Validate checks the descriptor's internal consistency: every declared time
// partition column must be one of the partition columns.
func (d *StorageTableDescriptor) Validate() error {
	partCols := make(map[string]bool, len(d.PartitionColumns))
	for _, col := range d.PartitionColumns {
		partCols[strings.ToLower(col.Name)] = true
	}
	for _, timeCol := range d.TimePartColumns {
		if !partCols[strings.ToLower(timeCol)] {
			return errors.New(errors.CommonInvalidInput, "time partition column is not a partition column", nil).AddContext("column", timeCol)
		}
	}
	return nil
}

// StorageTable materializes the catalog row for entityName on this storage.
// The descriptor's properties are copied and extended with the time partition
// column list and location so a reader needs only the row to interpret its
// partitions.
func (s *Storage) StorageTable(entityName string, entityColumns []cattypes.Column, desc *StorageTableDescriptor) *cattypes.Table {
	columns := desc.Columns
	if len(columns) == 0 {
		columns = entityColumns
	}

	props := make(map[string]string, len(desc.Properties)+2)
	for k, v := range desc.Properties {
		props[k] = v
	}
	if len(desc.TimePartColumns) > 0 {
		props[TimePartColsKey] = FormatTimePartCols(desc.TimePartColumns)
	}
	if desc.Location != "" {
		props[StorageLocationKey] = desc.Location
	}

	return &cattypes.Table{
		Name:             s.TableName(entityName),
		Columns:          columns,
		PartitionColumns: desc.PartitionColumns,
		Properties:       props,
	}
}

// StoragePartitionDesc describes one partition to register: time values keyed
// by time partition column, literal values for the remaining partition
// columns, and the period the time values are bucketed at.
type StoragePartitionDesc struct {
	EntityName   string               `json:"entity_name"`
	TimeSpec     map[string]time.Time `json:"time_spec,omitempty"`
	NonTimeSpec  map[string]string    `json:"non_time_spec,omitempty"`
	UpdatePeriod UpdatePeriod         `json:"update_period"`
	Parameters   map[string]string    `json:"parameters,omitempty"`
}

// PartitionSpec formats every timestamp with the update period, keyed by
// lowercased column name.
func PartitionSpec(period UpdatePeriod, timestamps map[string]time.Time) map[string]string {
	spec := make(map[string]string, len(timestamps))
	for column, t := range timestamps {
		spec[strings.ToLower(column)] = period.Format(t)
	}
	return spec
}

// PartitionSpec renders the full partition spec, formatting each time value
// with the descriptor's update period.
func (d *StoragePartitionDesc) PartitionSpec() map[string]string {
	spec := PartitionSpec(d.UpdatePeriod, d.TimeSpec)
	for column, value := range d.NonTimeSpec {
		spec[strings.ToLower(column)] = value
	}
	return spec
}

// TimePartColumns returns the descriptor's time columns, sorted.
func (d *StoragePartitionDesc) TimePartColumns() []string {
	columns := make([]string, 0, len(d.TimeSpec))
	for column := range d.TimeSpec {
		columns = append(columns, strings.ToLower(column))
	}
	sort.Strings(columns)
	return columns
}

// LatestPartColumnInfo is the marker state for one time partition column: the
// timestamp it should advance to and the period that timestamp is formatted
// with.
type LatestPartColumnInfo struct {
	Timestamp time.Time    `json:"timestamp"`
	Period    UpdatePeriod `json:"period"`
}

// Params renders the marker parameters for the column. The period rides along
// with the timestamp so the next reader parses it with the codec that wrote
// it.
func (i LatestPartColumnInfo) Params(columnName string) map[string]string {
	return map[string]string{
		LatestTimestampKey(columnName): i.Period.Format(i.Timestamp),
		LatestPeriodKey(columnName):    i.Period.String(),
	}
}

// LatestInfo collects the marker updates one partition write produces, keyed
// by time partition column. Columns whose marker should not move are absent.
type LatestInfo struct {
	Columns map[string]LatestPartColumnInfo `json:"columns,omitempty"`
}

// NewLatestInfo returns an empty marker update set.
func NewLatestInfo() *LatestInfo {
	return &LatestInfo{Columns: make(map[string]LatestPartColumnInfo)}
}

// Set records a marker update for a column.
func (l *LatestInfo) Set(columnName string, info LatestPartColumnInfo) {
	l.Columns[strings.ToLower(columnName)] = info
}

// Empty reports whether no marker moves.
func (l *LatestInfo) Empty() bool {
	return l == nil || len(l.Columns) == 0
}

// ColumnNames returns the columns whose markers move, sorted.
func (l *LatestInfo) ColumnNames() []string {
	if l == nil {
		return nil
	}
	columns := make([]string, 0, len(l.Columns))
	for column := range l.Columns {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

// PartitionBatch assembles the catalog partitions one registration persists:
// the data partition first, then one latest pseudo partition per advancing
// marker column. Marker parameters are stamped onto both the data partition
// and the pseudo partitions, and the whole batch is meant for a single
// AddPartitions call so the data and its markers commit together.
//
// A pseudo partition's values hold the reserved latest value in the marker
// column and empty values everywhere else. That keeps the pseudo partition's
// identity fixed per column, so advancing a marker overwrites the previous
// one in place and a latest filter can match at most one partition.
func PartitionBatch(table *cattypes.Table, desc *StoragePartitionDesc, latest *LatestInfo) []*cattypes.Partition {
	dataParams := make(map[string]string, len(desc.Parameters))
	for k, v := range desc.Parameters {
		dataParams[k] = v
	}

	var pseudo []*cattypes.Partition
	if !latest.Empty() {
		partCols := table.PartitionColumnNames()
		for _, column := range latest.ColumnNames() {
			markerParams := latest.Columns[column].Params(column)
			for k, v := range markerParams {
				dataParams[k] = v
			}
			pseudo = append(pseudo, &cattypes.Partition{
				TableName:  table.Name,
				Values:     latestPartitionValues(partCols, column),
				Parameters: markerParams,
			})
		}
	}

	batch := make([]*cattypes.Partition, 0, 1+len(pseudo))
	batch = append(batch, &cattypes.Partition{
		TableName:  table.Name,
		Values:     desc.PartitionSpec(),
		Parameters: dataParams,
	})
	return append(batch, pseudo...)
}

func latestPartitionValues(partitionColumns []string, markerColumn string) map[string]string {
	values := make(map[string]string, len(partitionColumns))
	for _, column := range partitionColumns {
		values[strings.ToLower(column)] = ""
	}
	values[strings.ToLower(markerColumn)] = LatestPartitionValue
	return values
}

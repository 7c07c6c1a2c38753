package cube

import (
	"sort"
	"strconv"
	"strings"

	"github.com/gear6io/lattice/server/catalog/cattypes"
)

// Property keys shared by every cube entity. All keys embed lowercase entity
// names so lookups stay stable regardless of how callers case their input.
const (
	// TableTypeKey classifies a catalog row as CUBE, FACT or DIMENSION.
	TableTypeKey = "cube.table.type"

	// TableWeightKey carries the optional cost weight of a table.
	TableWeightKey = "cube.table.weight"

	// TimePartColsKey lists the partition columns of a storage table that
	// carry time values and therefore get latest markers.
	TimePartColsKey = "cube.storagetable.time.part.cols"

	// StorageLocationKey records the physical location of a storage table.
	StorageLocationKey = "cube.storagetable.location"

	// LatestPartitionValue is the reserved partition value that marks the
	// latest pseudo partition of a time column. No real partition may use it.
	LatestPartitionValue = "latest"
)

// StorageTableName derives the physical catalog table name for an entity on a
// storage. The name is lowercased so identity stays case-insensitive.
func StorageTableName(entityName, prefix string) string {
	return strings.ToLower(prefix + entityName)
}

func FactCubeNamesKey(factName string) string {
	return "cube.fact." + strings.ToLower(factName) + ".cubenames"
}

func FactStoragesKey(factName string) string {
	return "cube.fact." + strings.ToLower(factName) + ".storages"
}

func FactUpdatePeriodsKey(factName, storageName string) string {
	return "cube.fact." + strings.ToLower(factName) + "." + strings.ToLower(storageName) + ".updateperiods"
}

func DimStoragesKey(dimName string) string {
	return "cube.dim." + strings.ToLower(dimName) + ".storages"
}

func DimDumpPeriodKey(dimName, storageName string) string {
	return "cube.dim." + strings.ToLower(dimName) + "." + strings.ToLower(storageName) + ".dumpperiod"
}

func DimReferencesKey(dimName, columnName string) string {
	return "cube.dim." + strings.ToLower(dimName) + "." + strings.ToLower(columnName) + ".references"
}

func CubeMeasuresListKey(cubeName string) string {
	return "cube.cube." + strings.ToLower(cubeName) + ".measures.list"
}

func CubeDimensionsListKey(cubeName string) string {
	return "cube.cube." + strings.ToLower(cubeName) + ".dimensions.list"
}

func MeasureTypeKey(measureName string) string {
	return "cube.measure." + strings.ToLower(measureName) + ".type"
}

func MeasureAggregateKey(measureName string) string {
	return "cube.measure." + strings.ToLower(measureName) + ".aggregate"
}

func MeasureUnitKey(measureName string) string {
	return "cube.measure." + strings.ToLower(measureName) + ".unit"
}

func DimensionTypeKey(dimensionName string) string {
	return "cube.dimension." + strings.ToLower(dimensionName) + ".type"
}

func DimensionReferencesKey(dimensionName string) string {
	return "cube.dimension." + strings.ToLower(dimensionName) + ".references"
}

// LatestTimestampKey holds the formatted timestamp of the current latest
// marker for a time partition column.
func LatestTimestampKey(columnName string) string {
	return "cube.storagetable.latest." + strings.ToLower(columnName) + ".timestamp"
}

// LatestPeriodKey holds the update period the marker timestamp was formatted
// with, so the marker can be parsed back with the same codec that wrote it.
func LatestPeriodKey(columnName string) string {
	return "cube.storagetable.latest." + strings.ToLower(columnName) + ".updateperiod"
}

// LatestPartFilter builds the catalog filter that finds the latest pseudo
// partition of a time column.
func LatestPartFilter(columnName string) string {
	return cattypes.EqualsFilter(columnName, LatestPartitionValue)
}

// FormatTimePartCols encodes time partition column names for TimePartColsKey.
func FormatTimePartCols(columns []string) string {
	lowered := make([]string, 0, len(columns))
	for _, col := range columns {
		lowered = append(lowered, strings.ToLower(col))
	}
	return strings.Join(lowered, ",")
}

// ParseTimePartCols reads TimePartColsKey off a storage table's properties.
// Absent or empty means the table has no time partition columns.
func ParseTimePartCols(properties map[string]string) []string {
	value, ok := properties[TimePartColsKey]
	if !ok {
		return nil
	}
	var columns []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		columns = append(columns, part)
	}
	return columns
}

func formatWeight(weight float64) string {
	return strconv.FormatFloat(weight, 'f', -1, 64)
}

func parseWeight(value string) (float64, error) {
	return strconv.ParseFloat(value, 64)
}

func formatNameList(names []string) string {
	lowered := make([]string, 0, len(names))
	for _, name := range names {
		lowered = append(lowered, strings.ToLower(name))
	}
	sort.Strings(lowered)
	return strings.Join(lowered, ",")
}

func parseNameList(value string) []string {
	var names []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		names = append(names, strings.ToLower(part))
	}
	return names
}

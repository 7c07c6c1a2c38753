package metastore

import (
	"context"
	"strings"
	"time"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/cube"
)

// latestInfo computes which latest markers a partition write moves. For each
// time partition column the storage table declares, the write's timestamp is
// compared against the current marker; the marker moves unless it is already
// ahead. An equal timestamp still moves the marker, so re-registering the
// newest partition refreshes its marker parameters.
//
// A table without declared time partition columns gets no marker work and
// returns (nil, nil).
func (m *Metastore) latestInfo(ctx context.Context, table *cattypes.Table, desc *cube.StoragePartitionDesc) (*cube.LatestInfo, error) {
	timeCols := cube.ParseTimePartCols(table.Properties)
	if len(timeCols) == 0 {
		return nil, nil
	}

	timestamps := make(map[string]time.Time, len(desc.TimeSpec))
	for column, t := range desc.TimeSpec {
		timestamps[strings.ToLower(column)] = t
	}

	latest := cube.NewLatestInfo()
	for _, column := range timeCols {
		column = strings.ToLower(column)
		written, ok := timestamps[column]
		if !ok {
			return nil, errors.New(ErrMissingTimePartition, "partition write carries no timestamp for a declared time partition column", nil).
				AddContext("table", table.Name).
				AddContext("column", column)
		}

		prior, err := m.latestPartition(ctx, table.Name, column)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			priorTimestamp, err := parseMarker(prior, column)
			if err != nil {
				return nil, err
			}
			if priorTimestamp.After(written) {
				continue
			}
		}
		latest.Set(column, cube.LatestPartColumnInfo{Timestamp: written, Period: desc.UpdatePeriod})
	}
	return latest, nil
}

// latestPartition fetches the current latest pseudo partition of a time
// column, or nil when the column has no marker yet.
func (m *Metastore) latestPartition(ctx context.Context, tableName, column string) (*cattypes.Partition, error) {
	parts, err := m.store.GetPartitionsByFilter(ctx, tableName, cube.LatestPartFilter(column))
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return parts[0], nil
}

// parseMarker reads a marker's timestamp back with the update period that
// wrote it. A marker missing either parameter, or one that no longer parses,
// is corrupt; writes against its column fail until it is repaired.
func parseMarker(part *cattypes.Partition, column string) (time.Time, error) {
	periodRaw, ok := part.Parameters[cube.LatestPeriodKey(column)]
	if !ok {
		return time.Time{}, errors.New(ErrMarkerCorrupt, "latest marker has no update period parameter", nil).
			AddContext("table", part.TableName).
			AddContext("column", column)
	}
	period, err := cube.ParseUpdatePeriod(periodRaw)
	if err != nil {
		return time.Time{}, errors.New(ErrMarkerCorrupt, "latest marker has an unknown update period", err).
			AddContext("table", part.TableName).
			AddContext("column", column).
			AddContext("period", periodRaw)
	}
	raw, ok := part.Parameters[cube.LatestTimestampKey(column)]
	if !ok {
		return time.Time{}, errors.New(ErrMarkerCorrupt, "latest marker has no timestamp parameter", nil).
			AddContext("table", part.TableName).
			AddContext("column", column)
	}
	timestamp, err := period.Parse(raw)
	if err != nil {
		return time.Time{}, errors.New(ErrMarkerCorrupt, "latest marker timestamp does not parse with its recorded period", err).
			AddContext("table", part.TableName).
			AddContext("column", column).
			AddContext("period", period.String())
	}
	return timestamp, nil
}

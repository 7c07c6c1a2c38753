package metastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/catalog/memory"
	"github.com/gear6io/lattice/server/cube"
)

func hourlyPartition(ts time.Time) *cube.StoragePartitionDesc {
	return &cube.StoragePartitionDesc{
		EntityName:   "sales_raw",
		TimeSpec:     map[string]time.Time{"dt": ts},
		NonTimeSpec:  map[string]string{"region": "emea"},
		UpdatePeriod: cube.Hourly,
	}
}

func markerTimestamp(t *testing.T, store *memory.Store, table, column string) string {
	t.Helper()
	part, err := store.GetPartition(context.Background(), table,
		map[string]string{column: cube.LatestPartitionValue, "region": ""})
	require.NoError(t, err)
	require.NotNil(t, part, "expected a latest marker for %s", column)
	return part.Parameters[cube.LatestTimestampKey(column)]
}

func TestAddPartitionCreatesLatestMarker(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, ms.AddPartition(ctx, hourlyPartition(ts), cube.NewStorage("prod")))

	// The data partition landed
	part, err := store.GetPartition(ctx, "prod_sales_raw",
		map[string]string{"dt": "2024-05-01-10", "region": "emea"})
	require.NoError(t, err)
	require.NotNil(t, part)

	// And so did its marker, in the same batch
	assert.Equal(t, "2024-05-01-10", markerTimestamp(t, store, "prod_sales_raw", "dt"))

	exists, err := ms.LatestPartitionExists(ctx, "sales_raw", cube.NewStorage("prod"), "dt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMarkerAdvancesMonotonically(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)
	prod := cube.NewStorage("prod")

	require.NoError(t, ms.AddPartition(ctx, hourlyPartition(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)), prod))
	require.NoError(t, ms.AddPartition(ctx, hourlyPartition(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)), prod))
	assert.Equal(t, "2024-05-01-12", markerTimestamp(t, store, "prod_sales_raw", "dt"))

	// A backfill older than the marker lands without moving it
	require.NoError(t, ms.AddPartition(ctx, hourlyPartition(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)), prod))
	assert.Equal(t, "2024-05-01-12", markerTimestamp(t, store, "prod_sales_raw", "dt"))

	part, err := store.GetPartition(ctx, "prod_sales_raw",
		map[string]string{"dt": "2024-05-01-08", "region": "emea"})
	require.NoError(t, err)
	require.NotNil(t, part)

	// Only one marker per column, however many writes happened
	count, err := ms.GetNumPartitionsByFilter(ctx, "prod_sales_raw", cube.LatestPartFilter("dt"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReAddNewestPartitionMovesMarker(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)
	prod := cube.NewStorage("prod")

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, ms.AddPartition(ctx, hourlyPartition(ts), prod))

	// Equal timestamps favor the new write, so a re-registration
	// refreshes the marker instead of skipping it
	desc := hourlyPartition(ts)
	desc.Parameters = map[string]string{"source": "reload"}
	require.NoError(t, ms.AddPartition(ctx, desc, prod))

	assert.Equal(t, "2024-05-01-10", markerTimestamp(t, store, "prod_sales_raw", "dt"))

	part, err := store.GetPartition(ctx, "prod_sales_raw",
		map[string]string{"dt": "2024-05-01-10", "region": "emea"})
	require.NoError(t, err)
	require.NotNil(t, part)
	assert.Equal(t, "reload", part.Parameters["source"])
}

func TestMarkerPeriodFollowsTheWrite(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)
	prod := cube.NewStorage("prod")

	require.NoError(t, ms.AddPartition(ctx, hourlyPartition(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)), prod))

	// A later write at a coarser period re-stamps the marker with its own
	// period, and the next comparison parses with that period
	daily := &cube.StoragePartitionDesc{
		EntityName:   "sales_raw",
		TimeSpec:     map[string]time.Time{"dt": time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		NonTimeSpec:  map[string]string{"region": "emea"},
		UpdatePeriod: cube.Daily,
	}
	require.NoError(t, ms.AddPartition(ctx, daily, prod))

	assert.Equal(t, "2024-05-02", markerTimestamp(t, store, "prod_sales_raw", "dt"))
	marker, err := store.GetPartition(ctx, "prod_sales_raw",
		map[string]string{"dt": cube.LatestPartitionValue, "region": ""})
	require.NoError(t, err)
	assert.Equal(t, "DAILY", marker.Parameters[cube.LatestPeriodKey("dt")])

	// An hourly write from the day before stays behind the daily marker
	require.NoError(t, ms.AddPartition(ctx, hourlyPartition(time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)), prod))
	assert.Equal(t, "2024-05-02", markerTimestamp(t, store, "prod_sales_raw", "dt"))
}

func TestAddPartitionWithoutTimeColumns(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()

	// A storage table with no declared time partition columns gets no
	// marker work at all
	dim := regionDim()
	binding := StorageBinding{
		Storage: cube.NewStorage("prod"),
		Descriptor: &cube.StorageTableDescriptor{
			PartitionColumns: []cattypes.Column{{Name: "load_id", Type: "string"}},
		},
	}
	require.NoError(t, ms.CreateDimensionTable(ctx, dim, []StorageBinding{binding}))

	desc := &cube.StoragePartitionDesc{
		EntityName:  "regions",
		NonTimeSpec: map[string]string{"load_id": "42"},
	}
	require.NoError(t, ms.AddPartition(ctx, desc, cube.NewStorage("prod")))

	count, err := store.GetNumPartitionsByFilter(ctx, "prod_regions", "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAddPartitionMissingTimestampFails(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	desc := &cube.StoragePartitionDesc{
		EntityName:   "sales_raw",
		NonTimeSpec:  map[string]string{"region": "emea"},
		UpdatePeriod: cube.Hourly,
	}
	err := ms.AddPartition(ctx, desc, cube.NewStorage("prod"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrMissingTimePartition))
}

func TestAddPartitionRequiresPeriodForTimeValues(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	desc := hourlyPartition(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	desc.UpdatePeriod = cube.UpdatePeriodUnknown
	err := ms.AddPartition(ctx, desc, cube.NewStorage("prod"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, cube.ErrInvalidUpdatePeriod))
}

func TestAddPartitionUnknownStorageTable(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	err := ms.AddPartition(ctx, hourlyPartition(time.Now()), cube.NewStorage("backup"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, cattypes.ErrTableNotFound))
}

func TestCorruptMarkerFailsTheWrite(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)
	prod := cube.NewStorage("prod")

	require.NoError(t, ms.AddPartition(ctx, hourlyPartition(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)), prod))

	// Clobber the marker so its period parameter is gone; the upsert
	// replaces the parameters wholesale
	require.NoError(t, store.AddPartitions(ctx, "prod_sales_raw", []*cattypes.Partition{{
		TableName:  "prod_sales_raw",
		Values:     map[string]string{"dt": cube.LatestPartitionValue, "region": ""},
		Parameters: map[string]string{cube.LatestTimestampKey("dt"): "2024-05-01-10"},
	}}))

	err := ms.AddPartition(ctx, hourlyPartition(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)), prod)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrMarkerCorrupt))

	// And with a timestamp its recorded period cannot parse back
	require.NoError(t, store.AddPartitions(ctx, "prod_sales_raw", []*cattypes.Partition{{
		TableName: "prod_sales_raw",
		Values:    map[string]string{"dt": cube.LatestPartitionValue, "region": ""},
		Parameters: map[string]string{
			cube.LatestTimestampKey("dt"): "not-a-timestamp",
			cube.LatestPeriodKey("dt"):    "HOURLY",
		},
	}}))

	err = ms.AddPartition(ctx, hourlyPartition(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)), prod)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrMarkerCorrupt))
}

func TestMultipleTimeColumnsTrackIndependently(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()

	fact := cube.NewFactTable("events", salesFactColumns(),
		[]string{"sales"},
		map[string][]cube.UpdatePeriod{"prod": {cube.Hourly}},
		nil, 0)
	binding := StorageBinding{
		Storage: cube.NewStorage("prod"),
		Descriptor: &cube.StorageTableDescriptor{
			PartitionColumns: []cattypes.Column{
				{Name: "event_time", Type: "string"},
				{Name: "process_time", Type: "string"},
			},
			TimePartColumns: []string{"event_time", "process_time"},
		},
	}
	require.NoError(t, ms.CreateFactTable(ctx, fact, []StorageBinding{binding}))

	desc := &cube.StoragePartitionDesc{
		EntityName: "events",
		TimeSpec: map[string]time.Time{
			"event_time":   time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
			"process_time": time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		UpdatePeriod: cube.Hourly,
	}
	require.NoError(t, ms.AddPartition(ctx, desc, cube.NewStorage("prod")))

	// Each column holds its own marker pseudo partition
	eventMarker, err := store.GetPartition(ctx, "prod_events",
		map[string]string{"event_time": cube.LatestPartitionValue, "process_time": ""})
	require.NoError(t, err)
	require.NotNil(t, eventMarker)
	assert.Equal(t, "2024-05-01-08", eventMarker.Parameters[cube.LatestTimestampKey("event_time")])

	processMarker, err := store.GetPartition(ctx, "prod_events",
		map[string]string{"event_time": "", "process_time": cube.LatestPartitionValue})
	require.NoError(t, err)
	require.NotNil(t, processMarker)
	assert.Equal(t, "2024-05-01-10", processMarker.Parameters[cube.LatestTimestampKey("process_time")])

	// A later write advancing only one column leaves the other alone
	desc2 := &cube.StoragePartitionDesc{
		EntityName: "events",
		TimeSpec: map[string]time.Time{
			"event_time":   time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC),
			"process_time": time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
		},
		UpdatePeriod: cube.Hourly,
	}
	require.NoError(t, ms.AddPartition(ctx, desc2, cube.NewStorage("prod")))

	assert.Equal(t, "2024-05-01-08", markerTimestampFor(t, store, "prod_events", "event_time",
		map[string]string{"event_time": cube.LatestPartitionValue, "process_time": ""}))
	assert.Equal(t, "2024-05-01-11", markerTimestampFor(t, store, "prod_events", "process_time",
		map[string]string{"event_time": "", "process_time": cube.LatestPartitionValue}))
}

func markerTimestampFor(t *testing.T, store *memory.Store, table, column string, values map[string]string) string {
	t.Helper()
	part, err := store.GetPartition(context.Background(), table, values)
	require.NoError(t, err)
	require.NotNil(t, part)
	return part.Parameters[cube.LatestTimestampKey(column)]
}

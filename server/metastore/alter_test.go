package metastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/cube"
)

func TestAlterCubeMergesProperties(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()

	original := salesCube()
	original.Properties["owner"] = "analytics"
	require.NoError(t, ms.CreateCube(ctx, original))

	updated := cube.NewCube("sales",
		[]cube.Measure{
			{Name: "revenue", Type: "double", Aggregate: "sum", Unit: "usd"},
			{Name: "orders", Type: "bigint", Aggregate: "count"},
		},
		[]cube.Dimension{{Name: "region", Type: "string"}},
		map[string]string{"team": "growth"}, 0)
	require.NoError(t, ms.AlterCube(ctx, "Sales", updated))

	cb, err := ms.GetCube(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "revenue"}, cb.MeasureNames())

	// Old properties survive the merge, new ones land
	row, err := store.GetTable(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, "analytics", row.Properties["owner"])
	assert.Equal(t, "growth", row.Properties["team"])
}

func TestAlterFactFansOutColumns(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	widened := append(salesFactColumns(), cattypes.Column{Name: "discount", Type: "double"})
	updated := cube.NewFactTable("sales_raw", widened,
		[]string{"sales"},
		map[string][]cube.UpdatePeriod{"prod": {cube.Hourly, cube.Daily}},
		nil, 10)
	require.NoError(t, ms.AlterFactTable(ctx, "sales_raw", updated))

	// The logical row and every storage table carry the new schema
	row, err := store.GetTable(ctx, "sales_raw")
	require.NoError(t, err)
	require.Len(t, row.Columns, 3)

	storageRow, err := store.GetTable(ctx, "prod_sales_raw")
	require.NoError(t, err)
	require.Len(t, storageRow.Columns, 3)
	assert.Equal(t, "discount", storageRow.Columns[2].Name)

	// Partition columns of the storage table are untouched
	assert.Equal(t, []string{"dt", "region"}, storageRow.PartitionColumnNames())

	fact, err := ms.GetFactTable(ctx, "sales_raw")
	require.NoError(t, err)
	require.Len(t, fact.Columns, 3)
}

func TestAlterFactWithoutColumnChangeSkipsFanOut(t *testing.T) {
	ms, store, clock := newTestMetastoreFull(t, true)
	ctx := context.Background()
	createSalesFact(t, ms)

	before, err := store.GetTable(ctx, "prod_sales_raw")
	require.NoError(t, err)

	// With the clock advanced, an untouched storage table keeps its old
	// audit timestamp while the altered logical row gets a new one
	clock.Advance(time.Hour)

	updated := salesFact()
	updated.Properties["retention"] = "90d"
	require.NoError(t, ms.AlterFactTable(ctx, "sales_raw", updated))

	after, err := store.GetTable(ctx, "prod_sales_raw")
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))

	row, err := store.GetTable(ctx, "sales_raw")
	require.NoError(t, err)
	assert.Equal(t, "90d", row.Properties["retention"])
	assert.True(t, row.UpdatedAt.After(before.UpdatedAt))
}

func TestAlterFactPartialFanOutStillRefreshesCache(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)
	require.NoError(t, ms.AddFactStorage(ctx, "sales_raw", cube.NewStorage("backup"),
		[]cube.UpdatePeriod{cube.Daily}, prodStorageDesc()))

	// Lose one storage table out from under the metastore; "backup" sorts
	// first so the fan-out alters it before failing on "prod"
	require.NoError(t, store.DropTable(ctx, "prod_sales_raw"))

	widened := append(salesFactColumns(), cattypes.Column{Name: "discount", Type: "double"})
	updated := cube.NewFactTable("sales_raw", widened,
		[]string{"sales"},
		map[string][]cube.UpdatePeriod{
			"prod":   {cube.Hourly, cube.Daily},
			"backup": {cube.Daily},
		},
		nil, 10)

	err := ms.AlterFactTable(ctx, "sales_raw", updated)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, cattypes.ErrTableNotFound))

	// The storage altered before the failure keeps the new schema
	backupRow, err := store.GetTable(ctx, "backup_sales_raw")
	require.NoError(t, err)
	require.Len(t, backupRow.Columns, 3)

	// The cached model still agrees with the catalog row, which was
	// altered before the fan-out started
	fact, err := ms.GetFactTable(ctx, "sales_raw")
	require.NoError(t, err)
	require.Len(t, fact.Columns, 3)
}

func TestAlterDimensionFansOutColumns(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()

	binding := StorageBinding{Storage: cube.NewStorage("prod"), Descriptor: dimStorageDesc()}
	require.NoError(t, ms.CreateDimensionTable(ctx, regionDim(), []StorageBinding{binding}))

	widened := []cattypes.Column{
		{Name: "id", Type: "int"},
		{Name: "name", Type: "string"},
		{Name: "iso_code", Type: "string"},
	}
	updated := cube.NewDimensionTable("regions", widened,
		map[string][]cube.TableReference{"id": {{Table: "countries", Column: "region_id"}}},
		map[string]cube.UpdatePeriod{"prod": cube.Daily},
		nil, 0)
	require.NoError(t, ms.AlterDimensionTable(ctx, "regions", updated))

	storageRow, err := store.GetTable(ctx, "prod_regions")
	require.NoError(t, err)
	require.Len(t, storageRow.Columns, 3)
}

func TestAlterNameMismatch(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	err := ms.AlterFactTable(ctx, "sales_raw", salesFact())
	require.NoError(t, err)

	renamed := cube.NewFactTable("other_name", salesFactColumns(),
		[]string{"sales"},
		map[string][]cube.UpdatePeriod{"prod": {cube.Hourly}},
		nil, 0)
	err = ms.AlterFactTable(ctx, "sales_raw", renamed)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrEntityNameMismatch))
}

func TestAlterWrongType(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	err := ms.AlterCube(ctx, "sales_raw", salesCube())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrEntityNameMismatch))

	misdirected := cube.NewCube("sales_raw", nil, nil, nil, 0)
	err = ms.AlterCube(ctx, "sales_raw", misdirected)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrWrongTableType))
}

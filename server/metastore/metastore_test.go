package metastore

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
	"github.com/gear6io/lattice/server/catalog/memory"
	"github.com/gear6io/lattice/server/config"
	"github.com/gear6io/lattice/server/cube"
)

func newTestMetastore(t *testing.T) (*Metastore, *memory.Store) {
	t.Helper()
	ms, store, _ := newTestMetastoreFull(t, true)
	return ms, store
}

func newTestMetastoreCaching(t *testing.T, caching bool) (*Metastore, *memory.Store) {
	t.Helper()
	ms, store, _ := newTestMetastoreFull(t, caching)
	return ms, store
}

func newTestMetastoreFull(t *testing.T, caching bool) (*Metastore, *memory.Store, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	store := memory.NewStoreWithClock(zerolog.Nop(), clock)

	cfg := config.LoadDefaultConfig()
	cfg.Metastore.EnableCaching = &caching

	ms := New(cfg, store, zerolog.Nop())
	t.Cleanup(func() { ms.Close() })
	return ms, store, clock
}

func salesCube() *cube.Cube {
	return cube.NewCube("Sales",
		[]cube.Measure{{Name: "revenue", Type: "double", Aggregate: "sum", Unit: "usd"}},
		[]cube.Dimension{{Name: "region", Type: "string"}},
		nil, 0)
}

func salesFactColumns() []cattypes.Column {
	return []cattypes.Column{
		{Name: "revenue", Type: "double"},
		{Name: "region", Type: "string"},
	}
}

func salesFact() *cube.FactTable {
	return cube.NewFactTable("Sales_Raw", salesFactColumns(),
		[]string{"Sales"},
		map[string][]cube.UpdatePeriod{"prod": {cube.Hourly, cube.Daily}},
		nil, 10)
}

func regionDim() *cube.DimensionTable {
	return cube.NewDimensionTable("Regions",
		[]cattypes.Column{{Name: "id", Type: "int"}, {Name: "name", Type: "string"}},
		map[string][]cube.TableReference{"id": {{Table: "countries", Column: "region_id"}}},
		map[string]cube.UpdatePeriod{"prod": cube.Daily},
		nil, 0)
}

func prodStorageDesc() *cube.StorageTableDescriptor {
	return &cube.StorageTableDescriptor{
		PartitionColumns: []cattypes.Column{
			{Name: "dt", Type: "string"},
			{Name: "region", Type: "string"},
		},
		TimePartColumns: []string{"dt"},
	}
}

func prodBinding() StorageBinding {
	return StorageBinding{Storage: cube.NewStorage("prod"), Descriptor: prodStorageDesc()}
}

func dimStorageDesc() *cube.StorageTableDescriptor {
	return &cube.StorageTableDescriptor{
		PartitionColumns: []cattypes.Column{{Name: "dt", Type: "string"}},
		TimePartColumns:  []string{"dt"},
	}
}

func createSalesFact(t *testing.T, ms *Metastore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ms.CreateCube(ctx, salesCube()))
	require.NoError(t, ms.CreateFactTable(ctx, salesFact(), []StorageBinding{prodBinding()}))
}

func TestCreateCubeRoundTrip(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()

	require.NoError(t, ms.CreateCube(ctx, salesCube()))

	// Lookups are case-insensitive because identity is the lowercase name
	cb, err := ms.GetCube(ctx, "SALES")
	require.NoError(t, err)
	assert.Equal(t, "sales", cb.Name)
	assert.Equal(t, []string{"revenue"}, cb.MeasureNames())
	assert.Equal(t, []string{"region"}, cb.DimensionNames())

	// The row carries the classification tag
	row, err := store.GetTable(ctx, "sales")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "CUBE", row.Properties[cube.TableTypeKey])
}

func TestCreateFactTableCreatesStorageTables(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	fact, err := ms.GetFactTable(ctx, "sales_raw")
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, fact.Storages())
	assert.True(t, fact.BelongsTo("sales"))

	// The physical table exists under the prefix-derived name and
	// declares its time partition columns
	row, err := store.GetTable(ctx, "prod_sales_raw")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, []string{"dt", "region"}, row.PartitionColumnNames())
	assert.Equal(t, "dt", row.Properties[cube.TimePartColsKey])
}

func TestCreateFactTableRejectsUnboundStorage(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()

	err := ms.CreateFactTable(ctx, salesFact(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrStorageMismatch))

	// Nothing was persisted
	exists, err := ms.TableExists(ctx, "sales_raw")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateFactTableRejectsUntrackedBinding(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()

	extra := StorageBinding{Storage: cube.NewStorage("backup"), Descriptor: prodStorageDesc()}
	err := ms.CreateFactTable(ctx, salesFact(), []StorageBinding{prodBinding(), extra})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrStorageMismatch))
}

func TestCreateDimensionTableRoundTrip(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()

	binding := StorageBinding{Storage: cube.NewStorage("prod"), Descriptor: dimStorageDesc()}
	require.NoError(t, ms.CreateDimensionTable(ctx, regionDim(), []StorageBinding{binding}))

	dim, err := ms.GetDimensionTable(ctx, "regions")
	require.NoError(t, err)
	assert.Equal(t, cube.Daily, dim.SnapshotDumpPeriods["prod"])
	require.Len(t, dim.References["id"], 1)
	assert.Equal(t, "countries", dim.References["id"][0].Table)

	row, err := store.GetTable(ctx, "prod_regions")
	require.NoError(t, err)
	require.NotNil(t, row)
}

func TestCreateDuplicateEntityFails(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()

	require.NoError(t, ms.CreateCube(ctx, salesCube()))
	err := ms.CreateCube(ctx, salesCube())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, cattypes.ErrTableAlreadyExists))
}

func TestGetWrongEntityKind(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	_, err := ms.GetCube(ctx, "sales_raw")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrWrongTableType))

	_, err = ms.GetFactTable(ctx, "sales")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrWrongTableType))

	_, err = ms.GetDimensionTable(ctx, "sales")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrWrongTableType))
}

func TestGetMissingEntity(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()

	_, err := ms.GetCube(ctx, "nope")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, cattypes.ErrTableNotFound))

	_, err = ms.GetTable(ctx, "nope")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, cattypes.ErrTableNotFound))

	exists, err := ms.TableExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClassificationChecks(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	isCube, err := ms.IsCube(ctx, "Sales")
	require.NoError(t, err)
	assert.True(t, isCube)

	isFact, err := ms.IsFactTable(ctx, "sales")
	require.NoError(t, err)
	assert.False(t, isFact)

	isFact, err = ms.IsFactTable(ctx, "sales_raw")
	require.NoError(t, err)
	assert.True(t, isFact)

	// Storage tables carry no tag and are foreign to the model
	isDim, err := ms.IsDimensionTable(ctx, "prod_sales_raw")
	require.NoError(t, err)
	assert.False(t, isDim)
}

func TestMalformedRowFailsDecode(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()

	// A row tagged as a fact but missing its cube membership property
	require.NoError(t, store.CreateTable(ctx, &cattypes.Table{
		Name:       "broken",
		Columns:    []cattypes.Column{{Name: "v", Type: "int"}},
		Properties: map[string]string{cube.TableTypeKey: "FACT"},
	}))

	_, err := ms.GetFactTable(ctx, "broken")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, cube.ErrMalformedMetadata))

	// Listings surface the malformed row instead of skipping it
	_, err = ms.AllFactTables(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, cube.ErrMalformedMetadata))
}

func TestListings(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	binding := StorageBinding{Storage: cube.NewStorage("prod"), Descriptor: dimStorageDesc()}
	require.NoError(t, ms.CreateDimensionTable(ctx, regionDim(), []StorageBinding{binding}))

	cubes, err := ms.AllCubes(ctx)
	require.NoError(t, err)
	require.Len(t, cubes, 1)
	assert.Equal(t, "sales", cubes[0].Name)

	facts, err := ms.AllFactTables(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "sales_raw", facts[0].Name)

	dims, err := ms.AllDimensionTables(ctx)
	require.NoError(t, err)
	require.Len(t, dims, 1)
	assert.Equal(t, "regions", dims[0].Name)

	// Storage tables appear in the raw table list but in no typed listing
	names, err := ms.AllTableNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "prod_sales_raw")
	assert.Contains(t, names, "prod_regions")
}

func TestAllFactTablesForCube(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	other := cube.NewFactTable("clicks_raw", salesFactColumns(),
		[]string{"other_cube"},
		map[string][]cube.UpdatePeriod{"prod": {cube.Daily}},
		nil, 0)
	require.NoError(t, ms.CreateFactTable(ctx, other, []StorageBinding{prodBinding()}))

	facts, err := ms.AllFactTablesForCube(ctx, "Sales")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "sales_raw", facts[0].Name)

	_, err = ms.AllFactTablesForCube(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, cattypes.ErrTableNotFound))
}

func TestPartColumnHelpers(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	names, err := ms.PartColumnNames(ctx, "prod_sales_raw")
	require.NoError(t, err)
	assert.Equal(t, []string{"dt", "region"}, names)

	exists, err := ms.PartColumnExists(ctx, "prod_sales_raw", "DT")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = ms.PartColumnExists(ctx, "prod_sales_raw", "country")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAddFactStorage(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	require.NoError(t, ms.AddFactStorage(ctx, "sales_raw", cube.NewStorage("backup"),
		[]cube.UpdatePeriod{cube.Daily}, prodStorageDesc()))

	fact, err := ms.GetFactTable(ctx, "sales_raw")
	require.NoError(t, err)
	assert.Equal(t, []string{"backup", "prod"}, fact.Storages())
	assert.Equal(t, []cube.UpdatePeriod{cube.Daily}, fact.StorageUpdatePeriods["backup"])

	// Tracking map and physical tables agree
	row, err := store.GetTable(ctx, "backup_sales_raw")
	require.NoError(t, err)
	require.NotNil(t, row)

	// The catalog row was altered, not just the cache
	raw, err := store.GetTable(ctx, "sales_raw")
	require.NoError(t, err)
	assert.Contains(t, raw.Properties[cube.FactStoragesKey("sales_raw")], "backup")
}

func TestAddFactStorageValidation(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	err := ms.AddFactStorage(ctx, "sales_raw", cube.NewStorage("backup"), nil, prodStorageDesc())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CommonInvalidInput))

	err = ms.AddFactStorage(ctx, "sales", cube.NewStorage("backup"),
		[]cube.UpdatePeriod{cube.Daily}, prodStorageDesc())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrWrongTableType))

	// Re-adding an existing storage fails on the physical table
	err = ms.AddFactStorage(ctx, "sales_raw", cube.NewStorage("prod"),
		[]cube.UpdatePeriod{cube.Daily}, prodStorageDesc())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, cattypes.ErrTableAlreadyExists))
}

func TestAddDimStorageAppendOnly(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()

	binding := StorageBinding{Storage: cube.NewStorage("prod"), Descriptor: dimStorageDesc()}
	require.NoError(t, ms.CreateDimensionTable(ctx, regionDim(), []StorageBinding{binding}))

	// Zero dump period tracks the storage as append-only
	appendDesc := &cube.StorageTableDescriptor{
		PartitionColumns: []cattypes.Column{{Name: "load_id", Type: "string"}},
	}
	require.NoError(t, ms.AddDimStorage(ctx, "regions", cube.NewStorage("archive"),
		cube.UpdatePeriodUnknown, appendDesc))

	dim, err := ms.GetDimensionTable(ctx, "regions")
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "prod"}, dim.Storages())
	assert.Equal(t, cube.UpdatePeriodUnknown, dim.SnapshotDumpPeriods["archive"])

	row, err := store.GetTable(ctx, "archive_regions")
	require.NoError(t, err)
	require.NotNil(t, row)
}

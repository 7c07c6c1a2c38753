package metastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gear6io/lattice/server/cube"
)

func TestCachedModelsServeRepeatReads(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	first, err := ms.GetFactTable(ctx, "sales_raw")
	require.NoError(t, err)

	// A direct catalog write behind the metastore's back is invisible to
	// cached reads; only metastore mutations refresh entries
	row, err := store.GetTable(ctx, "sales_raw")
	require.NoError(t, err)
	row.Properties["smuggled"] = "yes"
	require.NoError(t, store.AlterTable(ctx, row))

	second, err := ms.GetFactTable(ctx, "sales_raw")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.NotContains(t, second.Properties, "smuggled")
}

func TestDisabledCacheReadsThrough(t *testing.T) {
	ms, store := newTestMetastoreCaching(t, false)
	ctx := context.Background()
	createSalesFact(t, ms)

	_, err := ms.GetFactTable(ctx, "sales_raw")
	require.NoError(t, err)

	row, err := store.GetTable(ctx, "sales_raw")
	require.NoError(t, err)
	row.Properties["smuggled"] = "yes"
	require.NoError(t, store.AlterTable(ctx, row))

	// Every read goes to the catalog, so the direct write shows up
	fact, err := ms.GetFactTable(ctx, "sales_raw")
	require.NoError(t, err)
	assert.Equal(t, "yes", fact.Properties["smuggled"])
}

func TestCacheAgreesWithCatalogAfterMutations(t *testing.T) {
	ms, store := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	assertAgreement := func(step string) {
		row, err := store.GetTable(ctx, "sales_raw")
		require.NoError(t, err, step)
		require.NotNil(t, row, step)
		fromRow, err := cube.FactFromRow(row)
		require.NoError(t, err, step)
		cached, err := ms.GetFactTable(ctx, "sales_raw")
		require.NoError(t, err, step)
		assert.Equal(t, fromRow, cached, step)
	}

	assertAgreement("after create")

	require.NoError(t, ms.AddFactStorage(ctx, "sales_raw", cube.NewStorage("backup"),
		[]cube.UpdatePeriod{cube.Daily}, prodStorageDesc()))
	assertAgreement("after add storage")

	updated := salesFact()
	updated.StorageUpdatePeriods["backup"] = []cube.UpdatePeriod{cube.Daily}
	updated.Properties["retention"] = "90d"
	require.NoError(t, ms.AlterFactTable(ctx, "sales_raw", updated))
	assertAgreement("after alter")

	require.NoError(t, ms.DropFactStorage(ctx, "sales_raw", "backup"))
	assertAgreement("after drop storage")
}

func TestRawEntriesCacheClassification(t *testing.T) {
	ms, _ := newTestMetastore(t)
	ctx := context.Background()
	createSalesFact(t, ms)

	// Prime the raw entry, then confirm the typed getter agrees without
	// a second classification pass
	isFact, err := ms.IsFactTable(ctx, "sales_raw")
	require.NoError(t, err)
	require.True(t, isFact)

	entry, ok := ms.cache.getTable("sales_raw")
	require.True(t, ok)
	assert.Equal(t, cube.TypeFact, entry.tag)
}

func TestDisabledCacheHoldsNothing(t *testing.T) {
	ms, _ := newTestMetastoreCaching(t, false)
	ctx := context.Background()
	createSalesFact(t, ms)

	_, err := ms.GetFactTable(ctx, "sales_raw")
	require.NoError(t, err)
	_, err = ms.GetCube(ctx, "sales")
	require.NoError(t, err)

	_, ok := ms.cache.getTable("sales_raw")
	assert.False(t, ok)
	_, ok = ms.cache.getFact("sales_raw")
	assert.False(t, ok)
	_, ok = ms.cache.getCube("sales")
	assert.False(t, ok)
}

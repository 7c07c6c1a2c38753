package cube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/cattypes"
)

func testFact(t *testing.T) *FactTable {
	t.Helper()
	return NewFactTable("Sales_Raw",
		[]cattypes.Column{
			{Name: "revenue", Type: "double"},
			{Name: "units", Type: "bigint"},
		},
		[]string{"Sales"},
		map[string][]UpdatePeriod{
			"PROD": {Hourly, Daily},
			"cold": {Monthly},
		},
		nil,
		100,
	)
}

func TestFactRowRoundTrip(t *testing.T) {
	original := testFact(t)
	row := original.ToRow()

	assert.Equal(t, "sales_raw", row.Name)
	assert.Equal(t, TypeFact, ClassifyRow(row))
	assert.Equal(t, "sales", row.Properties[FactCubeNamesKey("sales_raw")])
	assert.Equal(t, "cold,prod", row.Properties[FactStoragesKey("sales_raw")])
	assert.Equal(t, "HOURLY,DAILY", row.Properties[FactUpdatePeriodsKey("sales_raw", "prod")])
	assert.Equal(t, "MONTHLY", row.Properties[FactUpdatePeriodsKey("sales_raw", "cold")])

	parsed, err := FactFromRow(row)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales"}, parsed.CubeNames)
	assert.Equal(t, []string{"cold", "prod"}, parsed.Storages())
	assert.Equal(t, []UpdatePeriod{Hourly, Daily}, parsed.StorageUpdatePeriods["prod"])
	assert.Equal(t, float64(100), parsed.Weight)
	assert.True(t, parsed.BelongsTo("SALES"))
	assert.False(t, parsed.BelongsTo("inventory"))
	assert.True(t, parsed.HasStorage("Prod"))
	assert.False(t, parsed.HasStorage("warm"))
}

func TestFactFromRowRequiresCubeNames(t *testing.T) {
	row := testFact(t).ToRow()
	delete(row.Properties, FactCubeNamesKey("sales_raw"))

	_, err := FactFromRow(row)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrMalformedMetadata))
}

func TestFactFromRowRequiresStoragePeriods(t *testing.T) {
	row := testFact(t).ToRow()
	delete(row.Properties, FactUpdatePeriodsKey("sales_raw", "prod"))

	_, err := FactFromRow(row)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrMalformedMetadata))
}

func TestFactFromRowRejectsBadPeriod(t *testing.T) {
	row := testFact(t).ToRow()
	row.Properties[FactUpdatePeriodsKey("sales_raw", "prod")] = "SOMETIMES"

	_, err := FactFromRow(row)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrMalformedMetadata))
}

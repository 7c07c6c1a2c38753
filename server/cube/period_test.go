package cube

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gear6io/lattice/pkg/errors"
)

func TestUpdatePeriodFormatParse(t *testing.T) {
	ts := time.Date(2024, 5, 17, 13, 45, 30, 0, time.UTC)

	tests := []struct {
		period UpdatePeriod
		value  string
		bucket time.Time
	}{
		{Minutely, "2024-05-17-13-45", time.Date(2024, 5, 17, 13, 45, 0, 0, time.UTC)},
		{Hourly, "2024-05-17-13", time.Date(2024, 5, 17, 13, 0, 0, 0, time.UTC)},
		{Daily, "2024-05-17", time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)},
		{Weekly, "2024-W20", time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)},
		{Monthly, "2024-05", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{Quarterly, "2024-Q2", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		{Yearly, "2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.period.String(), func(t *testing.T) {
			assert.Equal(t, tt.value, tt.period.Format(ts))

			parsed, err := tt.period.Parse(tt.value)
			require.NoError(t, err)
			assert.True(t, parsed.Equal(tt.bucket), "parsed %v, want %v", parsed, tt.bucket)

			// Formatting the bucket start reproduces the value
			assert.Equal(t, tt.value, tt.period.Format(tt.bucket))
		})
	}
}

func TestWeeklySpansYearBoundary(t *testing.T) {
	// January 1 2023 is a Sunday, so it belongs to ISO week 52 of 2022
	ts := time.Date(2023, 1, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "2022-W52", Weekly.Format(ts))

	bucket, err := Weekly.Parse("2022-W52")
	require.NoError(t, err)
	assert.True(t, bucket.Equal(time.Date(2022, 12, 26, 0, 0, 0, 0, time.UTC)))
	assert.True(t, bucket.Equal(Weekly.Truncate(ts)))
}

func TestParseRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		period UpdatePeriod
		value  string
	}{
		{Hourly, "2024-05-17"},
		{Daily, "not-a-date"},
		{Weekly, "2024-05-17"},
		{Weekly, "2024-W99"},
		{Quarterly, "2024-Q7"},
		{Quarterly, "2024-05"},
		{Yearly, "24"},
	}

	for _, tt := range tests {
		_, err := tt.period.Parse(tt.value)
		require.Error(t, err, "period %s value %q", tt.period, tt.value)
		assert.True(t, errors.IsCode(err, ErrInvalidTimestamp))
	}
}

func TestParseUpdatePeriod(t *testing.T) {
	for _, period := range AllUpdatePeriods() {
		parsed, err := ParseUpdatePeriod(period.String())
		require.NoError(t, err)
		assert.Equal(t, period, parsed)
	}

	parsed, err := ParseUpdatePeriod("hourly")
	require.NoError(t, err)
	assert.Equal(t, Hourly, parsed)

	parsed, err = ParseUpdatePeriod(" Daily ")
	require.NoError(t, err)
	assert.Equal(t, Daily, parsed)

	_, err = ParseUpdatePeriod("fortnightly")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrInvalidUpdatePeriod))
}

func TestUpdatePeriodListRoundTrip(t *testing.T) {
	encoded := FormatUpdatePeriods([]UpdatePeriod{Daily, Hourly, Monthly})
	assert.Equal(t, "HOURLY,DAILY,MONTHLY", encoded)

	periods, err := ParseUpdatePeriods(encoded)
	require.NoError(t, err)
	assert.Equal(t, []UpdatePeriod{Hourly, Daily, Monthly}, periods)

	periods, err = ParseUpdatePeriods("")
	require.NoError(t, err)
	assert.Empty(t, periods)

	_, err = ParseUpdatePeriods("HOURLY,bogus")
	require.Error(t, err)
}

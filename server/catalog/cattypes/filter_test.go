package cattypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilterSingleTerm(t *testing.T) {
	terms, err := ParseFilter("dt = '2024-05-01-10'")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "dt", terms[0].Column)
	assert.Equal(t, "2024-05-01-10", terms[0].Value)
}

func TestParseFilterMultipleTerms(t *testing.T) {
	terms, err := ParseFilter("dt = '2024-05-01' AND region = 'emea'")
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, FilterTerm{Column: "dt", Value: "2024-05-01"}, terms[0])
	assert.Equal(t, FilterTerm{Column: "region", Value: "emea"}, terms[1])
}

func TestParseFilterCaseInsensitiveAnd(t *testing.T) {
	terms, err := ParseFilter("a = '1' and b = '2'")
	require.NoError(t, err)
	assert.Len(t, terms, 2)
}

func TestParseFilterEscapedQuote(t *testing.T) {
	terms, err := ParseFilter("name = 'o''brien'")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "o'brien", terms[0].Value)
}

func TestParseFilterEmpty(t *testing.T) {
	terms, err := ParseFilter("")
	require.NoError(t, err)
	assert.Nil(t, terms)

	terms, err = ParseFilter("   ")
	require.NoError(t, err)
	assert.Nil(t, terms)
}

func TestParseFilterErrors(t *testing.T) {
	invalid := []string{
		"dt =",
		"dt = unquoted",
		"= 'x'",
		"dt = 'unterminated",
		"dt = 'a' region = 'b'",
		"dt = 'a' AND",
	}

	for _, filter := range invalid {
		_, err := ParseFilter(filter)
		assert.Error(t, err, "filter %q should not parse", filter)
	}
}

func TestEqualsFilterRoundTrip(t *testing.T) {
	filter := EqualsFilter("dt", "it's")
	assert.Equal(t, "dt = 'it''s'", filter)

	terms, err := ParseFilter(filter)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "it's", terms[0].Value)
}

func TestMatchesFilter(t *testing.T) {
	values := map[string]string{"dt": "2024-05-01", "region": "emea"}

	terms, err := ParseFilter("dt = '2024-05-01'")
	require.NoError(t, err)
	assert.True(t, MatchesFilter(values, terms))

	terms, err = ParseFilter("dt = '2024-05-01' AND region = 'apac'")
	require.NoError(t, err)
	assert.False(t, MatchesFilter(values, terms))

	// No terms matches everything
	assert.True(t, MatchesFilter(values, nil))
}

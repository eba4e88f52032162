package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsonpool "github.com/vizydrop/gallery/pkg/json"
)

func TestMultiListAcceptsArrayAndCSV(t *testing.T) {
	var fromArray MultiList
	require.NoError(t, jsonpool.Unmarshal([]byte(`["a","b"]`), &fromArray))
	assert.Equal(t, MultiList{"a", "b"}, fromArray)

	var fromCSV MultiList
	require.NoError(t, jsonpool.Unmarshal([]byte(`"a,b,c"`), &fromCSV))
	assert.Equal(t, MultiList{"a", "b", "c"}, fromCSV)

	var empty MultiList
	require.NoError(t, jsonpool.Unmarshal([]byte(`""`), &empty))
	assert.Empty(t, empty)
}

func TestMultiListContains(t *testing.T) {
	assert.True(t, MultiList(nil).Contains("anything"), "empty list matches everything")
	assert.True(t, MultiList{"x", "y"}.Contains("y"))
	assert.False(t, MultiList{"x"}.Contains("z"))
}

func TestDateRangeAcceptsStringAndObject(t *testing.T) {
	var bare DateRange
	require.NoError(t, jsonpool.Unmarshal([]byte(`"2015-01-01"`), &bare))
	assert.Equal(t, "2015-01-01", bare.Min)
	assert.Empty(t, bare.Max)

	var ranged DateRange
	require.NoError(t, jsonpool.Unmarshal([]byte(`{"_min":"2015-01-01","_max":"2015-12-31"}`), &ranged))
	assert.Equal(t, "2015-01-01", ranged.Min)
	assert.Equal(t, "2015-12-31", ranged.Max)
}

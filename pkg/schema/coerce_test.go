package schema

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceDateFormats(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"rfc3339", "2015-03-02T18:20:16Z", "2015-03-02T18:20:16Z"},
		{"rfc3339 with offset", "2015-03-02T18:20:16+02:00", "2015-03-02T16:20:16Z"},
		{"millis with offset suffix", "2015-03-02T18:20:16.000-0500", "2015-03-02T23:20:16Z"},
		{"bare date", "2015-03-02", "2015-03-02T00:00:00Z"},
		{"ms epoch", "/Date(1325376000000)/", "2012-01-01T00:00:00Z"},
		{"ms epoch with zone", "/Date(1325376000000+0100)/", "2012-01-01T00:00:00Z"},
		{"epoch seconds", float64(1325376000), "2012-01-01T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceDate(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceDateRejectsGarbage(t *testing.T) {
	_, err := coerceDate("next tuesday")
	assert.Error(t, err)

	_, err = coerceDate(true)
	assert.Error(t, err)
}

func TestCoerceEmptyStringsAreNil(t *testing.T) {
	for _, kind := range []Kind{KindNumber, KindDecimal, KindDate, KindDateTime} {
		got, err := coerce("", kind)
		require.NoError(t, err)
		assert.Nil(t, got, "kind %s", kind)
	}
}

func TestCoerceDecimal(t *testing.T) {
	got, err := coerceDecimal("12.50")
	require.NoError(t, err)
	assert.True(t, got.(decimal.Decimal).Equal(decimal.RequireFromString("12.5")))

	got, err = coerceDecimal(float64(3))
	require.NoError(t, err)
	assert.True(t, got.(decimal.Decimal).Equal(decimal.NewFromInt(3)))
}

func TestCoerceInt(t *testing.T) {
	got, err := coerceInt(float64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	got, err = coerceInt(" 7 ")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)
}

func TestStringifyWholeFloats(t *testing.T) {
	assert.Equal(t, "42", stringify(float64(42)))
	assert.Equal(t, "4.2", stringify(4.2))
	assert.Equal(t, "abc", stringify("abc"))
}

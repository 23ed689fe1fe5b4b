package algorand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.000000", FormatAmount(1000000, 6))
	assert.Equal(t, "0.000001", FormatAmount(1, 6))
	assert.Equal(t, "0.00", FormatAmount(0, 2))
	assert.Equal(t, "12.34", FormatAmount(1234, 2))
	assert.Equal(t, "18446744073709.551615", FormatAmount(^uint64(0), 6))
	assert.Equal(t, "42", FormatAmount(42, 0))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		decimals int32
		want     uint64
	}{
		{"1", 6, 1000000},
		{"1.5", 6, 1500000},
		{"$0.01", 6, 10000},
		{" 2.250000 ", 6, 2250000},
		{"0", 6, 0},
		{"42", 0, 42},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in, tt.decimals)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseAmountErrors(t *testing.T) {
	for _, in := range []string{"abc", "-1", "0.0000001", "18446744073709551616", ""} {
		_, err := ParseAmount(in, 6)
		assert.Error(t, err, in)
	}
}

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ"))
	assert.False(t, IsValidAddress("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"))
	assert.False(t, IsValidAddress(""))
}

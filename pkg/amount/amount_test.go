package amount_test

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakeflow/pkg/amount"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("when input is a plain decimal", func(t *testing.T) {
		t.Parallel()

		testCases := []struct {
			name     string
			input    string
			expected string
		}{
			{name: "integer", input: "100", expected: "100"},
			{name: "fraction", input: "100.000001", expected: "100.000001"},
			{name: "leading dot", input: ".5", expected: "0.5"},
			{name: "surrounding spaces", input: "  42.1 ", expected: "42.1"},
			{name: "zero", input: "0", expected: "0"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				// Act
				d, err := amount.Parse(tc.input)

				// Assert
				require.NoError(t, err)
				assert.Equal(t, tc.expected, d.String())
			})
		}
	})

	t.Run("when input is malformed", func(t *testing.T) {
		t.Parallel()

		testCases := []struct {
			name        string
			input       string
			expectedErr error
		}{
			{name: "empty", input: "", expectedErr: amount.ErrEmptyAmount},
			{name: "blank", input: "   ", expectedErr: amount.ErrEmptyAmount},
			{name: "letters", input: "abc", expectedErr: amount.ErrNotDecimal},
			{name: "exponent", input: "1e18", expectedErr: amount.ErrNotDecimal},
			{name: "explicit plus", input: "+5", expectedErr: amount.ErrNotDecimal},
			{name: "two dots", input: "1.2.3", expectedErr: amount.ErrNotDecimal},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				// Act
				_, err := amount.Parse(tc.input)

				// Assert
				assert.ErrorIs(t, err, amount.ErrInvalidAmount)
				assert.ErrorIs(t, err, tc.expectedErr)
			})
		}
	})
}

func TestParsePositive(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
	}{
		{name: "zero", input: "0"},
		{name: "zero with fraction", input: "0.000"},
		{name: "negative", input: "-1"},
	}

	for _, tc := range testCases {
		t.Run("it rejects "+tc.name, func(t *testing.T) {
			t.Parallel()

			// Act
			_, err := amount.ParsePositive(tc.input)

			// Assert
			assert.ErrorIs(t, err, amount.ErrNotPositive)
		})
	}

	t.Run("it accepts the smallest representable unit", func(t *testing.T) {
		t.Parallel()

		// Act
		d, err := amount.ParsePositive("0.000000000000000001")

		// Assert
		require.NoError(t, err)
		assert.True(t, d.IsPositive())
	})
}

func TestParseFixedPoint(t *testing.T) {
	t.Parallel()

	t.Run("it pads the fraction to eighteen digits", func(t *testing.T) {
		t.Parallel()

		// Act
		raw, err := amount.ParseFixedPoint("1.5")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "1500000000000000000", raw.String())
	})

	t.Run("it truncates digits beyond eighteen", func(t *testing.T) {
		t.Parallel()

		// Act
		raw, err := amount.ParseFixedPoint("0.0000000000000000019")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "1", raw.String())
	})

	t.Run("it returns an error instead of zero for non-numeric input", func(t *testing.T) {
		t.Parallel()

		// Act
		raw, err := amount.ParseFixedPoint("ten")

		// Assert
		assert.ErrorIs(t, err, amount.ErrInvalidAmount)
		assert.Nil(t, raw)
	})
}

func TestFromFixedPoint(t *testing.T) {
	t.Parallel()

	t.Run("it converts raw integers to token units", func(t *testing.T) {
		t.Parallel()

		// Arrange
		raw, _ := new(big.Int).SetString("2000000123000000000000000", 10)

		// Act
		d := amount.FromFixedPoint(raw)

		// Assert
		assert.Equal(t, "2000000.123", d.String())
	})

	t.Run("it treats nil as zero", func(t *testing.T) {
		t.Parallel()

		assert.True(t, amount.FromFixedPoint(nil).IsZero())
	})

	t.Run("it parses database strings", func(t *testing.T) {
		t.Parallel()

		// Act
		d, err := amount.FromFixedPointString("50000000000000000000")

		// Assert
		require.NoError(t, err)
		assert.True(t, d.Equal(decimal.NewFromInt(50)))
	})

	t.Run("it rejects non-integer database strings", func(t *testing.T) {
		t.Parallel()

		// Act
		_, err := amount.FromFixedPointString("12.5")

		// Assert
		assert.ErrorIs(t, err, amount.ErrInvalidAmount)
	})
}

func TestFormat(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		places   int32
		expected string
	}{
		{name: "trims trailing zeros", input: "12.500000", places: 6, expected: "12.5"},
		{name: "truncates extra digits", input: "0.1234567", places: 6, expected: "0.123456"},
		{name: "keeps integers", input: "7", places: 2, expected: "7"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			d := decimal.RequireFromString(tc.input)

			// Act
			result := amount.Format(d, tc.places)

			// Assert
			assert.Equal(t, tc.expected, result)
		})
	}
}

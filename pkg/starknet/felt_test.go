package starknet_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakeflow/pkg/starknet"
)

func TestSelector(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		expected string
	}{
		{name: "transfer", expected: "0x0083afd3f4caedc6eebf44246fe54e38c95e3179a5ec9ea81740eca5b482d12e"},
		{name: "balanceOf", expected: "0x02e4263afad30923c891518314c3c95dbe830a16874e8abc5777a9a20b54c76e"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Act
			selector := starknet.Selector(tc.name)

			// Assert
			assert.True(t, starknet.SameAddress(tc.expected, selector), "got %s", selector)
		})
	}
}

func TestU256(t *testing.T) {
	t.Parallel()

	t.Run("it splits and joins values across the 128-bit boundary", func(t *testing.T) {
		t.Parallel()

		values := []*big.Int{
			big.NewInt(0),
			big.NewInt(1),
			new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)),
			new(big.Int).Lsh(big.NewInt(1), 128),
			new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)),
		}

		for _, v := range values {
			// Act
			low, high := starknet.SplitU256(v)
			joined, err := starknet.JoinU256(low, high)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, 0, v.Cmp(joined), "value %s", v)
		}
	})

	t.Run("it rejects oversized limbs", func(t *testing.T) {
		t.Parallel()

		// Act
		_, err := starknet.JoinU256("0x100000000000000000000000000000000", "0x0")

		// Assert
		assert.ErrorIs(t, err, starknet.ErrInvalidU256)
	})

	t.Run("it rejects non-hex limbs", func(t *testing.T) {
		t.Parallel()

		// Act
		_, err := starknet.JoinU256("12", "0x0")

		// Assert
		assert.ErrorIs(t, err, starknet.ErrInvalidFelt)
	})
}

func TestNormalizeAddress(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lower-cases", input: "0xABCdef", expected: "0xabcdef"},
		{name: "strips padding", input: "0x000123", expected: "0x123"},
		{name: "keeps zero", input: "0x0000", expected: "0x0"},
		{name: "trims spaces", input: " 0x1 ", expected: "0x1"},
		{name: "leaves non-hex alone", input: "Pool-A", expected: "pool-a"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, starknet.NormalizeAddress(tc.input))
		})
	}

	t.Run("it matches padded and mixed-case spellings", func(t *testing.T) {
		t.Parallel()

		assert.True(t, starknet.SameAddress("0x00AbC", "0xabc"))
		assert.False(t, starknet.SameAddress("0xabc", "0xabd"))
	})
}

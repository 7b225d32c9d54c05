package migrator_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakeflow/migrator"
	"github.com/screwyprof/stakeflow/pkg/starknet"
)

func TestLoadValidators(t *testing.T) {
	t.Parallel()

	t.Run("it loads and normalises validators", func(t *testing.T) {
		t.Parallel()

		// Arrange
		path := writeValidatorsFile(t, `[
			{"address": "0x00AB", "name": "Alpha", "poolAddress": "0x0A1", "commission": 500},
			{"address": "0xcd", "name": "Beta", "poolAddress": "0xb2", "commission": 0}
		]`)

		// Act
		seeds, err := migrator.LoadValidators(path)

		// Assert
		require.NoError(t, err)
		require.Len(t, seeds, 2)
		assert.Equal(t, migrator.ValidatorSeed{Address: "0xab", Name: "Alpha", PoolAddress: "0xa1", Commission: 500}, seeds[0])
	})

	t.Run("it rejects invalid entries", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name    string
			content string
		}{
			{name: "when the name is missing", content: `[{"address": "0x1", "poolAddress": "0xa1"}]`},
			{name: "when the pool is not hex", content: `[{"address": "0x1", "name": "A", "poolAddress": "pool"}]`},
			{name: "when commission exceeds 100%", content: `[{"address": "0x1", "name": "A", "poolAddress": "0xa1", "commission": 10001}]`},
			{name: "when two validators share a pool", content: `[
				{"address": "0x1", "name": "A", "poolAddress": "0xa1"},
				{"address": "0x2", "name": "B", "poolAddress": "0x0a1"}
			]`},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				// Act
				_, err := migrator.LoadValidators(writeValidatorsFile(t, tc.content))

				// Assert
				assert.ErrorIs(t, err, migrator.ErrInvalidValidators)
			})
		}
	})

	t.Run("it reports unreadable files", func(t *testing.T) {
		t.Parallel()

		_, missingErr := migrator.LoadValidators(filepath.Join(t.TempDir(), "missing.json"))
		_, corruptErr := migrator.LoadValidators(writeValidatorsFile(t, `{`))

		assert.ErrorIs(t, missingErr, migrator.ErrValidatorsFile)
		assert.ErrorIs(t, corruptErr, migrator.ErrValidatorsFile)
	})
}

func TestDemoChain(t *testing.T) {
	t.Parallel()

	demo := migrator.DemoConfig{Delegators: 60, Seed: 7}

	t.Run("it generates the same chain for the same config", func(t *testing.T) {
		t.Parallel()

		// Act
		first := migrator.NewDemoChain(migrator.DemoValidators(), demo)
		second := migrator.NewDemoChain(migrator.DemoValidators(), demo)

		// Assert
		assert.Equal(t, first.Head(), second.Head())
		assert.Equal(t, allEvents(t, first), allEvents(t, second))
		assert.Greater(t, first.EventCount(), demo.Delegators)
	})

	t.Run("it only delegates to known pools", func(t *testing.T) {
		t.Parallel()

		// Arrange
		pools := make(map[string]bool)
		for _, v := range migrator.DemoValidators() {
			pools[v.PoolAddress] = true
		}

		// Act
		events := allEvents(t, migrator.NewDemoChain(migrator.DemoValidators(), demo))

		// Assert
		for _, ev := range events {
			assert.True(t, pools[ev.FromAddress], "unexpected pool %s", ev.FromAddress)
		}
	})

	t.Run("it pages events with continuation tokens", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := migrator.NewDemoChain(migrator.DemoValidators(), demo)
		filter := starknet.EventFilter{
			FromBlock: starknet.AtBlock(0),
			ToBlock:   starknet.AtBlock(chain.Head()),
			ChunkSize: 5,
		}

		// Act
		var pages, total int
		for {
			chunk, err := chain.GetEvents(t.Context(), filter)
			require.NoError(t, err)
			pages++
			total += len(chunk.Events)
			if chunk.ContinuationToken == "" {
				break
			}
			filter.ContinuationToken = chunk.ContinuationToken
		}

		// Assert
		assert.Equal(t, chain.EventCount(), total)
		assert.Equal(t, (total+4)/5, pages)
	})

	t.Run("it stamps blocks from the genesis time", func(t *testing.T) {
		t.Parallel()

		// Act
		ts, err := migrator.NewDemoChain(nil, demo).BlockTimestamp(t.Context(), 4)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, migrator.DemoGenesis.Add(4*migrator.DemoBlockInterval), ts)
	})
}

func writeValidatorsFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "validators.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func allEvents(t *testing.T, chain *migrator.DemoChain) []starknet.EmittedEvent {
	t.Helper()

	chunk, err := chain.GetEvents(t.Context(), starknet.EventFilter{
		FromBlock: starknet.AtBlock(0),
		ToBlock:   starknet.AtBlock(chain.Head()),
	})
	require.NoError(t, err)
	require.Empty(t, chunk.ContinuationToken)
	return chunk.Events
}

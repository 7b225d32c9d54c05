//go:build acceptance

package indexer_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakeflow/indexer"
	"github.com/screwyprof/stakeflow/indexer/store/pgxstore"
	"github.com/screwyprof/stakeflow/indexer/testcfg"
	"github.com/screwyprof/stakeflow/migrator"
	"github.com/screwyprof/stakeflow/migrator/migratortest"
)

const migrationsDir = "../migrator/migrations"

// TestIndexerAcceptanceBehavior tests end-to-end indexing into a real PostgreSQL database
func TestIndexerAcceptanceBehavior(t *testing.T) {
	t.Parallel()

	cfg := testcfg.New()
	demo := migrator.DemoConfig{Delegators: 40, Seed: 1}

	t.Run("it indexes the chain history and stores delegation state", func(t *testing.T) {
		t.Parallel()

		// Arrange
		testDB := migratortest.CreateIndexerTestDatabase(t, migrationsDir, cfg.Checkpoint)
		require.NoError(t, migrator.UpsertValidators(t.Context(), testDB, migrator.DemoValidators()))

		chain := migrator.NewDemoChain(migrator.DemoValidators(), demo)
		store, _ := pgxstore.New(testDB)

		// Act
		backfillResult := runIndexerUntilPollingStarts(t, createTestService(chain, store, cfg), cfg)

		// Assert
		assert.Equal(t, int64(chain.EventCount()), backfillResult.TotalProcessed)
		assert.Equal(t, chain.Head(), backfillResult.Checkpoint)
		assertStoredEventCount(t, testDB, int64(chain.EventCount()))
		assertDelegationCount(t, testDB, int64(demo.Delegators))
		assertExitedMembersAreClosed(t, testDB)
	})

	t.Run("it ignores replayed events", func(t *testing.T) {
		t.Parallel()

		// Arrange
		testDB := migratortest.CreateIndexerTestDatabase(t, migrationsDir, cfg.Checkpoint)
		require.NoError(t, migrator.UpsertValidators(t.Context(), testDB, migrator.DemoValidators()))

		chain := migrator.NewDemoChain(migrator.DemoValidators(), demo)
		store, _ := pgxstore.New(testDB)
		runIndexerUntilPollingStarts(t, createTestService(chain, store, cfg), cfg)

		// Act
		require.NoError(t, migrator.SetCheckpoint(t.Context(), testDB, 0))
		replay := runIndexerUntilPollingStarts(t, createTestService(chain, store, cfg), cfg)

		// Assert
		assert.Equal(t, int64(chain.EventCount()), replay.TotalProcessed)
		assertStoredEventCount(t, testDB, int64(chain.EventCount()))
		assertDelegationCount(t, testDB, int64(demo.Delegators))
	})

	t.Run("it resumes from a stored checkpoint", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := migrator.NewDemoChain(migrator.DemoValidators(), demo)
		testDB := migratortest.CreateIndexerTestDatabase(t, migrationsDir, chain.Head())
		require.NoError(t, migrator.UpsertValidators(t.Context(), testDB, migrator.DemoValidators()))
		store, _ := pgxstore.New(testDB)

		// Act
		backfillResult := runIndexerUntilPollingStarts(t, createTestService(chain, store, cfg), cfg)

		// Assert
		assert.Zero(t, backfillResult.TotalProcessed)
		assertStoredEventCount(t, testDB, 0)
	})
}

// runIndexerUntilPollingStarts executes the indexer and returns backfill results
func runIndexerUntilPollingStarts(t *testing.T, service *indexer.Service, cfg testcfg.Config) indexer.BackfillDone {
	t.Helper()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	events, done := service.Start(ctx)

	var backfillDone indexer.BackfillDone

	closer := indexer.NewSubscriber(events,
		indexer.OnBackfillDone(func(e indexer.BackfillDone) {
			backfillDone = e
			t.Logf("Backfill completed: %d events in %v", e.TotalProcessed, e.Duration)
		}),
		indexer.OnBackfillError(func(e indexer.BackfillError) {
			t.Errorf("Backfill failed: %v", e.Err)
			cancel()
		}),
		indexer.OnPollingStarted(func(e indexer.PollingStarted) {
			t.Logf("Polling started with interval: %v - canceling service", e.Interval)
			cancel()
		}),
	)

	select {
	case <-done:
	case <-time.After(cfg.SeedTimeout):
		t.Fatal("Service did not shut down within timeout")
	}
	closer()

	return backfillDone
}

func createTestService(chain indexer.Client, store indexer.Store, cfg testcfg.Config) *indexer.Service {
	return indexer.NewService(chain, store,
		indexer.WithBlockRange(cfg.BlockRange),
		indexer.WithPageSize(cfg.PageSize),
		indexer.WithPollInterval(cfg.PollInterval),
	)
}

func assertStoredEventCount(t *testing.T, testDB *pgxpool.Pool, expected int64) {
	t.Helper()

	var count int64
	err := testDB.QueryRow(t.Context(), "SELECT COUNT(*) FROM delegation_events").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, expected, count, "Stored events should match indexed events")
}

func assertDelegationCount(t *testing.T, testDB *pgxpool.Pool, expected int64) {
	t.Helper()

	var count int64
	err := testDB.QueryRow(t.Context(), "SELECT COUNT(*) FROM delegations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, expected, count, "Each demo delegator should hold one delegation")
}

// assertExitedMembersAreClosed verifies that a zero balance ends the delegation period
func assertExitedMembersAreClosed(t *testing.T, testDB *pgxpool.Pool) {
	t.Helper()

	var open, exited int64
	err := testDB.QueryRow(t.Context(), `
		SELECT
			COUNT(*) FILTER (WHERE amount = 0 AND end_time IS NULL),
			COUNT(*) FILTER (WHERE amount = 0 AND end_time IS NOT NULL AND unpool_time IS NULL)
		FROM delegations`).Scan(&open, &exited)
	require.NoError(t, err)
	assert.Zero(t, open, "Zero balances should close the delegation")
	assert.Positive(t, exited, "The demo chain includes exits")
}

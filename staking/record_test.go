package staking_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakeflow/staking"
)

func TestRecordStake(t *testing.T) {
	t.Parallel()

	t.Run("it writes one record for a single leg", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := &fakeRecordStore{}
		recorder := staking.NewRecorder(store, discardLogger())

		// Act
		outcome := recorder.RecordStake(t.Context(), "0xtx", account, planWithLegs(leg(staking.RolePrimary, poolA, "100")))

		// Assert
		assert.Equal(t, staking.RecordOutcome{Persisted: true, Records: 1}, outcome)
		assert.Equal(t, []staking.StakeRecord{{
			TransactionHash:     "0xtx",
			SenderAddress:       account,
			PoolContractAddress: poolA,
			AmountStaked:        "100",
		}}, store.saved)
	})

	t.Run("it suffixes the hash of each leg in split mode", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := &fakeRecordStore{}
		recorder := staking.NewRecorder(store, discardLogger())
		plan := planWithLegs(
			leg(staking.RolePrimary, poolA, "90.000001"),
			leg(staking.RoleSecondary, poolB, "10"),
		)

		// Act
		outcome := recorder.RecordStake(t.Context(), "0xtx", account, plan)

		// Assert
		assert.True(t, outcome.Persisted)
		require.Len(t, store.saved, 2)
		assert.Equal(t, "0xtx-primary", store.saved[0].TransactionHash)
		assert.Equal(t, "90.000001", store.saved[0].AmountStaked)
		assert.Equal(t, "0xtx-secondary", store.saved[1].TransactionHash)
		assert.Equal(t, poolB, store.saved[1].PoolContractAddress)
	})

	t.Run("when the write fails it logs and reports instead of failing", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		store := &fakeRecordStore{err: errors.New("db down")}
		recorder := staking.NewRecorder(store, logger)

		// Act
		outcome := recorder.RecordStake(t.Context(), "0xtx", account, planWithLegs(leg(staking.RolePrimary, poolA, "1")))

		// Assert
		assert.Equal(t, staking.RecordOutcome{Persisted: false, Records: 1}, outcome)
		assert.Contains(t, buf.String(), "Failed to persist stake records")
		assert.Contains(t, buf.String(), "db down")
	})

	t.Run("when the plan is empty it writes nothing", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := &fakeRecordStore{}

		// Act
		outcome := staking.NewRecorder(store, discardLogger()).RecordStake(t.Context(), "0xtx", account, staking.CallPlan{})

		// Assert
		assert.False(t, outcome.Persisted)
		assert.Zero(t, store.calls)
	})
}

// Test helpers

type fakeRecordStore struct {
	saved []staking.StakeRecord
	calls int
	err   error
}

func (f *fakeRecordStore) SaveStakeRecords(_ context.Context, records []staking.StakeRecord) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, records...)
	return nil
}

func leg(role, pool, amt string) staking.Leg {
	d := decimal.RequireFromString(amt)
	return staking.Leg{Role: role, PoolAddress: pool, Amount: d, Raw: strk(amt)}
}

func planWithLegs(legs ...staking.Leg) staking.CallPlan {
	return staking.CallPlan{Legs: legs}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

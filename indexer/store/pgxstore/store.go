// Package pgxstore persists indexer batches in Postgres.
package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/stakeflow/indexer"
	"github.com/screwyprof/stakeflow/indexer/store/dbrow"
)

// Sentinel errors for store operations
var (
	ErrTransactionFailed        = errors.New("transaction failed")
	ErrTempTableFailed          = errors.New("temporary table operation failed")
	ErrCopyFailed               = errors.New("bulk copy operation failed")
	ErrInsertFailed             = errors.New("insert operation failed")
	ErrStateUpdateFailed        = errors.New("delegation state update failed")
	ErrCheckpointFailed         = errors.New("checkpoint update failed")
	ErrLastProcessedBlockFailed = errors.New("failed to get last processed block")
	ErrPoolAddressesFailed      = errors.New("failed to list pool addresses")
)

// SQL queries
const (
	lastProcessedBlockSQL = `SELECT last_block FROM indexer_checkpoint`

	poolAddressesSQL = `SELECT pool_address FROM validators ORDER BY pool_address`

	createTempEventsSQL = `
		CREATE TEMPORARY TABLE temp_delegation_events (
			transaction_hash TEXT,
			pool_address TEXT,
			event_index INTEGER,
			block_number BIGINT,
			block_time TIMESTAMPTZ,
			kind TEXT,
			delegator TEXT,
			amount TEXT,
			exit_time TIMESTAMPTZ
		) ON COMMIT DROP`

	insertEventsSQL = `
		INSERT INTO delegation_events
			(transaction_hash, pool_address, event_index, block_number, block_time, kind, delegator, amount, exit_time)
		SELECT transaction_hash, pool_address, event_index, block_number, block_time, kind, delegator, amount::numeric, exit_time
		FROM temp_delegation_events
		ON CONFLICT (transaction_hash, pool_address, event_index) DO NOTHING`

	// A member that fully exited and re-enters starts a new delegation period.
	upsertMemberSQL = `
		INSERT INTO delegations (delegator, pool_address, amount, reward_address, start_time, block_number)
		VALUES ($1, $2, $3::numeric, NULLIF($4, ''), $5, $6)
		ON CONFLICT (delegator, pool_address) DO UPDATE SET
			amount = EXCLUDED.amount,
			reward_address = COALESCE(EXCLUDED.reward_address, delegations.reward_address),
			start_time = CASE WHEN delegations.end_time IS NOT NULL THEN EXCLUDED.start_time ELSE delegations.start_time END,
			end_time = NULL,
			block_number = EXCLUDED.block_number
		WHERE delegations.block_number <= EXCLUDED.block_number`

	// A zero balance closes the delegation period and clears a pending exit.
	updateBalanceSQL = `
		INSERT INTO delegations (delegator, pool_address, amount, start_time, end_time, block_number)
		VALUES ($1, $2, $3::numeric, $4, CASE WHEN $3::numeric = 0 THEN $4::timestamptz END, $5)
		ON CONFLICT (delegator, pool_address) DO UPDATE SET
			amount = EXCLUDED.amount,
			start_time = CASE WHEN delegations.end_time IS NOT NULL AND EXCLUDED.amount > 0 THEN EXCLUDED.start_time ELSE delegations.start_time END,
			end_time = CASE WHEN EXCLUDED.amount = 0 THEN EXCLUDED.start_time END,
			unpool_time = CASE WHEN EXCLUDED.amount = 0 THEN NULL ELSE delegations.unpool_time END,
			unpool_amount = CASE WHEN EXCLUDED.amount = 0 THEN NULL ELSE delegations.unpool_amount END,
			block_number = EXCLUDED.block_number
		WHERE delegations.block_number <= EXCLUDED.block_number`

	// A zero exit amount cancels the intent.
	exitIntentSQL = `
		UPDATE delegations SET
			unpool_time = CASE WHEN $3::numeric = 0 THEN NULL ELSE $4::timestamptz END,
			unpool_amount = NULLIF($3::numeric, 0),
			block_number = $5
		WHERE delegator = $1 AND pool_address = $2 AND block_number <= $5`

	upsertCheckpointSQL = `
		INSERT INTO indexer_checkpoint (single_row, last_block) VALUES (TRUE, $1)
		ON CONFLICT (single_row) DO UPDATE SET last_block = EXCLUDED.last_block`
)

// Store implements indexer.Store interface using pgx
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with an existing connection pool
// Returns the store and a closer function
func New(pool *pgxpool.Pool) (*Store, func()) {
	store := &Store{pool: pool}
	closer := func() {
		pool.Close()
	}
	return store, closer
}

// LastProcessedBlock returns the checkpoint block, 0 when none is stored
func (s *Store) LastProcessedBlock(ctx context.Context) (uint64, error) {
	var last int64
	err := s.pool.QueryRow(ctx, lastProcessedBlockSQL).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLastProcessedBlockFailed, err)
	}
	return uint64(last), nil
}

// PoolAddresses lists the pools of all known validators
func (s *Store) PoolAddresses(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, poolAddressesSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoolAddressesFailed, err)
	}

	pools, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoolAddressesFailed, err)
	}
	return pools, nil
}

// SaveBatch stores events, folds them into delegation state and advances the
// checkpoint in one transaction. Events are bulk loaded with CopyFrom through
// a temporary table so replays are ignored.
func (s *Store) SaveBatch(ctx context.Context, batch indexer.Batch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // No-op if commit succeeds

	if len(batch.Events) > 0 {
		if err := copyEvents(ctx, tx, batch.Events); err != nil {
			return err
		}
		if err := applyState(ctx, tx, batch.Events); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, upsertCheckpointSQL, int64(batch.ToBlock)); err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	return nil
}

func copyEvents(ctx context.Context, tx pgx.Tx, events []indexer.DelegationEvent) error {
	if _, err := tx.Exec(ctx, createTempEventsSQL); err != nil {
		return fmt.Errorf("%w: %w", ErrTempTableFailed, err)
	}

	_, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"temp_delegation_events"},
		dbrow.EventColumns,
		pgx.CopyFromRows(dbrow.EventsToRows(events)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopyFailed, err)
	}

	if _, err := tx.Exec(ctx, insertEventsSQL); err != nil {
		return fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	return nil
}

// applyState replays events in chain order as one round trip.
func applyState(ctx context.Context, tx pgx.Tx, events []indexer.DelegationEvent) error {
	b := &pgx.Batch{}
	for _, ev := range events {
		row := dbrow.FromIndexerEvent(ev)
		switch ev.Kind {
		case indexer.KindNewPoolMember:
			b.Queue(upsertMemberSQL, row.Delegator, row.PoolAddress, row.Amount, ev.RewardAddress, row.BlockTime, row.BlockNumber)
		case indexer.KindBalanceChanged:
			b.Queue(updateBalanceSQL, row.Delegator, row.PoolAddress, row.Amount, row.BlockTime, row.BlockNumber)
		case indexer.KindExitIntent:
			b.Queue(exitIntentSQL, row.Delegator, row.PoolAddress, row.Amount, row.ExitTime, row.BlockNumber)
		}
	}

	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrStateUpdateFailed, err)
	}
	return nil
}

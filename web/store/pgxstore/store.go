// Package pgxstore implements the web read models and the stake record mirror on PostgreSQL.
package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/stakeflow/analytics"
	"github.com/screwyprof/stakeflow/staking"
	"github.com/screwyprof/stakeflow/web/store/dbrow"
	"github.com/screwyprof/stakeflow/web/strk"
)

// Sentinel errors for store operations
var (
	ErrQueryFailed  = errors.New("query failed")
	ErrInvalidStake = errors.New("invalid stored stake")
	ErrSaveFailed   = errors.New("failed to save stake records")
)

const (
	unpoolsQuery = `SELECT d.pool_address, v.name, COALESCE(d.unpool_amount, 0)::text AS unpool_amount, d.unpool_time
		FROM delegations d
		JOIN validators v ON v.pool_address = d.pool_address
		WHERE d.delegator = $1 AND d.unpool_time IS NOT NULL
		ORDER BY d.unpool_time`

	insertStakeRecord = `INSERT INTO stake_records (transaction_hash, sender_address, pool_contract_address, amount_staked)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (transaction_hash) DO NOTHING`
)

// Store serves validators, flow records and unpool times, and mirrors confirmed stakes
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

// FindValidators queries validators based on the provided criteria
// Uses LIMIT n+1 technique for efficient pagination without separate count query
func (s *Store) FindValidators(ctx context.Context, criteria strk.ValidatorsCriteria) (*strk.ValidatorsPage, error) {
	query, args := NewValidatorsQuery().ForCriteria(criteria).Build()

	validators, err := s.queryValidators(ctx, query, args)
	if err != nil {
		return nil, err
	}

	// Determine if there are more pages using LIMIT n+1 technique
	hasMore := len(validators) > int(criteria.Size)
	if hasMore {
		// Remove the extra record we requested to detect "has more"
		validators = validators[:criteria.Size]
	}

	return &strk.ValidatorsPage{
		Validators: validators,
		HasMore:    hasMore,
		Number:     criteria.Page,
		Size:       criteria.Size,
	}, nil
}

// FindBottomValidators returns the n validators with the least stake
func (s *Store) FindBottomValidators(ctx context.Context, n int) ([]strk.Validator, error) {
	query, args := NewValidatorsQuery().Bottom(n).Build()
	return s.queryValidators(ctx, query, args)
}

func (s *Store) queryValidators(ctx context.Context, query string, args []any) ([]strk.Validator, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.Validator])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	validators := make([]strk.Validator, 0, len(dbRows))
	for _, row := range dbRows {
		stake, ok := new(big.Int).SetString(row.TotalStake, 10)
		if !ok {
			return nil, fmt.Errorf("%w: %q for %s", ErrInvalidStake, row.TotalStake, row.PoolAddress)
		}

		// Convert database row to domain model
		validators = append(validators, strk.Validator{
			Address:        row.Address,
			Name:           row.Name,
			PoolAddress:    row.PoolAddress,
			Commission:     row.Commission,
			TotalStake:     stake,
			DelegatorCount: row.DelegatorCount,
		})
	}

	return validators, nil
}

// FindFlowRecords returns the active delegations that started inside the range
func (s *Store) FindFlowRecords(ctx context.Context, r strk.DateRange) ([]analytics.Record, error) {
	query, args := NewFlowRecordsQuery().ForDateRange(r).Build()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.FlowRecord])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	records := make([]analytics.Record, 0, len(dbRows))
	for _, row := range dbRows {
		stake, err := analytics.StakeFromFixedPoint(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidStake, err)
		}

		record := analytics.Record{
			Delegator:        row.Delegator,
			Validator:        row.Name,
			ValidatorAddress: row.PoolAddress,
			StakeAmount:      stake,
			StartTime:        row.StartTime.Unix(),
		}
		if row.EndTime != nil {
			record.EndTime = row.EndTime.Unix()
		}
		records = append(records, record)
	}

	return records, nil
}

// FindUnpools returns the pending exits of a delegator, earliest first
func (s *Store) FindUnpools(ctx context.Context, delegator string) ([]strk.Unpool, error) {
	rows, err := s.pool.Query(ctx, unpoolsQuery, delegator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.Unpool])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	unpools := make([]strk.Unpool, len(dbRows))
	for i, row := range dbRows {
		unpools[i] = strk.Unpool{
			PoolAddress:   row.PoolAddress,
			ValidatorName: row.Name,
			Amount:        row.UnpoolAmount,
			UnpoolTime:    row.UnpoolTime.UTC(),
		}
	}

	return unpools, nil
}

// SaveStakeRecords inserts the records in one batch. Hashes already present
// are left untouched, so a retried write is harmless.
func (s *Store) SaveStakeRecords(ctx context.Context, records []staking.StakeRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insertStakeRecord, r.TransactionHash, r.SenderAddress, r.PoolContractAddress, r.AmountStaked)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	return nil
}

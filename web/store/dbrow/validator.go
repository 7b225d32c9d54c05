package dbrow

import (
	"time"
)

// Validator represents a row of the validator_stats view
type Validator struct {
	Address        string `db:"address"`
	Name           string `db:"name"`
	PoolAddress    string `db:"pool_address"`
	Commission     int    `db:"commission"`
	TotalStake     string `db:"total_stake"` // NUMERIC(78,0) selected as text
	DelegatorCount int64  `db:"delegator_count"`
}

// FlowRecord represents an active delegation joined with its validator
type FlowRecord struct {
	Delegator   string     `db:"delegator"`
	Name        string     `db:"name"`
	PoolAddress string     `db:"pool_address"`
	Amount      string     `db:"amount"`
	StartTime   time.Time  `db:"start_time"`
	EndTime     *time.Time `db:"end_time"`
}

// Unpool represents a delegation with a pending exit
type Unpool struct {
	PoolAddress  string    `db:"pool_address"`
	Name         string    `db:"name"`
	UnpoolAmount string    `db:"unpool_amount"`
	UnpoolTime   time.Time `db:"unpool_time"`
}

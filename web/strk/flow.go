package strk

import (
	"context"
	"time"

	"github.com/screwyprof/stakeflow/analytics"
)

// FlowRecordsFinder loads the delegation records behind the flow graph.
type FlowRecordsFinder interface {
	FindFlowRecords(ctx context.Context, r DateRange) ([]analytics.Record, error)
}

// Unpool is a pending on-chain exit of one delegation.
type Unpool struct {
	PoolAddress   string
	ValidatorName string
	Amount        string // 18-decimal fixed point
	UnpoolTime    time.Time
}

// UnpoolFinder reads the pending exits of a delegator.
type UnpoolFinder interface {
	FindUnpools(ctx context.Context, delegator string) ([]Unpool, error)
}

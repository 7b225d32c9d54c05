// Package indexer mirrors delegation pool events from Starknet into Postgres.
// It backfills from the stored checkpoint to the chain head in block-range
// chunks, then keeps polling for new blocks.
package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/screwyprof/stakeflow/pkg/starknet"
)

// Sentinel errors for failure cases
var (
	ErrCheckpointRetrieval = errors.New("checkpoint retrieval failed")
	ErrPoolsRetrieval      = errors.New("pool list retrieval failed")
	ErrRPCFailed           = errors.New("chain request failed")
	ErrSaveBatchFailed     = errors.New("save batch failed")
	ErrDecodeFailed        = errors.New("event decoding failed")
)

// Default configuration values
const (
	DefaultBlockRange   = uint64(1000)
	DefaultPageSize     = 1000
	DefaultPollInterval = 10 * time.Second
	DefaultConcurrency  = 4
)

// Client reads blocks and events from a Starknet node
// ----------------------------------------------------
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, block uint64) (time.Time, error)
	GetEvents(ctx context.Context, filter starknet.EventFilter) (starknet.EventsChunk, error)
}

// Store provides persistence operations for delegation data
type Store interface {
	// LastProcessedBlock returns the last block whose events are fully stored.
	LastProcessedBlock(ctx context.Context) (uint64, error)
	// PoolAddresses lists the delegation pool contracts to watch.
	PoolAddresses(ctx context.Context) ([]string, error)
	// SaveBatch stores the events and advances the checkpoint to batch.ToBlock atomically.
	SaveBatch(ctx context.Context, batch Batch) error
}

// Batch is everything found in one block range.
type Batch struct {
	FromBlock uint64
	ToBlock   uint64
	Events    []DelegationEvent
}

// SyncResult contains the results of a sync batch operation
type SyncResult struct {
	Count      int
	Checkpoint uint64
	Head       uint64
	CaughtUp   bool
}

// Clock abstracts time for production and testing
// ------------------------------------------------
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// Event represents a service lifecycle event
// ------------------------------------------
type Event any

type BackfillDone struct {
	TotalProcessed int64
	Duration       time.Duration
	Checkpoint     uint64
}

type BackfillStarted struct {
	StartedAt  time.Time
	Checkpoint uint64
}

type BackfillSyncCompleted struct {
	Fetched    int
	Checkpoint uint64
	Head       uint64
	BlockRange uint64
}

type BackfillError struct {
	Err error
}

type PollingSyncCompleted struct {
	Fetched    int
	Checkpoint uint64
	Head       uint64
	BlockRange uint64
}

type PollingStarted struct {
	Interval time.Duration
}

type PollingShutdown struct {
	Reason error // Why shutdown occurred (ctx.Err())
}

type PollingError struct {
	Err error
}

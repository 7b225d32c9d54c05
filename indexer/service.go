package indexer

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mailgun/holster/v4/syncutil"

	"github.com/screwyprof/stakeflow/pkg/clock"
	"github.com/screwyprof/stakeflow/pkg/starknet"
)

// Option configures the Service
// ------------------------------------------------
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithPollInterval sets the polling interval
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithBlockRange sets how many blocks one batch covers
func WithBlockRange(n uint64) Option {
	return func(s *Service) { s.blockRange = max(n, 1) }
}

// WithPageSize sets the starknet_getEvents chunk size
func WithPageSize(n int) Option {
	return func(s *Service) { s.pageSize = max(n, 1) }
}

// WithConcurrency bounds how many pools are scanned at once
func WithConcurrency(n int) Option {
	return func(s *Service) { s.concurrency = max(n, 1) }
}

// Service implements two-phase indexing: backfill then live polling
// -----------------------------------------------------------------
type Service struct {
	api          Client
	store        Store
	clock        Clock
	pollInterval time.Duration
	blockRange   uint64
	pageSize     int
	concurrency  int
	events       chan Event
}

// NewService constructs a Service with required dependencies and options.
// By default, it uses a real clock, 10s poll interval and 1000-block batches.
func NewService(api Client, store Store, opts ...Option) *Service {
	s := &Service{
		api:          api,
		store:        store,
		clock:        clock.System{},
		pollInterval: DefaultPollInterval,
		blockRange:   DefaultBlockRange,
		pageSize:     DefaultPageSize,
		concurrency:  DefaultConcurrency,
		events:       make(chan Event, 10),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the indexer and returns the events channel and done channel.
//
// Shutdown pattern:
//  1. Cancel context to request shutdown: cancel()
//  2. Service stops producing events and closes events channel
//  3. Wait for complete shutdown: <-done
//
// The context signals when to stop, the done channel confirms when stopped.
func (s *Service) Start(ctx context.Context) (<-chan Event, <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		defer close(s.events)
		defer close(done)
		s.run(ctx)
	}()
	return s.events, done
}

// run orchestrates the backfill and polling, respecting context cancellation
func (s *Service) run(ctx context.Context) {
	start := s.clock.Now()

	checkpoint, err := s.store.LastProcessedBlock(ctx)
	if err != nil {
		s.events <- BackfillError{Err: fmt.Errorf("%w: %w", ErrCheckpointRetrieval, err)}
		return
	}

	s.events <- BackfillStarted{StartedAt: start, Checkpoint: checkpoint}

	var total int64
	for {
		result, err := s.syncBatch(ctx)
		if err != nil {
			s.events <- BackfillError{Err: err}
			return
		}
		if result.Checkpoint > checkpoint {
			total += int64(result.Count)
			checkpoint = result.Checkpoint

			s.events <- BackfillSyncCompleted{
				Fetched:    result.Count,
				Checkpoint: result.Checkpoint,
				Head:       result.Head,
				BlockRange: s.blockRange,
			}
		}
		if result.CaughtUp {
			break
		}
	}

	s.events <- BackfillDone{
		TotalProcessed: total,
		Duration:       s.clock.Now().Sub(start),
		Checkpoint:     checkpoint,
	}

	s.events <- PollingStarted{Interval: s.pollInterval}
	for {
		select {
		case <-ctx.Done():
			s.events <- PollingShutdown{Reason: ctx.Err()}
			return
		case <-s.clock.After(s.pollInterval):
			result, err := s.syncBatch(ctx)
			if err != nil {
				s.events <- PollingError{Err: err}
				continue
			}

			s.events <- PollingSyncCompleted{
				Fetched:    result.Count,
				Checkpoint: result.Checkpoint,
				Head:       result.Head,
				BlockRange: s.blockRange,
			}
		}
	}
}

// syncBatch indexes the next block range after the checkpoint and stores it
// atomically with the new checkpoint.
func (s *Service) syncBatch(ctx context.Context) (SyncResult, error) {
	select {
	case <-ctx.Done():
		return SyncResult{}, ctx.Err()
	default:
	}

	began := time.Now()
	defer func() { promSyncDuration.Observe(time.Since(began).Seconds()) }()

	result, err := s.sync(ctx)
	if err != nil {
		promSyncErrors.Inc()
	}
	return result, err
}

func (s *Service) sync(ctx context.Context) (SyncResult, error) {
	checkpoint, err := s.store.LastProcessedBlock(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("%w: %w", ErrCheckpointRetrieval, err)
	}

	head, err := s.api.BlockNumber(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("%w: block number: %w", ErrRPCFailed, err)
	}

	if checkpoint >= head {
		return SyncResult{Checkpoint: checkpoint, Head: head, CaughtUp: true}, nil
	}

	from := checkpoint + 1
	to := min(checkpoint+s.blockRange, head)

	pools, err := s.store.PoolAddresses(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("%w: %w", ErrPoolsRetrieval, err)
	}

	raw, err := s.scanPools(ctx, pools, from, to)
	if err != nil {
		return SyncResult{}, err
	}

	events, err := s.decode(ctx, raw)
	if err != nil {
		return SyncResult{}, err
	}

	batch := Batch{FromBlock: from, ToBlock: to, Events: events}
	if err := s.store.SaveBatch(ctx, batch); err != nil {
		return SyncResult{}, fmt.Errorf("%w: %w", ErrSaveBatchFailed, err)
	}

	result := SyncResult{
		Count:      len(events),
		Checkpoint: to,
		Head:       head,
		CaughtUp:   to >= head,
	}
	observeBatch(result, events)

	return result, nil
}

// poolEvents is the ordered event list of one pool.
type poolEvents struct {
	pool   string
	events []starknet.EmittedEvent
}

// scanPools fetches every page of events for each pool, a few pools at a time.
func (s *Service) scanPools(ctx context.Context, pools []string, from, to uint64) ([]poolEvents, error) {
	var (
		mu      sync.Mutex
		results = make([]poolEvents, 0, len(pools))
		fanOut  = syncutil.NewFanOut(s.concurrency)
	)

	for _, pool := range pools {
		fanOut.Run(func(val any) error {
			pool := val.(string)
			events, err := s.scanPool(ctx, pool, from, to)
			if err != nil {
				return err
			}

			mu.Lock()
			results = append(results, poolEvents{pool: pool, events: events})
			mu.Unlock()
			return nil
		}, pool)
	}

	if errs := fanOut.Wait(); len(errs) > 0 {
		return nil, errs[0]
	}

	// Fan-out completion order is arbitrary.
	slices.SortFunc(results, func(a, b poolEvents) int {
		return cmp.Compare(a.pool, b.pool)
	})

	return results, nil
}

func (s *Service) scanPool(ctx context.Context, pool string, from, to uint64) ([]starknet.EmittedEvent, error) {
	filter := starknet.EventFilter{
		FromBlock: starknet.AtBlock(from),
		ToBlock:   starknet.AtBlock(to),
		Address:   pool,
		Keys:      EventKeys(),
		ChunkSize: s.pageSize,
	}

	var events []starknet.EmittedEvent
	for {
		chunk, err := s.api.GetEvents(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("%w: events of %s in [%d, %d]: %w", ErrRPCFailed, pool, from, to, err)
		}
		events = append(events, chunk.Events...)

		if chunk.ContinuationToken == "" {
			return events, nil
		}
		filter.ContinuationToken = chunk.ContinuationToken
	}
}

// decode turns raw events into ordered delegation events stamped with their
// block time.
func (s *Service) decode(ctx context.Context, raw []poolEvents) ([]DelegationEvent, error) {
	var out []DelegationEvent
	for _, pe := range raw {
		indexes := make(map[string]int)
		for _, ev := range pe.events {
			tx := starknet.NormalizeAddress(ev.TransactionHash)
			decoded, err := decodeEvent(ev, indexes[tx])
			if err != nil {
				return nil, err
			}
			indexes[tx]++
			out = append(out, decoded)
		}
	}

	// Block order across pools; pool order breaks ties within a block.
	slices.SortStableFunc(out, func(a, b DelegationEvent) int {
		return cmp.Compare(a.BlockNumber, b.BlockNumber)
	})

	timestamps := make(map[uint64]time.Time)
	for i := range out {
		block := out[i].BlockNumber
		ts, ok := timestamps[block]
		if !ok {
			var err error
			ts, err = s.api.BlockTimestamp(ctx, block)
			if err != nil {
				return nil, fmt.Errorf("%w: timestamp of block %d: %w", ErrRPCFailed, block, err)
			}
			timestamps[block] = ts
		}
		out[i].Timestamp = ts
	}

	return out, nil
}

package migrator

import (
	"cmp"
	"context"
	"math/big"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/screwyprof/stakeflow/indexer"
	"github.com/screwyprof/stakeflow/pkg/starknet"
)

// Demo chain shape
var (
	DemoGenesis       = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	DemoBlockInterval = 6 * time.Hour
)

// DemoConfig sizes the generated demo chain. The same config always yields
// the same chain.
type DemoConfig struct {
	Delegators int
	Seed       uint64
}

// DemoValidators is the fixed validator set the demo chain delegates to.
func DemoValidators() []ValidatorSeed {
	return []ValidatorSeed{
		{Address: "0x1a01", Name: "Karnot", PoolAddress: "0xa01", Commission: 500},
		{Address: "0x1a02", Name: "Nethermind", PoolAddress: "0xa02", Commission: 1000},
		{Address: "0x1a03", Name: "Braavos", PoolAddress: "0xa03", Commission: 800},
		{Address: "0x1a04", Name: "Argent", PoolAddress: "0xa04", Commission: 700},
		{Address: "0x1a05", Name: "Twinstake", PoolAddress: "0xa05", Commission: 1200},
		{Address: "0x1a06", Name: "Chorus One", PoolAddress: "0xa06", Commission: 900},
		{Address: "0x1a07", Name: "Luganodes", PoolAddress: "0xa07", Commission: 300},
		{Address: "0x1a08", Name: "Voyager", PoolAddress: "0xa08", Commission: 0},
	}
}

// DemoChain serves a generated history of pool events. It implements
// indexer.Client and is read-only after construction.
type DemoChain struct {
	head   uint64
	events []starknet.EmittedEvent
}

// NewDemoChain generates one delegation per delegator across validators,
// with some members topping up and some exiting.
func NewDemoChain(validators []ValidatorSeed, cfg DemoConfig) *DemoChain {
	r := rand.New(rand.NewPCG(cfg.Seed, uint64(len(validators))))
	c := &DemoChain{}

	var txSeq int64
	emit := func(selector, pool, member string, block uint64, keys []string, data ...string) {
		txSeq++
		c.events = append(c.events, starknet.EmittedEvent{
			FromAddress:     pool,
			Keys:            append([]string{starknet.Selector(selector), member}, keys...),
			Data:            data,
			BlockNumber:     block,
			TransactionHash: starknet.FeltHex(big.NewInt(0xd0000000 + txSeq)),
		})
	}

	block := uint64(1)
	for i := range cfg.Delegators {
		if len(validators) == 0 {
			break
		}
		v := validators[r.IntN(len(validators))]
		member := starknet.FeltHex(big.NewInt(0x100000 + int64(i)))
		stake := demoStake(r)

		emit(indexer.NewPoolMemberEvent, v.PoolAddress, member, block,
			[]string{v.Address}, member, starknet.FeltHex(stake))

		switch {
		case i%7 == 3:
			topped := new(big.Int).Lsh(stake, 1)
			emit(indexer.PoolMemberBalanceChangedEvent, v.PoolAddress, member, block+2,
				nil, starknet.FeltHex(stake), starknet.FeltHex(topped))
		case i%11 == 5:
			exitAt := demoBlockTime(block + 3).Add(7 * 24 * time.Hour)
			emit(indexer.PoolMemberExitIntentEvent, v.PoolAddress, member, block+3,
				nil, starknet.FeltHex(big.NewInt(exitAt.Unix())), starknet.FeltHex(stake))
			emit(indexer.PoolMemberBalanceChangedEvent, v.PoolAddress, member, block+30,
				nil, starknet.FeltHex(stake), "0x0")
		}

		block += 1 + uint64(r.IntN(3))
	}
	c.head = block + 40

	slices.SortStableFunc(c.events, func(a, b starknet.EmittedEvent) int {
		return cmp.Compare(a.BlockNumber, b.BlockNumber)
	})

	return c
}

// demoStake draws a fixed-point amount so that every flow bucket is populated.
func demoStake(r *rand.Rand) *big.Int {
	var whole int64
	switch p := r.IntN(100); {
	case p < 40:
		whole = 10 + r.Int64N(90)
	case p < 70:
		whole = 100 + r.Int64N(900)
	case p < 88:
		whole = 1_000 + r.Int64N(9_000)
	case p < 98:
		whole = 10_000 + r.Int64N(990_000)
	default:
		whole = 1_000_000 + r.Int64N(4_000_000)
	}

	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	stake := new(big.Int).Mul(big.NewInt(whole), unit)
	return stake.Add(stake, big.NewInt(r.Int64N(1_000_000_000_000_000_000)))
}

func demoBlockTime(block uint64) time.Time {
	return DemoGenesis.Add(time.Duration(block) * DemoBlockInterval)
}

// Head is the latest block of the demo chain.
func (c *DemoChain) Head() uint64 {
	return c.head
}

// EventCount is the number of generated events.
func (c *DemoChain) EventCount() int {
	return len(c.events)
}

func (c *DemoChain) BlockNumber(ctx context.Context) (uint64, error) {
	return c.head, ctx.Err()
}

func (c *DemoChain) BlockTimestamp(ctx context.Context, block uint64) (time.Time, error) {
	return demoBlockTime(block), ctx.Err()
}

// GetEvents pages through matching events, using the offset as continuation token.
func (c *DemoChain) GetEvents(ctx context.Context, filter starknet.EventFilter) (starknet.EventsChunk, error) {
	if err := ctx.Err(); err != nil {
		return starknet.EventsChunk{}, err
	}

	from, to := uint64(0), c.head
	if filter.FromBlock.Number != nil {
		from = *filter.FromBlock.Number
	}
	if filter.ToBlock.Number != nil {
		to = *filter.ToBlock.Number
	}

	var matched []starknet.EmittedEvent
	for _, ev := range c.events {
		if ev.BlockNumber < from || ev.BlockNumber > to {
			continue
		}
		if filter.Address != "" && !starknet.SameAddress(ev.FromAddress, filter.Address) {
			continue
		}
		matched = append(matched, ev)
	}

	offset, _ := strconv.Atoi(filter.ContinuationToken)
	offset = min(max(offset, 0), len(matched))
	size := filter.ChunkSize
	if size <= 0 {
		size = len(matched)
	}
	end := min(offset+size, len(matched))

	chunk := starknet.EventsChunk{Events: matched[offset:end]}
	if end < len(matched) {
		chunk.ContinuationToken = strconv.Itoa(end)
	}
	return chunk, nil
}

package analytics

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Option configures an Aggregator
type Option func(*Aggregator)

// WithComputeHook registers fn to be called every time the aggregation is actually recomputed.
func WithComputeHook(fn func()) Option {
	return func(a *Aggregator) { a.onCompute = fn }
}

// Aggregator memoises Aggregate against its (records, topValidatorCount) inputs.
// Only the most recent input pair is remembered. Returned results are shared
// between callers and must be treated as read-only.
type Aggregator struct {
	mu        sync.Mutex
	cached    bool
	key       uint64
	result    Result
	onCompute func()
}

// NewAggregator creates a memoising aggregator
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{onCompute: func() {}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate returns the memoised result when the inputs are unchanged and
// recomputes otherwise.
func (a *Aggregator) Aggregate(records []Record, topValidatorCount int) Result {
	key := fingerprint(records, topValidatorCount)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached && a.key == key {
		return a.result
	}

	a.onCompute()
	a.result = Aggregate(records, topValidatorCount)
	a.key = key
	a.cached = true

	return a.result
}

func fingerprint(records []Record, topValidatorCount int) uint64 {
	d := xxhash.New()
	buf := make([]byte, 0, 8)

	writeInt := func(v uint64) {
		buf = binary.LittleEndian.AppendUint64(buf[:0], v)
		_, _ = d.Write(buf)
	}
	writeString := func(s string) {
		writeInt(uint64(len(s)))
		_, _ = d.WriteString(s)
	}

	writeInt(uint64(int64(topValidatorCount)))
	writeInt(uint64(len(records)))
	for _, r := range records {
		writeString(r.Delegator)
		writeString(r.Validator)
		writeString(r.ValidatorAddress)
		writeInt(math.Float64bits(r.StakeAmount))
		writeInt(uint64(r.StartTime))
		writeInt(uint64(r.EndTime))
	}

	return d.Sum64()
}

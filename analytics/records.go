package analytics

import (
	"github.com/screwyprof/stakeflow/pkg/amount"
)

// StakeFromFixedPoint converts an 18-decimal fixed-point integer string, as
// stored by the indexer, into token units for aggregation.
func StakeFromFixedPoint(raw string) (float64, error) {
	d, err := amount.FromFixedPointString(raw)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

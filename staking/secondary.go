package staking

import (
	"math/rand/v2"

	"github.com/screwyprof/stakeflow/pkg/starknet"
)

// Picker chooses one validator from a non-empty candidate list.
type Picker func(candidates []Validator) Validator

// RandomPicker picks uniformly at random.
func RandomPicker() Picker {
	return func(candidates []Validator) Validator {
		return candidates[rand.IntN(len(candidates))]
	}
}

// SelectSecondary picks the split-mode secondary among the lowest-stake
// validators, excluding the primary. A nil pick falls back to RandomPicker.
func SelectSecondary(candidates []Validator, primaryPool string, pick Picker) (Validator, error) {
	eligible := make([]Validator, 0, len(candidates))
	for _, v := range candidates {
		if v.PoolAddress == "" || starknet.SameAddress(v.PoolAddress, primaryPool) {
			continue
		}
		eligible = append(eligible, v)
	}

	if len(eligible) == 0 {
		return Validator{}, ErrSecondaryUnavailable
	}

	if pick == nil {
		pick = RandomPicker()
	}

	return pick(eligible), nil
}

package staking

import (
	"context"
	"slices"
	"time"

	"github.com/screwyprof/stakeflow/pkg/starknet"
)

// DefaultUnstakingPeriod is the exit window used until the chain reports an unpool time.
const DefaultUnstakingPeriod = 7 * 24 * time.Hour

// Intent sources
const (
	SourceLocal = "local"
	SourceChain = "chain"
)

// UnstakeIntent is a locally remembered exit request.
type UnstakeIntent struct {
	Amount          string    `json:"amount"`
	PoolAddress     string    `json:"poolAddress"`
	ValidatorName   string    `json:"validatorName"`
	IntentTimestamp time.Time `json:"intentTimestamp"`
	CanClaimAt      time.Time `json:"canClaimAt"`
}

// NewUnstakeIntent stamps an intent with its estimated claim time.
// A non-positive period falls back to DefaultUnstakingPeriod.
func NewUnstakeIntent(amount, pool, name string, at time.Time, period time.Duration) UnstakeIntent {
	if period <= 0 {
		period = DefaultUnstakingPeriod
	}
	at = at.UTC()
	return UnstakeIntent{
		Amount:          amount,
		PoolAddress:     pool,
		ValidatorName:   name,
		IntentTimestamp: at,
		CanClaimAt:      at.Add(period),
	}
}

// IntentStore keeps unstake intents per account.
type IntentStore interface {
	List(ctx context.Context, account string) ([]UnstakeIntent, error)
	Add(ctx context.Context, account string, intent UnstakeIntent) error
	Remove(ctx context.Context, account, pool string) error
}

// IntentView is an intent with its effective claim time.
type IntentView struct {
	UnstakeIntent
	ClaimableAt time.Time `json:"claimableAt"`
	Source      string    `json:"source"`
	Claimable   bool      `json:"claimable"`
}

// ReconcileIntents resolves each intent's claim time. An on-chain unpool time,
// keyed by pool address, supersedes the local estimate. Views are ordered by
// claim time.
func ReconcileIntents(intents []UnstakeIntent, unpoolTimes map[string]time.Time, now time.Time) []IntentView {
	onChain := make(map[string]time.Time, len(unpoolTimes))
	for pool, t := range unpoolTimes {
		onChain[starknet.NormalizeAddress(pool)] = t
	}

	views := make([]IntentView, 0, len(intents))
	for _, intent := range intents {
		view := IntentView{
			UnstakeIntent: intent,
			ClaimableAt:   intent.CanClaimAt,
			Source:        SourceLocal,
		}
		if t, ok := onChain[starknet.NormalizeAddress(intent.PoolAddress)]; ok && !t.IsZero() {
			view.ClaimableAt = t.UTC()
			view.Source = SourceChain
		}
		view.Claimable = !now.Before(view.ClaimableAt)
		views = append(views, view)
	}

	slices.SortStableFunc(views, func(a, b IntentView) int {
		return a.ClaimableAt.Compare(b.ClaimableAt)
	})

	return views
}

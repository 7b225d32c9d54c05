// Package staking composes the on-chain calls for a (possibly split)
// delegation, records confirmed stakes and tracks unstake intents.
package staking

import (
	"context"
	"fmt"
	"math/big"
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/screwyprof/stakeflow/pkg/amount"
	"github.com/screwyprof/stakeflow/pkg/starknet"
)

// Pool and token entry points
const (
	EntrypointApprove     = "approve"
	EntrypointEnterPool   = "enter_delegation_pool"
	EntrypointAddToPool   = "add_to_delegation_pool"
	SplitPrecision        = 6
	RolePrimary           = "primary"
	RoleSecondary         = "secondary"
	secondaryShareLiteral = "0.10"
)

var secondaryShare = decimal.RequireFromString(secondaryShareLiteral)

// TokenReader exposes the ERC-20 reads the planner depends on.
type TokenReader interface {
	Address() string
	BalanceOf(ctx context.Context, owner string) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender string) (*big.Int, error)
}

// Validator identifies a validator by its delegation pool contract.
type Validator struct {
	PoolAddress string `json:"poolAddress"`
	Name        string `json:"name"`
}

// Intent is what the user asked for.
type Intent struct {
	Amount       string
	Primary      Validator
	SplitEnabled bool
	Secondary    *Validator
}

// PlanContext carries the connected wallet state explicitly.
type PlanContext struct {
	Account        string
	DelegatedPools []string // pools the account already holds a non-zero delegation in
}

// Call is a single contract invocation of the multicall.
type Call struct {
	ContractAddress string   `json:"contractAddress"`
	Entrypoint      string   `json:"entrypoint"`
	Calldata        []string `json:"calldata"`
}

// Leg is one (pool, amount) pair of the plan.
type Leg struct {
	Role          string
	PoolAddress   string
	ValidatorName string
	Amount        decimal.Decimal
	Raw           *big.Int
}

// CallPlan is the ordered call list for one atomic transaction.
type CallPlan struct {
	Calls []Call
	Legs  []Leg
}

// Planner builds call plans against live token state.
type Planner struct {
	token TokenReader
}

// NewPlanner creates a planner reading balances and allowances from token.
func NewPlanner(token TokenReader) *Planner {
	return &Planner{token: token}
}

// Plan validates the intent, checks the fresh balance and the allowances and
// returns the calls to submit. Primary calls always precede secondary ones.
func (p *Planner) Plan(ctx context.Context, intent Intent, pc PlanContext) (CallPlan, error) {
	legs, err := resolveLegs(intent, pc)
	if err != nil {
		return CallPlan{}, err
	}

	total := new(big.Int)
	for _, leg := range legs {
		total.Add(total, leg.Raw)
	}

	balance, err := p.token.BalanceOf(ctx, pc.Account)
	if err != nil {
		return CallPlan{}, fmt.Errorf("%w: balance: %w", ErrChainRPC, err)
	}
	if total.Cmp(balance) > 0 {
		return CallPlan{}, fmt.Errorf("%w: requested %s, available %s",
			ErrInsufficientBalance,
			amount.FromFixedPoint(total).String(),
			amount.FromFixedPoint(balance).String(),
		)
	}

	covered, err := p.allowances(ctx, pc.Account, legs)
	if err != nil {
		return CallPlan{}, err
	}

	// The caller may have moved on while lookups were in flight.
	if err := ctx.Err(); err != nil {
		return CallPlan{}, err
	}

	plan := CallPlan{Legs: legs}
	for i, leg := range legs {
		if !covered[i] {
			plan.Calls = append(plan.Calls, p.approveCall(leg))
		}
		plan.Calls = append(plan.Calls, delegateCall(leg, pc))
	}

	return plan, nil
}

func (p *Planner) allowances(ctx context.Context, owner string, legs []Leg) ([]bool, error) {
	covered := make([]bool, len(legs))

	g, gctx := errgroup.WithContext(ctx)
	for i, leg := range legs {
		g.Go(func() error {
			allowance, err := p.token.Allowance(gctx, owner, leg.PoolAddress)
			if err != nil {
				return fmt.Errorf("%w: allowance for %s: %w", ErrChainRPC, leg.PoolAddress, err)
			}
			covered[i] = allowance.Cmp(leg.Raw) >= 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return covered, nil
}

func (p *Planner) approveCall(leg Leg) Call {
	low, high := starknet.SplitU256(leg.Raw)
	return Call{
		ContractAddress: p.token.Address(),
		Entrypoint:      EntrypointApprove,
		Calldata:        []string{leg.PoolAddress, low, high},
	}
}

func delegateCall(leg Leg, pc PlanContext) Call {
	entrypoint := EntrypointEnterPool
	if hasDelegation(pc.DelegatedPools, leg.PoolAddress) {
		entrypoint = EntrypointAddToPool
	}
	return Call{
		ContractAddress: leg.PoolAddress,
		Entrypoint:      entrypoint,
		Calldata:        []string{pc.Account, starknet.FeltHex(leg.Raw)},
	}
}

func hasDelegation(pools []string, pool string) bool {
	return slices.ContainsFunc(pools, func(p string) bool {
		return starknet.SameAddress(p, pool)
	})
}

// resolveLegs performs every check that needs no I/O and splits the amount.
func resolveLegs(intent Intent, pc PlanContext) ([]Leg, error) {
	if pc.Account == "" {
		return nil, fmt.Errorf("%w: %w", ErrInputValidation, ErrMissingAccount)
	}

	total, err := amount.ParsePositive(intent.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputValidation, err)
	}

	if intent.Primary.PoolAddress == "" {
		return nil, fmt.Errorf("%w: %w", ErrInputValidation, ErrMissingValidator)
	}

	if !intent.SplitEnabled {
		return checkedLegs(newLeg(RolePrimary, intent.Primary, total))
	}

	if intent.Secondary == nil || intent.Secondary.PoolAddress == "" {
		return nil, ErrSecondaryUnavailable
	}
	if starknet.SameAddress(intent.Secondary.PoolAddress, intent.Primary.PoolAddress) {
		return nil, fmt.Errorf("%w: %w", ErrInputValidation, ErrSameValidator)
	}

	secondary, primary := SplitAmount(total)
	if !primary.IsPositive() || !secondary.IsPositive() {
		return nil, fmt.Errorf("%w: %w: %s is too small to split", ErrInputValidation, amount.ErrNotPositive, total)
	}

	return checkedLegs(
		newLeg(RolePrimary, intent.Primary, primary),
		newLeg(RoleSecondary, *intent.Secondary, secondary),
	)
}

// checkedLegs rejects legs whose amount truncates to zero in fixed point.
func checkedLegs(legs ...Leg) ([]Leg, error) {
	for _, leg := range legs {
		if leg.Raw.Sign() <= 0 {
			return nil, fmt.Errorf("%w: %w: %w: %s is below the token precision",
				ErrInputValidation, amount.ErrInvalidAmount, amount.ErrNotPositive, leg.Amount)
		}
	}
	return legs, nil
}

// SplitAmount returns the secondary share rounded to SplitPrecision places and
// the primary remainder, which together always equal total.
func SplitAmount(total decimal.Decimal) (secondary, primary decimal.Decimal) {
	secondary = total.Mul(secondaryShare).Round(SplitPrecision)
	primary = total.Sub(secondary)
	return secondary, primary
}

func newLeg(role string, v Validator, d decimal.Decimal) Leg {
	return Leg{
		Role:          role,
		PoolAddress:   v.PoolAddress,
		ValidatorName: v.Name,
		Amount:        d,
		Raw:           amount.ToFixedPoint(d),
	}
}

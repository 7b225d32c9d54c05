// Package strk is the read side of the dashboard: validator listings, flow
// records and unpool state, with the finder interfaces the stores implement.
package strk

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
)

// Sentinel errors for validator criteria construction
var (
	ErrInvalidSort    = errors.New("invalid sort")
	ErrInvalidOrder   = errors.New("invalid order")
	ErrInvalidPerPage = errors.New("invalid per_page")
)

// SortField is a whitelisted validator listing column.
type SortField string

const (
	SortName           SortField = "name"
	SortTotalStake     SortField = "total_stake"
	SortDelegatorCount SortField = "delegator_count"
	SortCommission     SortField = "commission"
)

// SortFields lists the accepted sort columns.
var SortFields = []SortField{SortName, SortTotalStake, SortDelegatorCount, SortCommission}

// SortOrder is the listing direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Validator is a validator with its aggregated delegation state.
type Validator struct {
	Address        string
	Name           string
	PoolAddress    string
	Commission     int      // basis points
	TotalStake     *big.Int // 18-decimal fixed point
	DelegatorCount int64
}

// ValidatorsCriteria specifies criteria for listing validators using domain Value Objects
type ValidatorsCriteria struct {
	Sort  SortField
	Order SortOrder
	Page  Page
	Size  PerPage
}

// ItemsPerPage returns the number of items requested per page
func (c ValidatorsCriteria) ItemsPerPage() uint64 {
	return c.Size.Uint64()
}

// ItemsToSkip returns the number of items to skip for pagination
func (c ValidatorsCriteria) ItemsToSkip() uint64 {
	return (c.Page.Uint64() - 1) * c.Size.Uint64()
}

// NewValidatorsCriteria creates ValidatorsCriteria with validation. Empty sort
// and order default to the largest validators first.
func NewValidatorsCriteria(sort, order string, page, perPage uint64) (ValidatorsCriteria, error) {
	s := SortField(sort)
	if s == "" {
		s = SortTotalStake
	}
	if !slices.Contains(SortFields, s) {
		return ValidatorsCriteria{}, fmt.Errorf("%w: %q, expected one of %v", ErrInvalidSort, sort, SortFields)
	}

	o := SortOrder(order)
	switch o {
	case "":
		o = OrderDesc
	case OrderAsc, OrderDesc:
	default:
		return ValidatorsCriteria{}, fmt.Errorf("%w: %q, expected asc or desc", ErrInvalidOrder, order)
	}

	pp, err := ParsePerPageFromUint64(perPage)
	if err != nil {
		return ValidatorsCriteria{}, fmt.Errorf("%w: %w", ErrInvalidPerPage, err)
	}

	return ValidatorsCriteria{
		Sort:  s,
		Order: o,
		Page:  ParsePageFromUint64(page),
		Size:  pp,
	}, nil
}

// ValidatorsPage represents a page of validators with navigation metadata
type ValidatorsPage struct {
	Validators []Validator
	HasMore    bool    // True if there are more pages after this one
	Number     Page    // Current page number
	Size       PerPage // Page size
}

// Helper methods for pagination state
func (p *ValidatorsPage) HasNext() bool     { return p.HasMore }
func (p *ValidatorsPage) HasPrevious() bool { return p.Number > 1 }

// ValidatorsFinder defines the interface for querying validators
type ValidatorsFinder interface {
	FindValidators(ctx context.Context, criteria ValidatorsCriteria) (*ValidatorsPage, error)
	// FindBottomValidators returns the n validators with the least stake.
	FindBottomValidators(ctx context.Context, n int) ([]Validator, error)
}

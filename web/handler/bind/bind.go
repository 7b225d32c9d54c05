package bind

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakeflow/pkg/amount"
	"github.com/screwyprof/stakeflow/pkg/starknet"
	"github.com/screwyprof/stakeflow/staking"
	"github.com/screwyprof/stakeflow/web/api"
	"github.com/screwyprof/stakeflow/web/strk"
)

// Query parameter defaults and bounds
const (
	DefaultBottom = 10
	MaxBottom     = 50
	DefaultTop    = 10
	MaxTop        = 100

	// Amounts are shown with at most this many fractional digits.
	displayPlaces = 6
)

// Sentinel errors for request binding
var (
	ErrInvalidPage    = errors.New("invalid page parameter")
	ErrInvalidPerPage = errors.New("invalid per_page parameter")
	ErrInvalidBottom  = errors.New("invalid bottom parameter")
	ErrInvalidTop     = errors.New("invalid top parameter")
	ErrInvalidExclude = errors.New("invalid exclude parameter")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidLeg     = errors.New("invalid leg")
	ErrInvalidRoles   = errors.New("legs must be one primary and at most one secondary")

	// Specific page validation errors
	ErrPageNotNumeric  = errors.New("page must be numeric")
	ErrPageNotPositive = errors.New("page must be positive")

	// Specific per_page validation errors
	ErrPerPageNotNumeric  = errors.New("per_page must be numeric")
	ErrPerPageNotPositive = errors.New("per_page must be positive")
	ErrPerPageTooLarge    = errors.New("per_page must be between 1 and 100")

	ErrNotNumeric   = errors.New("must be numeric")
	ErrOutOfRange   = errors.New("out of range")
	ErrNotAnAddress = errors.New("must be a 0x-prefixed hex address")
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

// GetValidatorsRequest binds HTTP request to ValidatorsRequest with defaults
func GetValidatorsRequest(r *http.Request) (api.ValidatorsRequest, error) {
	query := r.URL.Query()

	req := api.ValidatorsRequest{
		Sort:    query.Get("sort"),
		Order:   query.Get("order"),
		Page:    1,  // Default to first page
		PerPage: 50, // Default pagination size
	}

	if pageParam := query.Get("page"); pageParam != "" {
		page, err := parsePageNumber(pageParam)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidPage, err)
		}
		req.Page = page
	}

	if perPageParam := query.Get("per_page"); perPageParam != "" {
		perPage, err := parsePerPageLimit(perPageParam)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidPerPage, err)
		}
		req.PerPage = perPage
	}

	return req, nil
}

// GetSecondaryRequest binds the secondary validator lookup parameters.
func GetSecondaryRequest(r *http.Request) (api.SecondaryRequest, error) {
	query := r.URL.Query()
	req := api.SecondaryRequest{Bottom: DefaultBottom}

	if exclude := query.Get("exclude"); exclude != "" {
		if !addressPattern.MatchString(exclude) {
			return req, fmt.Errorf("%w: %w", ErrInvalidExclude, ErrNotAnAddress)
		}
		req.Exclude = exclude
	}

	if bottomParam := query.Get("bottom"); bottomParam != "" {
		bottom, err := parseBoundedInt(bottomParam, 1, MaxBottom)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidBottom, err)
		}
		req.Bottom = bottom
	}

	return req, nil
}

// GetFlowRequest binds the flow graph parameters. Dates are validated by the domain.
func GetFlowRequest(r *http.Request) (api.FlowRequest, error) {
	query := r.URL.Query()
	req := api.FlowRequest{
		From: query.Get("from"),
		To:   query.Get("to"),
		Top:  DefaultTop,
	}

	if topParam := query.Get("top"); topParam != "" {
		top, err := parseBoundedInt(topParam, 0, MaxTop)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidTop, err)
		}
		req.Top = top
	}

	return req, nil
}

// GetDelegatorAddress reads the {address} path value.
func GetDelegatorAddress(r *http.Request) (string, error) {
	addr := r.PathValue("address")
	if !addressPattern.MatchString(addr) {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, ErrNotAnAddress)
	}
	return starknet.NormalizeAddress(addr), nil
}

// parsePageNumber validates that the page parameter is a positive integer
func parsePageNumber(pageParam string) (uint64, error) {
	page, err := strconv.ParseUint(pageParam, 10, 64)
	if err != nil {
		return 0, ErrPageNotNumeric
	}

	if page == 0 {
		return 0, ErrPageNotPositive
	}

	return page, nil
}

// parsePerPageLimit validates that the per_page parameter is within acceptable limits
func parsePerPageLimit(perPageParam string) (uint64, error) {
	perPage, err := strconv.ParseUint(perPageParam, 10, 64)
	if err != nil {
		return 0, ErrPerPageNotNumeric
	}

	if perPage == 0 {
		return 0, ErrPerPageNotPositive
	}

	if perPage > strk.MaxPerPage {
		return 0, ErrPerPageTooLarge
	}

	return perPage, nil
}

func parseBoundedInt(param string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(param)
	if err != nil {
		return 0, ErrNotNumeric
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: must be between %d and %d", ErrOutOfRange, lo, hi)
	}
	return n, nil
}

// GetValidatorsResponse binds domain validators to API response format
func GetValidatorsResponse(validators []strk.Validator) api.ValidatorsResponse {
	data := make([]api.Validator, len(validators))
	for i, v := range validators {
		data[i] = api.Validator{
			Address:        v.Address,
			Name:           v.Name,
			PoolAddress:    v.PoolAddress,
			Commission:     decimal.New(int64(v.Commission), -2).StringFixed(2),
			TotalStake:     amount.Format(amount.FromFixedPoint(v.TotalStake), displayPlaces),
			DelegatorCount: v.DelegatorCount,
		}
	}
	return api.ValidatorsResponse{Data: data}
}

// SecondaryCandidates maps the bottom validators to planner validators.
func SecondaryCandidates(validators []strk.Validator) []staking.Validator {
	out := make([]staking.Validator, len(validators))
	for i, v := range validators {
		out[i] = staking.Validator{PoolAddress: v.PoolAddress, Name: v.Name}
	}
	return out
}

// GetSecondaryResponse wraps the picked validator.
func GetSecondaryResponse(v staking.Validator) api.SecondaryResponse {
	return api.SecondaryResponse{Data: api.ValidatorRef{PoolAddress: v.PoolAddress, Name: v.Name}}
}

// PlanIntent splits a plan request into the planner intent and wallet context.
func PlanIntent(req api.PlanRequest) (staking.Intent, staking.PlanContext) {
	intent := staking.Intent{
		Amount:       req.Amount,
		Primary:      staking.Validator{PoolAddress: req.Primary.PoolAddress, Name: req.Primary.Name},
		SplitEnabled: req.Split,
	}
	if req.Secondary != nil {
		intent.Secondary = &staking.Validator{PoolAddress: req.Secondary.PoolAddress, Name: req.Secondary.Name}
	}

	return intent, staking.PlanContext{
		Account:        req.Account,
		DelegatedPools: req.DelegatedPools,
	}
}

// GetPlanResponse binds a call plan to the API response format.
func GetPlanResponse(plan staking.CallPlan) api.PlanResponse {
	legs := make([]api.Leg, len(plan.Legs))
	for i, leg := range plan.Legs {
		legs[i] = api.Leg{
			Role:          leg.Role,
			PoolAddress:   leg.PoolAddress,
			ValidatorName: leg.ValidatorName,
			Amount:        leg.Amount.String(),
		}
	}
	return api.PlanResponse{Calls: plan.Calls, Legs: legs}
}

// RecordPlan rebuilds the legs of a confirmed plan from a record request.
func RecordPlan(req api.RecordRequest) (staking.CallPlan, error) {
	if !validRoles(req.Legs) {
		return staking.CallPlan{}, ErrInvalidRoles
	}

	legs := make([]staking.Leg, len(req.Legs))
	for i, l := range req.Legs {
		d, err := amount.ParsePositive(l.Amount)
		if err != nil {
			return staking.CallPlan{}, fmt.Errorf("%w %d: %w", ErrInvalidLeg, i, err)
		}
		legs[i] = staking.Leg{
			Role:          l.Role,
			PoolAddress:   starknet.NormalizeAddress(l.PoolAddress),
			ValidatorName: l.ValidatorName,
			Amount:        d,
			Raw:           amount.ToFixedPoint(d),
		}
	}
	return staking.CallPlan{Legs: legs}, nil
}

// validRoles accepts a lone primary leg or one primary plus one secondary,
// so every leg maps to a distinct record hash.
func validRoles(legs []api.Leg) bool {
	switch len(legs) {
	case 1:
		return legs[0].Role == staking.RolePrimary
	case 2:
		roles := []string{legs[0].Role, legs[1].Role}
		return slices.Contains(roles, staking.RolePrimary) && slices.Contains(roles, staking.RoleSecondary)
	default:
		return false
	}
}

// GetUnpoolResponse binds pending exits to the API response format.
func GetUnpoolResponse(unpools []strk.Unpool) (api.UnpoolResponse, error) {
	data := make([]api.Unpool, len(unpools))
	for i, u := range unpools {
		d, err := amount.FromFixedPointString(u.Amount)
		if err != nil {
			return api.UnpoolResponse{}, err
		}
		data[i] = api.Unpool{
			PoolAddress:   u.PoolAddress,
			ValidatorName: u.ValidatorName,
			Amount:        d.String(),
			UnpoolTime:    u.UnpoolTime.UTC(),
		}
	}
	return api.UnpoolResponse{Data: data}, nil
}

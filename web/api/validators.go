package api

// ValidatorsRequest represents the query parameters for GET /strk/validators
type ValidatorsRequest struct {
	Sort    string `query:"sort"`     // name, total_stake, delegator_count or commission
	Order   string `query:"order"`    // asc or desc
	Page    uint64 `query:"page"`     // Page number for pagination (default: 1)
	PerPage uint64 `query:"per_page"` // Number of items per page (default: 50, max: 100)
}

// Validator represents a single validator in the API response
type Validator struct {
	Address        string `json:"address"`
	Name           string `json:"name"`
	PoolAddress    string `json:"poolAddress"`
	Commission     string `json:"commission"` // percent, two decimals
	TotalStake     string `json:"totalStake"` // STRK
	DelegatorCount int64  `json:"delegatorCount"`
}

// ValidatorsResponse represents the API response format for GET /strk/validators
type ValidatorsResponse struct {
	Data []Validator `json:"data"`
}

// SecondaryRequest represents the query parameters for GET /strk/validators/secondary
type SecondaryRequest struct {
	Exclude string `query:"exclude"` // primary pool address
	Bottom  int    `query:"bottom"`  // size of the low-stake candidate list
}

// ValidatorRef identifies a validator by pool.
type ValidatorRef struct {
	PoolAddress string `json:"poolAddress" validate:"omitempty,felt"`
	Name        string `json:"name" validate:"max=128"`
}

// SecondaryResponse represents the API response format for GET /strk/validators/secondary
type SecondaryResponse struct {
	Data ValidatorRef `json:"data"`
}

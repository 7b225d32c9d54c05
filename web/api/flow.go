package api

import "github.com/screwyprof/stakeflow/analytics"

// FlowRequest represents the query parameters for GET /strk/flow
type FlowRequest struct {
	From string `query:"from"` // YYYY-MM-DD, inclusive
	To   string `query:"to"`   // YYYY-MM-DD, inclusive
	Top  int    `query:"top"`  // validators shown before collapsing into Other
}

// FlowResponse represents the API response format for GET /strk/flow
type FlowResponse struct {
	Data analytics.Result `json:"data"`
}

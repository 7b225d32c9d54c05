package api

import (
	"time"

	"github.com/screwyprof/stakeflow/staking"
)

// PlanRequest is the body of POST /strk/stake/plan
type PlanRequest struct {
	Account        string        `json:"account" validate:"omitempty,felt"`
	Amount         string        `json:"amount" validate:"max=80"`
	Primary        ValidatorRef  `json:"primary"`
	Split          bool          `json:"split"`
	Secondary      *ValidatorRef `json:"secondary,omitempty"`
	DelegatedPools []string      `json:"delegatedPools" validate:"max=256,dive,felt"`
}

// Leg is one delegation of a plan, amounts in STRK.
type Leg struct {
	Role          string `json:"role" validate:"oneof=primary secondary"`
	PoolAddress   string `json:"poolAddress" validate:"required,felt"`
	ValidatorName string `json:"validatorName" validate:"max=128"`
	Amount        string `json:"amount" validate:"required,max=80"`
}

// PlanResponse is the multicall to submit.
type PlanResponse struct {
	Calls []staking.Call `json:"calls"`
	Legs  []Leg          `json:"legs"`
}

// RecordRequest is the body of POST /strk/stake/records, sent after the
// transaction is confirmed.
type RecordRequest struct {
	TransactionHash string `json:"transactionHash" validate:"required,felt"`
	SenderAddress   string `json:"senderAddress" validate:"required,felt"`
	Legs            []Leg  `json:"legs" validate:"required,min=1,max=2,dive"`
}

// RecordResponse reports whether the mirror write succeeded.
type RecordResponse struct {
	Data staking.RecordOutcome `json:"data"`
}

// Unpool is a pending on-chain exit.
type Unpool struct {
	PoolAddress   string    `json:"poolAddress"`
	ValidatorName string    `json:"validatorName"`
	Amount        string    `json:"amount"` // STRK
	UnpoolTime    time.Time `json:"unpoolTime"`
}

// UnpoolResponse represents the API response format for GET /strk/delegations/{address}/unpool
type UnpoolResponse struct {
	Data []Unpool `json:"data"`
}

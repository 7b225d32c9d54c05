package staking

import "errors"

// Planning errors. Every failure aborts planning; no partial plan is returned.
var (
	// ErrInputValidation covers malformed amounts and missing selections; no I/O is attempted.
	ErrInputValidation  = errors.New("invalid stake request")
	ErrMissingAccount   = errors.New("no account connected")
	ErrMissingValidator = errors.New("no validator selected")
	ErrSameValidator    = errors.New("secondary validator must differ from primary")

	// ErrInsufficientBalance means the fresh balance does not cover the amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrSecondaryUnavailable means split mode has no candidate; pick one and retry.
	ErrSecondaryUnavailable = errors.New("no secondary validator available")

	// ErrChainRPC means a balance or allowance could not be verified.
	ErrChainRPC = errors.New("chain rpc failed")
)

package staking

import (
	"context"
	"errors"
	"strings"

	"github.com/screwyprof/stakeflow/pkg/starknet"
)

// FailureCategory groups transaction errors into user-facing buckets.
type FailureCategory string

const (
	FailureUserRejected        FailureCategory = "user_rejected"
	FailureInsufficientBalance FailureCategory = "insufficient_balance"
	FailureNonce               FailureCategory = "nonce"
	FailureTimeout             FailureCategory = "timeout"
	FailureAborted             FailureCategory = "aborted"
	FailureReverted            FailureCategory = "reverted"
	FailureUnknown             FailureCategory = "unknown"
)

// Starknet JSON-RPC error codes worth distinguishing.
const (
	rpcCodeExecutionError      = 41
	rpcCodeInvalidNonce        = 52
	rpcCodeInsufficientBalance = 54
)

const maxReasonLength = 200

// TxFailure is a classified transaction error.
type TxFailure struct {
	Category FailureCategory `json:"category"`
	Message  string          `json:"message"`
}

var failureMessages = map[FailureCategory]string{
	FailureUserRejected:        "Transaction was rejected in the wallet.",
	FailureInsufficientBalance: "Insufficient STRK balance to cover the stake and fees.",
	FailureNonce:               "Account nonce is out of date. Please retry.",
	FailureTimeout:             "Transaction timed out. Check the explorer before retrying.",
	FailureAborted:             "Transaction was aborted.",
	FailureReverted:            "Transaction reverted",
	FailureUnknown:             "Transaction failed",
}

type failurePattern struct {
	category FailureCategory
	needles  []string
}

// Order matters: the first matching pattern wins.
var failurePatterns = []failurePattern{
	{FailureUserRejected, []string{"user rejected", "rejected by user", "user denied", "user abort", "request rejected"}},
	{FailureInsufficientBalance, []string{"insufficient balance", "exceeds balance", "insufficient funds", "u256_sub overflow"}},
	{FailureNonce, []string{"invalid transaction nonce", "nonce"}},
	{FailureTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{FailureAborted, []string{"abort", "cancel"}},
	{FailureReverted, []string{"revert", "execution error", "failure reason"}},
}

// ClassifyTxError maps a wallet or node error to a category and message.
// Structured RPC codes win over message matching.
func ClassifyTxError(err error) TxFailure {
	if err == nil {
		return TxFailure{}
	}

	var rpcErr *starknet.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case rpcCodeExecutionError:
			return revertFailure(rpcErr.Message + " " + string(rpcErr.Data))
		case rpcCodeInvalidNonce:
			return newFailure(FailureNonce)
		case rpcCodeInsufficientBalance:
			return newFailure(FailureInsufficientBalance)
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newFailure(FailureTimeout)
	case errors.Is(err, context.Canceled):
		return newFailure(FailureAborted)
	}

	return ClassifyTxMessage(err.Error())
}

// ClassifyTxMessage classifies a raw error string, e.g. one reported by a wallet.
func ClassifyTxMessage(msg string) TxFailure {
	lower := strings.ToLower(msg)
	for _, p := range failurePatterns {
		for _, needle := range p.needles {
			if !strings.Contains(lower, needle) {
				continue
			}
			if p.category == FailureReverted {
				return revertFailure(msg)
			}
			return newFailure(p.category)
		}
	}

	failure := newFailure(FailureUnknown)
	if detail := strings.TrimSpace(msg); detail != "" {
		failure.Message += ": " + truncate(detail)
	}
	return failure
}

func newFailure(c FailureCategory) TxFailure {
	return TxFailure{Category: c, Message: failureMessages[c]}
}

func revertFailure(msg string) TxFailure {
	failure := newFailure(FailureReverted)
	if reason := revertReason(msg); reason != "" {
		failure.Message += ": " + reason
	} else {
		failure.Message += "."
	}
	return failure
}

// revertReason extracts the text following a "reason:" marker.
func revertReason(msg string) string {
	lower := strings.ToLower(msg)
	idx := strings.LastIndex(lower, "reason:")
	if idx < 0 {
		return ""
	}
	reason := strings.TrimSpace(msg[idx+len("reason:"):])
	reason = strings.Trim(reason, "'\"`")
	return truncate(strings.TrimSpace(reason))
}

func truncate(s string) string {
	if len(s) <= maxReasonLength {
		return s
	}
	return s[:maxReasonLength] + "..."
}

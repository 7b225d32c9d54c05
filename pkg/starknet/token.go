package starknet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// ErrShortResult is returned when a view function returns fewer felts than expected.
var ErrShortResult = errors.New("unexpected call result length")

// Caller performs read-only contract calls.
type Caller interface {
	Call(ctx context.Context, fc FunctionCall) ([]string, error)
}

// Token reads ERC-20 state of a single token contract.
type Token struct {
	caller  Caller
	address string
}

// NewToken binds a token contract address to a caller.
func NewToken(caller Caller, address string) *Token {
	return &Token{caller: caller, address: address}
}

// Address returns the token contract address.
func (t *Token) Address() string {
	return t.address
}

// BalanceOf returns owner's balance in fixed point.
func (t *Token) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	return t.readU256(ctx, "balance_of", owner)
}

// Allowance returns how much spender may transfer on behalf of owner.
func (t *Token) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	return t.readU256(ctx, "allowance", owner, spender)
}

func (t *Token) readU256(ctx context.Context, entrypoint string, calldata ...string) (*big.Int, error) {
	result, err := t.caller.Call(ctx, FunctionCall{
		ContractAddress:    t.address,
		EntryPointSelector: Selector(entrypoint),
		Calldata:           calldata,
	})
	if err != nil {
		return nil, err
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("%w: %s returned %d felts", ErrShortResult, entrypoint, len(result))
	}
	return JoinU256(result[0], result[1])
}

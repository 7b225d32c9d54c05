// Package amount converts between user-facing decimal token amounts and the
// 18-decimal fixed-point integers used on chain and in the database.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of the staking token.
const Decimals = 18

// Sentinel errors for amount parsing
var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNotPositive   = errors.New("amount must be positive")
	ErrEmptyAmount   = errors.New("amount is empty")
	ErrNotDecimal    = errors.New("amount must be a plain decimal number")
)

// Parse parses a plain decimal string such as "100.5".
// Exponent notation, signs other than a leading minus and empty input are rejected.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrInvalidAmount, ErrEmptyAmount)
	}
	if strings.ContainsAny(s, "eE+") {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrInvalidAmount, ErrNotDecimal)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrInvalidAmount, ErrNotDecimal)
	}
	return d, nil
}

// ParsePositive parses s and requires the result to be greater than zero.
func ParsePositive(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrInvalidAmount, ErrNotPositive)
	}
	return d, nil
}

// ToFixedPoint converts d to its fixed-point integer, truncating digits
// beyond Decimals.
func ToFixedPoint(d decimal.Decimal) *big.Int {
	return d.Shift(Decimals).BigInt()
}

// ParseFixedPoint parses a decimal string straight into fixed point.
// Malformed input is an error, never zero.
func ParseFixedPoint(s string) (*big.Int, error) {
	d, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return ToFixedPoint(d), nil
}

// FromFixedPoint converts a fixed-point integer to a decimal amount.
func FromFixedPoint(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -Decimals)
}

// FromFixedPointString parses a base-10 fixed-point integer as stored in the database.
func FromFixedPointString(raw string) (decimal.Decimal, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q is not an integer", ErrInvalidAmount, raw)
	}
	return FromFixedPoint(n), nil
}

// Format renders d with at most places fractional digits and no trailing zeros.
func Format(d decimal.Decimal, places int32) string {
	return d.Truncate(places).String()
}

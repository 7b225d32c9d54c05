// Package starknet is a small Starknet JSON-RPC client: contract reads,
// block queries, event scans and the felt encodings they need.
package starknet

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Sentinel errors for felt encoding
var (
	ErrInvalidFelt = errors.New("invalid felt")
	ErrInvalidU256 = errors.New("invalid u256")
)

var (
	mask250 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))
	mask128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// Selector returns the entry point or event selector for name
// (starknet_keccak: keccak256 truncated to 250 bits).
func Selector(name string) string {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(name))
	n := new(big.Int).SetBytes(h.Sum(nil))
	return FeltHex(n.And(n, mask250))
}

// FeltHex encodes n as a 0x-prefixed lower-case hex felt.
func FeltHex(n *big.Int) string {
	return "0x" + n.Text(16)
}

// ParseFelt decodes a 0x-prefixed hex felt.
func ParseFelt(s string) (*big.Int, error) {
	hex, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if !ok || hex == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFelt, s)
	}
	n, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFelt, s)
	}
	return n, nil
}

// SplitU256 encodes v as the (low, high) felt pair of a Cairo u256.
func SplitU256(v *big.Int) (low, high string) {
	lo := new(big.Int).And(v, mask128)
	hi := new(big.Int).Rsh(v, 128)
	return FeltHex(lo), FeltHex(hi)
}

// JoinU256 decodes a (low, high) felt pair into a single integer.
func JoinU256(low, high string) (*big.Int, error) {
	lo, err := ParseFelt(low)
	if err != nil {
		return nil, fmt.Errorf("%w: low: %w", ErrInvalidU256, err)
	}
	hi, err := ParseFelt(high)
	if err != nil {
		return nil, fmt.Errorf("%w: high: %w", ErrInvalidU256, err)
	}
	if lo.Cmp(mask128) > 0 || hi.Cmp(mask128) > 0 {
		return nil, fmt.Errorf("%w: limb exceeds 128 bits", ErrInvalidU256)
	}
	return hi.Lsh(hi, 128).Or(hi, lo), nil
}

// NormalizeAddress lower-cases an address and strips leading zeros so that
// padded and unpadded spellings compare equal. Non-hex input is only lower-cased.
func NormalizeAddress(addr string) string {
	a := strings.ToLower(strings.TrimSpace(addr))
	hex, ok := strings.CutPrefix(a, "0x")
	if !ok {
		return a
	}
	hex = strings.TrimLeft(hex, "0")
	if hex == "" {
		hex = "0"
	}
	return "0x" + hex
}

// SameAddress reports whether two addresses refer to the same account.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}

// Package units converts between wei and decimal ether without going through floating point.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/airchains-network/txpipe/types"
)

// Decimals is the fixed scale between wei and ether
const Decimals = 18

const maxDigits = 78

var (
	ErrInvalidAmountFormat = fmt.Errorf("%w: invalid amount format", types.ErrValidation)
	ErrAmountOutOfRange    = fmt.Errorf("%w: amount out of range", types.ErrValidation)
)

// ToDecimal renders wei as an exact ether amount with trailing zeros trimmed
func ToDecimal(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -Decimals).String()
}

// ToFloat is a lossy ether value for display only
func ToFloat(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(wei, -Decimals).Float64()
	return f
}

// FromDecimal parses an ether amount into wei
func FromDecimal(value string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmountFormat, value)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmountFormat, value)
	}
	coef, exp := d.Coefficient(), int64(d.Exponent())
	if coef.Sign() == 0 {
		return new(big.Int), nil
	}
	ten, rem := big.NewInt(10), new(big.Int)
	for {
		q, r := new(big.Int).QuoRem(coef, ten, rem)
		if r.Sign() != 0 {
			break
		}
		coef, exp = q, exp+1
	}
	if exp < -Decimals {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmountFormat, value, Decimals)
	}
	// 2^256-1 has 78 decimal digits
	if int64(len(coef.String()))+exp+Decimals > maxDigits {
		return nil, fmt.Errorf("%w: %q", ErrAmountOutOfRange, value)
	}
	wei := new(big.Int).Mul(coef, new(big.Int).Exp(ten, big.NewInt(exp+Decimals), nil))
	if err := CheckRange(wei); err != nil {
		return nil, fmt.Errorf("%w: %q", err, value)
	}
	return wei, nil
}

// CheckRange fails unless 0 <= wei < 2^256
func CheckRange(wei *big.Int) error {
	if wei == nil || wei.Sign() < 0 {
		return ErrAmountOutOfRange
	}
	if _, overflow := uint256.FromBig(wei); overflow {
		return ErrAmountOutOfRange
	}
	return nil
}

// ParseAmount accepts "<n>wei", "<d>ether" or a bare ether value
func ParseAmount(value string) (*big.Int, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.HasSuffix(v, "wei"):
		wei, ok := new(big.Int).SetString(strings.TrimSpace(strings.TrimSuffix(v, "wei")), 10)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmountFormat, value)
		}
		if err := CheckRange(wei); err != nil {
			return nil, fmt.Errorf("%w: %q", err, value)
		}
		return wei, nil
	case strings.HasSuffix(v, "ether"):
		return FromDecimal(strings.TrimSuffix(v, "ether"))
	default:
		return FromDecimal(v)
	}
}

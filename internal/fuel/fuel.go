// Package fuel provides overflow-checked uint64 arithmetic for FUEL token
// amounts, plus conversion between indivisible units ("drops") and whole
// FUEL for display.
//
// The ledger is kept entirely in uint64 drops. Any overflow or division by
// zero aborts the calling operation — amounts are never silently wrapped or
// clamped. shopspring/decimal appears only at the display boundary.
package fuel

import (
	"errors"
	"math/bits"

	"github.com/shopspring/decimal"
)

// ErrOverflow is returned when a checked arithmetic step overflows or
// divides by zero.
var ErrOverflow = errors.New("fuel: arithmetic overflow")

// TokenDecimals is the decimal precision of the FUEL token. There are
// 100 billion indivisible drops per FUEL.
const TokenDecimals = 11

// OneFuel is one FUEL token, denominated in drops.
const OneFuel uint64 = 100_000_000_000

// DenominatorBps is the denominator for basis-point fee calculations.
const DenominatorBps uint64 = 10_000

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrOverflow if b > a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Div returns a/b (truncating) or ErrOverflow if b is zero.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrOverflow
	}
	return a / b, nil
}

// MulDiv returns a*b/den computed over a 128-bit intermediate, so the
// product may exceed 64 bits as long as the quotient does not.
// ErrOverflow only when the quotient itself cannot fit, or den is zero.
func MulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, den)
	return quo, nil
}

// MulBps returns amount * bps / 10000. This is the canonical fee
// computation: truncating integer division, no rounding up. The 128-bit
// intermediate means it never fails for bps <= 10000.
func MulBps(amount, bps uint64) (uint64, error) {
	return MulDiv(amount, bps, DenominatorBps)
}

// UIAmount converts drops to a whole-FUEL decimal for logs and JSON views.
func UIAmount(drops uint64) decimal.Decimal {
	return decimal.NewFromUint64(drops).Shift(-TokenDecimals)
}

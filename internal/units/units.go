// Package units converts between human decimal strings and the fixed-point
// integers the on-chain programs operate on. All quantities handled by the
// gateway are non-negative; precision is always explicit because the same
// logical value can be expressed at 18dp (prices, instrument amounts) and
// re-expressed at 6dp (base collateral).
package units

import (
	"math/big"

	"github.com/shopspring/decimal"

	"insuranceGateway/internal/fault"
)

// ToFixedPoint parses a non-negative decimal string into an integer scaled
// by 10^decimals. Inputs with more fractional digits than the precision
// admits are rejected rather than silently rounded.
func ToFixedPoint(s string, decimals uint8) (*big.Int, error) {
	if s == "" {
		return nil, fault.New(fault.Validation, "empty decimal value")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fault.Wrap(fault.Validation, err, "invalid decimal %q", s)
	}
	if d.Sign() < 0 {
		return nil, fault.New(fault.Validation, "negative value %q not allowed", s)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fault.New(fault.Validation, "value %q exceeds %d decimal places", s, decimals)
	}
	return shifted.BigInt(), nil
}

// FromFixedPoint renders a fixed-point integer as its canonical decimal
// string. FromFixedPoint(ToFixedPoint(s, p), p) preserves the value of s
// exactly.
func FromFixedPoint(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// MulScaleCeil multiplies two fixed-point values and re-expresses the
// product at outDec decimals, rounding up. This is the rounding direction
// for every obligation a user is asked to approve or pay: the result is
// never below the exact rational product, so an escrow is never
// under-funded.
func MulScaleCeil(a, b *big.Int, aDec, bDec, outDec uint8) *big.Int {
	return mulScale(a, b, aDec, bDec, outDec, true)
}

// MulScaleFloor is the floor-rounded variant, used only for values flowing
// back to a user (refund previews and the like), where rounding down is the
// conservative direction.
func MulScaleFloor(a, b *big.Int, aDec, bDec, outDec uint8) *big.Int {
	return mulScale(a, b, aDec, bDec, outDec, false)
}

func mulScale(a, b *big.Int, aDec, bDec, outDec uint8, ceil bool) *big.Int {
	if a == nil || b == nil {
		return new(big.Int)
	}
	num := new(big.Int).Mul(a, b)
	shift := int(aDec) + int(bDec) - int(outDec)
	if shift <= 0 {
		return num.Mul(num, pow10(-shift))
	}
	den := pow10(shift)
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if ceil && rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

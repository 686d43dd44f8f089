package model

import (
	"fmt"
	"math/big"
	"strings"
)

// BigInt is a big.Int that serializes to a decimal string in JSON. Prices,
// amounts, and balances can exceed float64's safe-integer range, so bare
// JSON numbers are never emitted for them.
type BigInt big.Int

// NewBigInt copies v into a JSON-safe wrapper. Returns nil for nil input.
func NewBigInt(v *big.Int) *BigInt {
	if v == nil {
		return nil
	}
	return (*BigInt)(new(big.Int).Set(v))
}

// Int returns the wrapped value.
func (b *BigInt) Int() *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return (*big.Int)(b)
}

func (b *BigInt) String() string {
	if b == nil {
		return "0"
	}
	return (*big.Int)(b).String()
}

func (b *BigInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		(*big.Int)(b).SetInt64(0)
		return nil
	}
	if _, ok := (*big.Int)(b).SetString(s, 10); !ok {
		return fmt.Errorf("invalid big integer %q", s)
	}
	return nil
}

// Package fixed implements a fixed-point decimal value: an arbitrary-precision
// signed integer paired with an explicit power-of-ten scale. Two values may be
// added, subtracted or compared only when their scales match; cross-scale
// arithmetic must go through MulTo/DivTo/Rescale so the caller states the
// resulting scale explicitly.
package fixed

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Value is an immutable fixed-point number. The zero Value is zero at scale 0.
type Value struct {
	i     *big.Int
	scale int32
}

// New wraps an integer at the given scale. The integer is copied.
func New(i *big.Int, scale int32) Value {
	if i == nil {
		i = new(big.Int)
	}
	return Value{i: new(big.Int).Set(i), scale: scale}
}

// FromString parses an integer string (base 10, optional leading sign) as a
// value at the given scale.
func FromString(s string, scale int32) (Value, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Value{}, errors.Errorf("invalid integer string %q", s)
	}
	return Value{i: i, scale: scale}, nil
}

// FromInt64 wraps an int64 at the given scale.
func FromInt64(v int64, scale int32) Value {
	return Value{i: big.NewInt(v), scale: scale}
}

// Zero returns zero at the given scale.
func Zero(scale int32) Value {
	return Value{i: new(big.Int), scale: scale}
}

func (v Value) int() *big.Int {
	if v.i == nil {
		return new(big.Int)
	}
	return v.i
}

// Int returns a copy of the underlying integer.
func (v Value) Int() *big.Int { return new(big.Int).Set(v.int()) }

// Scale returns the power-of-ten scale.
func (v Value) Scale() int32 { return v.scale }

func (v Value) mustMatch(o Value, op string) {
	if v.scale != o.scale {
		panic(fmt.Sprintf("fixed: %s of mismatched scales %d and %d", op, v.scale, o.scale))
	}
}

// Add returns v + o. Panics when scales differ: silent implicit rescaling is a
// programming error in monetary code.
func (v Value) Add(o Value) Value {
	v.mustMatch(o, "add")
	return Value{i: new(big.Int).Add(v.int(), o.int()), scale: v.scale}
}

// Sub returns v - o. Panics when scales differ.
func (v Value) Sub(o Value) Value {
	v.mustMatch(o, "sub")
	return Value{i: new(big.Int).Sub(v.int(), o.int()), scale: v.scale}
}

// MulTo returns v * o expressed at resultScale. The intermediate product is
// exact at scale v.Scale()+o.Scale(); rescaling to resultScale truncates
// toward zero.
func (v Value) MulTo(o Value, resultScale int32) Value {
	p := Value{i: new(big.Int).Mul(v.int(), o.int()), scale: v.scale + o.scale}
	return p.Rescale(resultScale)
}

// DivTo returns v / o expressed at resultScale, truncated toward zero.
// Division by zero panics: it is a programming error, not a data condition.
func (v Value) DivTo(o Value, resultScale int32) Value {
	if o.IsZero() {
		panic("fixed: division by zero")
	}
	// v/o at resultScale: v.i * 10^(resultScale + o.scale - v.scale) / o.i
	shift := int64(resultScale) + int64(o.scale) - int64(v.scale)
	num := v.int()
	den := o.int()
	if shift >= 0 {
		num = new(big.Int).Mul(num, pow10(shift))
	} else {
		den = new(big.Int).Mul(den, pow10(-shift))
	}
	return Value{i: new(big.Int).Quo(num, den), scale: resultScale}
}

// Rescale returns the value re-expressed at the given scale. Scaling down
// truncates toward zero.
func (v Value) Rescale(scale int32) Value {
	diff := int64(scale) - int64(v.scale)
	switch {
	case diff == 0:
		return Value{i: v.Int(), scale: scale}
	case diff > 0:
		return Value{i: new(big.Int).Mul(v.int(), pow10(diff)), scale: scale}
	default:
		return Value{i: new(big.Int).Quo(v.int(), pow10(-diff)), scale: scale}
	}
}

// Cmp compares v and o. Panics when scales differ.
func (v Value) Cmp(o Value) int {
	v.mustMatch(o, "cmp")
	return v.int().Cmp(o.int())
}

// Equal reports whether v and o have the same scale and the same integer.
func (v Value) Equal(o Value) bool {
	return v.scale == o.scale && v.int().Cmp(o.int()) == 0
}

// Sign returns -1, 0 or 1.
func (v Value) Sign() int { return v.int().Sign() }

// IsZero reports whether the value is zero.
func (v Value) IsZero() bool { return v.int().Sign() == 0 }

// Neg returns -v.
func (v Value) Neg() Value { return Value{i: new(big.Int).Neg(v.int()), scale: v.scale} }

// Abs returns |v|.
func (v Value) Abs() Value { return Value{i: new(big.Int).Abs(v.int()), scale: v.scale} }

// Max returns the larger of v and o. Panics when scales differ.
func (v Value) Max(o Value) Value {
	if v.Cmp(o) >= 0 {
		return v
	}
	return o
}

// Decimal returns the value as a shopspring decimal for display and
// ratio-style consumers.
func (v Value) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(v.Int(), -v.scale)
}

func (v Value) String() string { return v.Decimal().String() }

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

package math

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// ErrNumericalOverflow covers overflow, underflow and out-of-range narrowing.
	ErrNumericalOverflow = errors.New("numerical overflow")
	// ErrDifferentScale is returned by Add and Sub on operands of unequal scale.
	ErrDifferentScale = errors.New("different scale")
	// ErrDivisionByZero is a numerical overflow with a zero divisor.
	ErrDivisionByZero = fmt.Errorf("%w: division by zero", ErrNumericalOverflow)
)

const (
	// EulerVal and EulerScale encode e truncated to 15 fractional digits.
	EulerVal   uint64 = 2718281828459045
	EulerScale uint8  = 15
)

// Decimal is an unsigned fixed-point number equal to val / 10^scale.
//
// Multiplication and division keep the scale of the left operand; the
// right operand's scale only sets the implied denominator. Rescaling is
// explicit. No operation wraps around: every failure is returned as an
// error.
type Decimal struct {
	val   Uint128
	scale uint8
}

// NewDecimal builds a Decimal from its raw magnitude and scale.
func NewDecimal(val Uint128, scale uint8) Decimal {
	return Decimal{val: val, scale: scale}
}

// FromUint64 builds a Decimal from a uint64 magnitude and scale.
func FromUint64(val uint64, scale uint8) Decimal {
	return Decimal{val: U128(val), scale: scale}
}

// FromInteger returns n at scale 0.
func FromInteger(n uint64) Decimal {
	return Decimal{val: U128(n), scale: 0}
}

// Euler returns e at scale 15.
func Euler() Decimal {
	return FromUint64(EulerVal, EulerScale)
}

func (d Decimal) Val() Uint128 { return d.val }
func (d Decimal) Scale() uint8 { return d.scale }
func (d Decimal) IsZero() bool { return d.val.IsZero() }

// Denominator returns 10^scale.
func (d Decimal) Denominator() (Uint128, error) {
	den := getInt()
	defer putInt(den)
	if err := setPow10(den, int(d.scale)); err != nil {
		return Uint128{}, err
	}
	return Uint128FromBig(den)
}

// Add returns d + o. Both operands must share a scale.
func (d Decimal) Add(o Decimal) (Decimal, error) {
	if d.scale != o.scale {
		return Decimal{}, ErrDifferentScale
	}
	x, y := getInt(), getInt()
	defer putInt(x, y)

	x.Add(d.val.setBig(x), o.val.setBig(y))
	return d.withVal(x)
}

// Sub returns d - o. Both operands must share a scale; a negative result
// is an underflow.
func (d Decimal) Sub(o Decimal) (Decimal, error) {
	if d.scale != o.scale {
		return Decimal{}, ErrDifferentScale
	}
	x, y := getInt(), getInt()
	defer putInt(x, y)

	x.Sub(d.val.setBig(x), o.val.setBig(y))
	return d.withVal(x)
}

// Mul returns floor(d.val * o.val / 10^o.scale) at d's scale.
func (d Decimal) Mul(o Decimal) (Decimal, error) {
	return d.mul(o, false)
}

// MulUp is Mul rounded toward positive infinity.
func (d Decimal) MulUp(o Decimal) (Decimal, error) {
	return d.mul(o, true)
}

func (d Decimal) mul(o Decimal, up bool) (Decimal, error) {
	x, y, den := getInt(), getInt(), getInt()
	defer putInt(x, y, den)

	x.Mul(d.val.setBig(x), o.val.setBig(y))
	if err := fits128(x); err != nil {
		return Decimal{}, err
	}
	if err := setPow10(den, int(o.scale)); err != nil {
		return Decimal{}, err
	}
	if up {
		x.Add(x, den)
		x.Sub(x, bigOne)
		if err := fits128(x); err != nil {
			return Decimal{}, err
		}
	}
	x.Quo(x, den)
	return d.withVal(x)
}

// Div returns floor(d.val * 10^o.scale / o.val) at d's scale.
func (d Decimal) Div(o Decimal) (Decimal, error) {
	return d.div(o, false)
}

// DivUp is Div rounded toward positive infinity.
func (d Decimal) DivUp(o Decimal) (Decimal, error) {
	return d.div(o, true)
}

func (d Decimal) div(o Decimal, up bool) (Decimal, error) {
	if o.val.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	x, y, den := getInt(), getInt(), getInt()
	defer putInt(x, y, den)

	if err := setPow10(den, int(o.scale)); err != nil {
		return Decimal{}, err
	}
	x.Mul(d.val.setBig(x), den)
	if err := fits128(x); err != nil {
		return Decimal{}, err
	}
	o.val.setBig(y)
	if up {
		x.Add(x, y)
		x.Sub(x, bigOne)
		if err := fits128(x); err != nil {
			return Decimal{}, err
		}
	}
	x.Quo(x, y)
	return d.withVal(x)
}

// DivToScale divides with a single floor rounding step and an explicit
// result scale.
func (d Decimal) DivToScale(o Decimal, target uint8) (Decimal, error) {
	if o.val.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	x, y, p := getInt(), getInt(), getInt()
	defer putInt(x, y, p)

	diff := int(d.scale) - int(target) - int(o.scale)
	d.val.setBig(x)
	o.val.setBig(y)
	if diff > 0 {
		if err := setPow10(p, diff); err != nil {
			return Decimal{}, err
		}
		x.Quo(x, y)
		x.Quo(x, p)
	} else {
		if err := setPow10(p, -diff); err != nil {
			return Decimal{}, err
		}
		x.Mul(x, p)
		if err := fits128(x); err != nil {
			return Decimal{}, err
		}
		x.Quo(x, y)
	}
	return Decimal{scale: target}.withVal(x)
}

// Rescale changes the scale, truncating toward zero when digits are dropped.
func (d Decimal) Rescale(target uint8) (Decimal, error) {
	x, p := getInt(), getInt()
	defer putInt(x, p)

	d.val.setBig(x)
	if d.scale > target {
		if err := setPow10(p, int(d.scale-target)); err != nil {
			return Decimal{}, err
		}
		x.Quo(x, p)
	} else {
		if err := setPow10(p, int(target-d.scale)); err != nil {
			return Decimal{}, err
		}
		x.Mul(x, p)
	}
	return Decimal{scale: target}.withVal(x)
}

// RescaleUp changes the scale, rounding up when digits are dropped.
func (d Decimal) RescaleUp(target uint8) (Decimal, error) {
	x, p := getInt(), getInt()
	defer putInt(x, p)

	d.val.setBig(x)
	if d.scale >= target {
		if err := setPow10(p, int(d.scale-target)); err != nil {
			return Decimal{}, err
		}
		x.Add(x, p)
		x.Sub(x, bigOne)
		if err := fits128(x); err != nil {
			return Decimal{}, err
		}
		x.Quo(x, p)
	} else {
		if err := setPow10(p, int(target-d.scale)); err != nil {
			return Decimal{}, err
		}
		x.Mul(x, p)
	}
	return Decimal{scale: target}.withVal(x)
}

// PowWithAccuracy raises d to an integer power by binary exponentiation,
// starting from one at d's scale. Each step truncates like Mul. The base
// is not squared once the last exponent bit is consumed, so a product that
// is never used cannot overflow.
func (d Decimal) PowWithAccuracy(exp uint64) (Decimal, error) {
	oneVal, err := d.Denominator()
	if err != nil {
		return Decimal{}, err
	}
	result := Decimal{val: oneVal, scale: d.scale}
	base := d

	for exp > 0 {
		if exp&1 == 1 {
			if result, err = result.Mul(base); err != nil {
				return Decimal{}, err
			}
		}
		exp >>= 1
		if exp > 0 {
			if base, err = base.Mul(base); err != nil {
				return Decimal{}, err
			}
		}
	}
	return result, nil
}

// Uint64 narrows the raw magnitude. The scale is ignored.
func (d Decimal) Uint64() (uint64, error) {
	if d.val.Hi != 0 {
		return 0, ErrNumericalOverflow
	}
	return d.val.Lo, nil
}

// Equal reports identical magnitude and scale.
func (d Decimal) Equal(o Decimal) bool {
	return d.scale == o.scale && d.val == o.val
}

// ToShopspring converts to an arbitrary-precision decimal for display.
func (d Decimal) ToShopspring() decimal.Decimal {
	return decimal.NewFromBigInt(d.val.Big(), -int32(d.scale))
}

// String renders the value with exactly scale fractional digits.
func (d Decimal) String() string {
	return d.ToShopspring().StringFixed(int32(d.scale))
}

func (d Decimal) withVal(v *big.Int) (Decimal, error) {
	u, err := Uint128FromBig(v)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{val: u, scale: d.scale}, nil
}

var bigOne = big.NewInt(1)

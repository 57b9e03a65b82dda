package math

import (
	"math/big"
	"sync"
)

// MaxScale is the largest decimal scale whose denominator fits in 128 bits.
const MaxScale = 38

// Uint128 is an unsigned 128-bit magnitude. Zero value is 0.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// U128 widens a uint64.
func U128(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// IsZero reports whether u == 0.
func (u Uint128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

// Cmp returns -1, 0 or +1.
func (u Uint128) Cmp(v Uint128) int {
	switch {
	case u.Hi < v.Hi:
		return -1
	case u.Hi > v.Hi:
		return 1
	case u.Lo < v.Lo:
		return -1
	case u.Lo > v.Lo:
		return 1
	}
	return 0
}

// Big returns u as a freshly allocated big.Int.
func (u Uint128) Big() *big.Int {
	return u.setBig(new(big.Int))
}

func (u Uint128) String() string {
	return u.Big().String()
}

func (u Uint128) setBig(dst *big.Int) *big.Int {
	dst.SetUint64(u.Hi)
	dst.Lsh(dst, 64)
	lo := getInt()
	lo.SetUint64(u.Lo)
	dst.Or(dst, lo)
	putInt(lo)
	return dst
}

// Uint128FromBig narrows a big.Int, failing with ErrNumericalOverflow when
// the value is negative or wider than 128 bits.
func Uint128FromBig(v *big.Int) (Uint128, error) {
	if v.Sign() < 0 || v.BitLen() > 128 {
		return Uint128{}, ErrNumericalOverflow
	}
	tmp := getInt()
	defer putInt(tmp)

	hi := tmp.Rsh(v, 64).Uint64()
	lo := tmp.And(v, mask64).Uint64()
	return Uint128{Hi: hi, Lo: lo}, nil
}

var mask64 = new(big.Int).SetUint64(^uint64(0))

// Pooled big.Int values for intermediate calculations. Every intermediate
// is range checked back into 128 bits, so results match a native u128
// with checked arithmetic.
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt(vs ...*big.Int) {
	for _, v := range vs {
		v.SetInt64(0) // Clear before returning to pool
		int128Pool.Put(v)
	}
}

// fits128 reports ErrNumericalOverflow for values outside [0, 2^128).
func fits128(v *big.Int) error {
	if v.Sign() < 0 || v.BitLen() > 128 {
		return ErrNumericalOverflow
	}
	return nil
}

var pow10Table = func() [MaxScale + 1]*big.Int {
	var t [MaxScale + 1]*big.Int
	ten := big.NewInt(10)
	t[0] = big.NewInt(1)
	for i := 1; i <= MaxScale; i++ {
		t[i] = new(big.Int).Mul(t[i-1], ten)
	}
	return t
}()

// setPow10 stores 10^exp in dst. Exponents above MaxScale do not fit in
// 128 bits.
func setPow10(dst *big.Int, exp int) error {
	if exp < 0 || exp > MaxScale {
		return ErrNumericalOverflow
	}
	dst.Set(pow10Table[exp])
	return nil
}

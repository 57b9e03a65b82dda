package math_test

import (
	fpmath "GDALedger/internal/math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(val uint64, scale uint8) fpmath.Decimal {
	return fpmath.FromUint64(val, scale)
}

// ============================================================================
// Test: construction
// ============================================================================

func TestEuler(t *testing.T) {
	e := fpmath.Euler()
	assert.Equal(t, uint8(15), e.Scale())
	assert.Equal(t, fpmath.U128(2718281828459045), e.Val())
	assert.Equal(t, "2.718281828459045", e.String())
}

func TestFromInteger(t *testing.T) {
	d := fpmath.FromInteger(42)
	assert.Equal(t, uint8(0), d.Scale())
	v, err := d.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)
}

func TestDenominator(t *testing.T) {
	den, err := dec(1, 6).Denominator()
	require.NoError(t, err)
	assert.Equal(t, fpmath.U128(1_000_000), den)

	_, err = dec(1, 39).Denominator()
	assert.ErrorIs(t, err, fpmath.ErrNumericalOverflow)
}

// ============================================================================
// Test: add / sub
// ============================================================================

func TestAddSub(t *testing.T) {
	sum, err := dec(150, 2).Add(dec(275, 2))
	require.NoError(t, err)
	assert.True(t, sum.Equal(dec(425, 2)))

	diff, err := dec(425, 2).Sub(dec(150, 2))
	require.NoError(t, err)
	assert.True(t, diff.Equal(dec(275, 2)))
}

func TestAddSub_DifferentScale(t *testing.T) {
	_, err := dec(1, 0).Add(dec(1, 1))
	assert.ErrorIs(t, err, fpmath.ErrDifferentScale)

	_, err = dec(1, 0).Sub(dec(1, 1))
	assert.ErrorIs(t, err, fpmath.ErrDifferentScale)
}

func TestSub_Underflow(t *testing.T) {
	_, err := dec(1, 0).Sub(dec(2, 0))
	assert.ErrorIs(t, err, fpmath.ErrNumericalOverflow)
}

func TestAdd_Overflow(t *testing.T) {
	maxVal := fpmath.NewDecimal(fpmath.Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}, 0)
	_, err := maxVal.Add(fpmath.FromInteger(1))
	assert.ErrorIs(t, err, fpmath.ErrNumericalOverflow)
}

// ============================================================================
// Test: mul / div
// ============================================================================

func TestMul_KeepsLeftScale(t *testing.T) {
	// 2.5 * 1.5 = 3.75, truncated at scale 1
	got, err := dec(25, 1).Mul(dec(15, 1))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(37, 1)), "got %s", got)

	up, err := dec(25, 1).MulUp(dec(15, 1))
	require.NoError(t, err)
	assert.True(t, up.Equal(dec(38, 1)), "got %s", up)
}

func TestMulUp_ExactProductNotBumped(t *testing.T) {
	got, err := dec(20, 1).MulUp(dec(15, 1))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(30, 1)))
}

func TestMul_IntermediateOverflow(t *testing.T) {
	big := fpmath.NewDecimal(fpmath.Uint128{Hi: 1 << 63}, 0)
	_, err := big.Mul(fpmath.FromInteger(2))
	assert.ErrorIs(t, err, fpmath.ErrNumericalOverflow)
}

func TestDiv(t *testing.T) {
	// 1.0 / 3 = 0.3 at scale 1
	got, err := dec(10, 1).Div(dec(3, 0))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(3, 1)))

	up, err := dec(10, 1).DivUp(dec(3, 0))
	require.NoError(t, err)
	assert.True(t, up.Equal(dec(4, 1)))
}

func TestDiv_ByDecimalDivisor(t *testing.T) {
	// 10 / 2.5 = 4: val*10^1/25
	got, err := dec(10, 0).Div(dec(25, 1))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(4, 0)))
}

func TestDiv_ZeroDivisor(t *testing.T) {
	_, err := dec(10, 0).Div(dec(0, 0))
	assert.ErrorIs(t, err, fpmath.ErrDivisionByZero)
	assert.ErrorIs(t, err, fpmath.ErrNumericalOverflow)

	_, err = dec(10, 0).DivUp(dec(0, 3))
	assert.ErrorIs(t, err, fpmath.ErrDivisionByZero)

	_, err = dec(10, 0).DivToScale(dec(0, 0), 2)
	assert.ErrorIs(t, err, fpmath.ErrDivisionByZero)
}

func TestDivToScale(t *testing.T) {
	one := dec(1_000_000, 6)

	got, err := one.DivToScale(dec(3, 0), 6)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(333_333, 6)), "got %s", got)

	got, err = one.DivToScale(dec(3, 0), 3)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(333, 3)), "got %s", got)

	got, err = dec(1, 0).DivToScale(dec(3, 0), 4)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(3333, 4)), "got %s", got)
}

// ============================================================================
// Test: rescale
// ============================================================================

func TestRescale(t *testing.T) {
	down, err := dec(12345, 3).Rescale(0)
	require.NoError(t, err)
	assert.True(t, down.Equal(dec(12, 0)))

	downUp, err := dec(12345, 3).RescaleUp(0)
	require.NoError(t, err)
	assert.True(t, downUp.Equal(dec(13, 0)))

	exact, err := dec(12000, 3).RescaleUp(0)
	require.NoError(t, err)
	assert.True(t, exact.Equal(dec(12, 0)))

	widened, err := dec(12, 0).Rescale(2)
	require.NoError(t, err)
	assert.True(t, widened.Equal(dec(1200, 2)))

	widenedUp, err := dec(12, 0).RescaleUp(2)
	require.NoError(t, err)
	assert.True(t, widenedUp.Equal(dec(1200, 2)))
}

func TestRescale_Overflow(t *testing.T) {
	_, err := fpmath.FromInteger(^uint64(0)).Rescale(30)
	assert.ErrorIs(t, err, fpmath.ErrNumericalOverflow)
}

// ============================================================================
// Test: pow
// ============================================================================

func TestPowWithAccuracy_ZeroExponentIsOne(t *testing.T) {
	got, err := fpmath.Euler().PowWithAccuracy(0)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(1_000_000_000_000_000, 15)))

	got, err = fpmath.FromInteger(7).PowWithAccuracy(0)
	require.NoError(t, err)
	assert.True(t, got.Equal(fpmath.FromInteger(1)))
}

func TestPowWithAccuracy_Integer(t *testing.T) {
	got, err := fpmath.FromInteger(2).PowWithAccuracy(10)
	require.NoError(t, err)
	assert.True(t, got.Equal(fpmath.FromInteger(1024)))

	got, err = fpmath.FromInteger(3).PowWithAccuracy(5)
	require.NoError(t, err)
	assert.True(t, got.Equal(fpmath.FromInteger(243)))
}

func TestPowWithAccuracy_EulerSquared(t *testing.T) {
	got, err := fpmath.Euler().PowWithAccuracy(2)
	require.NoError(t, err)

	e := new(big.Int).SetUint64(fpmath.EulerVal)
	want := new(big.Int).Mul(e, e)
	want.Quo(want, new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil))

	assert.Equal(t, 0, got.Val().Big().Cmp(want), "got %s want %s", got.Val(), want)
}

func TestPowWithAccuracy_EulerHorizon(t *testing.T) {
	_, err := fpmath.Euler().PowWithAccuracy(19)
	require.NoError(t, err, "e^19 fits at scale 15")

	_, err = fpmath.Euler().PowWithAccuracy(20)
	assert.ErrorIs(t, err, fpmath.ErrNumericalOverflow)
}

func TestPowWithAccuracy_NoSquareAfterLastBit(t *testing.T) {
	// e^16 is the last base needed; squaring it again would overflow.
	_, err := fpmath.Euler().PowWithAccuracy(16)
	require.NoError(t, err)
}

// ============================================================================
// Test: narrowing and rendering
// ============================================================================

func TestUint64_Overflow(t *testing.T) {
	d := fpmath.NewDecimal(fpmath.Uint128{Hi: 1}, 0)
	_, err := d.Uint64()
	assert.ErrorIs(t, err, fpmath.ErrNumericalOverflow)
}

func TestString(t *testing.T) {
	assert.Equal(t, "0.050", dec(50, 3).String())
	assert.Equal(t, "7", dec(7, 0).String())
}

func TestUint128FromBig(t *testing.T) {
	v := new(big.Int).Lsh(big.NewInt(1), 100)
	u, err := fpmath.Uint128FromBig(v)
	require.NoError(t, err)
	assert.Equal(t, fpmath.Uint128{Hi: 1 << 36}, u)
	assert.Equal(t, 0, u.Big().Cmp(v))

	_, err = fpmath.Uint128FromBig(new(big.Int).Lsh(big.NewInt(1), 128))
	assert.ErrorIs(t, err, fpmath.ErrNumericalOverflow)

	_, err = fpmath.Uint128FromBig(big.NewInt(-1))
	assert.ErrorIs(t, err, fpmath.ErrNumericalOverflow)
}

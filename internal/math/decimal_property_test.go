package math_test

import (
	fpmath "GDALedger/internal/math"
	"testing"

	"pgregory.net/rapid"
)

func TestRescaleRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Uint64().Draw(t, "v").(uint64)
		from := rapid.IntRange(0, 18).Draw(t, "from").(int)
		widen := rapid.IntRange(0, 18).Draw(t, "widen").(int)

		d := fpmath.FromUint64(v, uint8(from))
		wide, err := d.Rescale(uint8(from + widen))
		if err != nil {
			t.Fatalf("widening %d digits failed: %v", widen, err)
		}
		back, err := wide.Rescale(uint8(from))
		if err != nil {
			t.Fatalf("narrowing failed: %v", err)
		}
		if !back.Equal(d) {
			t.Fatalf("round trip changed value: %s -> %s", d, back)
		}
		backUp, err := wide.RescaleUp(uint8(from))
		if err != nil {
			t.Fatalf("narrowing up failed: %v", err)
		}
		if !backUp.Equal(d) {
			t.Fatalf("exact value rounded: %s -> %s", d, backUp)
		}
	})
}

func TestPowMonotonicInExponent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.Uint64Range(1, 16).Draw(t, "base").(uint64)
		exp := rapid.Uint64Range(0, 30).Draw(t, "exp").(uint64)

		a := fpmath.FromInteger(base)
		lo, err := a.PowWithAccuracy(exp)
		if err != nil {
			t.Fatalf("pow(%d,%d): %v", base, exp, err)
		}
		hi, err := a.PowWithAccuracy(exp + 1)
		if err != nil {
			return
		}
		if hi.Val().Cmp(lo.Val()) < 0 {
			t.Fatalf("pow(%d,%d) < pow(%d,%d)", base, exp+1, base, exp)
		}
	})
}

func TestPowMatchesRepeatedMul(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.Uint64Range(0, 1000).Draw(t, "base").(uint64)
		exp := rapid.Uint64Range(0, 6).Draw(t, "exp").(uint64)

		a := fpmath.FromInteger(base)
		got, err := a.PowWithAccuracy(exp)
		if err != nil {
			t.Fatalf("pow: %v", err)
		}

		want := fpmath.FromInteger(1)
		for i := uint64(0); i < exp; i++ {
			if want, err = want.Mul(a); err != nil {
				t.Fatalf("mul: %v", err)
			}
		}
		if !got.Equal(want) {
			t.Fatalf("pow(%d,%d) = %s, want %s", base, exp, got, want)
		}
	})
}

package fuel_test

import (
	"math"
	"testing"

	"github.com/speedway/garage-engine/internal/fuel"
)

func TestAdd(t *testing.T) {
	if v, err := fuel.Add(1, 2); err != nil || v != 3 {
		t.Fatalf("Add(1,2) = %d, %v", v, err)
	}
	if _, err := fuel.Add(math.MaxUint64, 1); err != fuel.ErrOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestSub(t *testing.T) {
	if v, err := fuel.Sub(5, 3); err != nil || v != 2 {
		t.Fatalf("Sub(5,3) = %d, %v", v, err)
	}
	if _, err := fuel.Sub(3, 5); err != fuel.ErrOverflow {
		t.Fatalf("expected underflow error, got %v", err)
	}
}

func TestMul(t *testing.T) {
	if v, err := fuel.Mul(6, 7); err != nil || v != 42 {
		t.Fatalf("Mul(6,7) = %d, %v", v, err)
	}
	if _, err := fuel.Mul(math.MaxUint64, 2); err != fuel.ErrOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestDivByZero(t *testing.T) {
	if _, err := fuel.Div(1, 0); err != fuel.ErrOverflow {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestMulBps(t *testing.T) {
	cases := []struct {
		amount, bps, want uint64
	}{
		{10000, 1000, 1000},  // 10%
		{1000, 5500, 550},    // 55%
		{1000, 700, 70},      // 7%
		{99, 100, 0},         // truncates, never rounds up
		{10_000_000, 150, 150_000},
		// Product exceeds 64 bits; the quotient must still be exact.
		{math.MaxUint64, 5000, 9_223_372_036_854_775_807},
	}
	for _, c := range cases {
		got, err := fuel.MulBps(c.amount, c.bps)
		if err != nil {
			t.Fatalf("MulBps(%d, %d): %v", c.amount, c.bps, err)
		}
		if got != c.want {
			t.Errorf("MulBps(%d, %d) = %d, want %d", c.amount, c.bps, got, c.want)
		}
	}
}

func TestMulDiv(t *testing.T) {
	// 1e15 * 54750 = 5.475e19 overflows uint64; the quotient fits.
	got, err := fuel.MulDiv(1_000_000_000_000_000, 54_750, 10_000)
	if err != nil {
		t.Fatal(err)
	}
	if want := uint64(5_475_000_000_000_000); got != want {
		t.Fatalf("MulDiv = %d, want %d", got, want)
	}

	if _, err := fuel.MulDiv(math.MaxUint64, math.MaxUint64, 10); err != fuel.ErrOverflow {
		t.Fatalf("expected quotient overflow, got %v", err)
	}
	if _, err := fuel.MulDiv(1, 1, 0); err != fuel.ErrOverflow {
		t.Fatalf("expected error on zero denominator, got %v", err)
	}
}

func TestUIAmount(t *testing.T) {
	if got := fuel.UIAmount(fuel.OneFuel).String(); got != "1" {
		t.Errorf("UIAmount(OneFuel) = %s, want 1", got)
	}
	if got := fuel.UIAmount(fuel.OneFuel / 2).String(); got != "0.5" {
		t.Errorf("UIAmount(OneFuel/2) = %s, want 0.5", got)
	}
}

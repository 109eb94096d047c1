package calc

import (
	"errors"
	"testing"

	"github.com/mumuon/pixetl-go/internal/maskedarray"
)

func zeros1x3() *maskedarray.Array {
	return maskedarray.New(3, 1)
}

func sum(a *maskedarray.Array) float64 {
	var s float64
	for _, v := range a.Data {
		s += v
	}
	return s
}

// TestCalcScenarios is spec.md scenario S5: on a 1x3 zero array, calc "A+1"
// sums to 3; "A+1*5" sums to 15; "A*5+1" sums to 3.
func TestCalcScenarios(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"A+1", 3},
		{"A+1*5", 15},
		{"A*5+1", 3},
	}
	for _, c := range cases {
		a := zeros1x3()
		result, err := Evaluate(c.expr, map[string]*maskedarray.Array{"A": a})
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", c.expr, err)
		}
		if got := sum(result); got != c.want {
			t.Errorf("Evaluate(%q) sum = %v, want %v", c.expr, got, c.want)
		}
	}
}

// TestCalcPurity is testable property 6: evaluate(expr, {A: x}) has no
// effect on x and produces arrays of the same shape as x.
func TestCalcPurity(t *testing.T) {
	a := maskedarray.New(4, 3)
	for i := range a.Data {
		a.Data[i] = float64(i)
	}
	before := append([]float64(nil), a.Data...)

	result, err := Evaluate("A*2+1", map[string]*maskedarray.Array{"A": a})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for i, v := range a.Data {
		if v != before[i] {
			t.Errorf("input array mutated at index %d: %v != %v", i, v, before[i])
		}
	}
	if !result.SameShape(a) {
		t.Errorf("result shape %dx%d, want %dx%d", result.Width, result.Height, a.Width, a.Height)
	}
}

func TestCalcRejectsUnknownFunction(t *testing.T) {
	_, err := Evaluate("exec(A)", map[string]*maskedarray.Array{"A": zeros1x3()})
	if !errors.Is(err, ErrCalcInvalid) {
		t.Fatalf("expected ErrCalcInvalid, got %v", err)
	}
}

func TestCalcRejectsUnknownIdentifier(t *testing.T) {
	_, err := Evaluate("B+1", map[string]*maskedarray.Array{"A": zeros1x3()})
	if !errors.Is(err, ErrCalcInvalid) {
		t.Fatalf("expected ErrCalcInvalid, got %v", err)
	}
}

func TestCalcDivisionByZeroMasksResult(t *testing.T) {
	a := maskedarray.New(1, 1)
	a.Set(0, 0, 5, false)
	result, err := Evaluate("A/0", map[string]*maskedarray.Array{"A": a})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.MaskedAt(0, 0) {
		t.Error("expected division by zero to mask the result cell")
	}
}

func TestCalcAllowlistedFunctions(t *testing.T) {
	a := maskedarray.New(1, 1)
	a.Set(0, 0, 4, false)
	result, err := Evaluate("sqrt(A)", map[string]*maskedarray.Array{"A": a})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := result.At(0, 0); got != 2 {
		t.Errorf("sqrt(4) = %v, want 2", got)
	}
}

func TestCalcWhere(t *testing.T) {
	a := maskedarray.New(1, 1)
	a.Set(0, 0, 0, false)
	result, err := Evaluate("where(A, 1, 2)", map[string]*maskedarray.Array{"A": a})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := result.At(0, 0); got != 2 {
		t.Errorf("where(0,1,2) = %v, want 2", got)
	}
}

func TestCalcRejectsIndexingAndAttributeAccess(t *testing.T) {
	for _, expr := range []string{"A[0]", "A.shape", "A == 1", "A < 1"} {
		_, err := Evaluate(expr, map[string]*maskedarray.Array{"A": zeros1x3()})
		if !errors.Is(err, ErrCalcInvalid) {
			t.Errorf("expr %q: expected ErrCalcInvalid, got %v", expr, err)
		}
	}
}

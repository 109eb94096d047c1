// Package calc implements the restricted per-pixel arithmetic sub-language
// from spec.md §4.7: a small allowlisted expression language evaluated over
// masked 2-D numeric arrays, replacing the original Python implementation's
// dynamic exec(f"def f(A): return {calc}") per the explicit redesign note in
// spec.md §9 ("must never escape a whitelist of operators and functions").
package calc

import (
	"fmt"
	"math"

	"github.com/mumuon/pixetl-go/internal/maskedarray"
)

// Evaluate parses src, validates it against the allowlist (including that
// every referenced identifier is present in bindings), then evaluates it
// elementwise. It never mutates any array in bindings (testable property 6).
func Evaluate(src string, bindings map[string]*maskedarray.Array) (*maskedarray.Array, error) {
	ast, err := parse(src)
	if err != nil {
		return nil, err
	}

	used := map[string]bool{}
	collectIdents(ast, used)
	for name := range used {
		if _, ok := bindings[name]; !ok {
			return nil, fmt.Errorf("%w: identifier %q is not bound", ErrCalcInvalid, name)
		}
	}

	width, height, err := shapeOf(bindings)
	if err != nil {
		return nil, err
	}

	result := maskedarray.New(width, height)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			v, masked, err := evalAt(ast, bindings, col, row)
			if err != nil {
				return nil, err
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				masked = true
				v = 0
			}
			result.Set(col, row, v, masked)
		}
	}
	return result, nil
}

// Validate runs only the static allowlist/shape-free checks (parse + free
// identifiers), without requiring bindings or evaluating anything. Useful
// for rejecting a layer's calc expression at layer-validation time, before
// any tile is processed.
func Validate(src string, knownIdents map[string]bool) error {
	ast, err := parse(src)
	if err != nil {
		return err
	}
	used := map[string]bool{}
	collectIdents(ast, used)
	for name := range used {
		if !knownIdents[name] {
			return fmt.Errorf("%w: identifier %q is not bound", ErrCalcInvalid, name)
		}
	}
	return nil
}

func collectIdents(n node, out map[string]bool) {
	switch v := n.(type) {
	case ident:
		out[v.name] = true
	case unary:
		collectIdents(v.expr, out)
	case binary:
		collectIdents(v.left, out)
		collectIdents(v.right, out)
	case call:
		for _, a := range v.args {
			collectIdents(a, out)
		}
	}
}

func shapeOf(bindings map[string]*maskedarray.Array) (int, int, error) {
	if len(bindings) == 0 {
		return 0, 0, fmt.Errorf("%w: no bindings provided", ErrCalcInvalid)
	}
	var width, height int
	first := true
	for _, arr := range bindings {
		if first {
			width, height = arr.Width, arr.Height
			first = false
			continue
		}
		if arr.Width != width || arr.Height != height {
			return 0, 0, fmt.Errorf("%w: bound arrays have mismatched shapes", ErrCalcInvalid)
		}
	}
	return width, height, nil
}

func evalAt(n node, bindings map[string]*maskedarray.Array, col, row int) (float64, bool, error) {
	switch v := n.(type) {
	case numberLit:
		return v.value, false, nil

	case ident:
		arr := bindings[v.name]
		return arr.At(col, row), arr.MaskedAt(col, row), nil

	case unary:
		val, masked, err := evalAt(v.expr, bindings, col, row)
		if err != nil {
			return 0, false, err
		}
		return -val, masked, nil

	case binary:
		l, lm, err := evalAt(v.left, bindings, col, row)
		if err != nil {
			return 0, false, err
		}
		r, rm, err := evalAt(v.right, bindings, col, row)
		if err != nil {
			return 0, false, err
		}
		masked := lm || rm

		switch v.op {
		case tokPlus:
			return l + r, masked, nil
		case tokMinus:
			return l - r, masked, nil
		case tokStar:
			return l * r, masked, nil
		case tokSlash:
			if r == 0 {
				return 0, true, nil
			}
			return l / r, masked, nil
		case tokSlashSlash:
			if r == 0 {
				return 0, true, nil
			}
			return math.Floor(l / r), masked, nil
		case tokPercent:
			if r == 0 {
				return 0, true, nil
			}
			return math.Mod(l, r), masked, nil
		case tokStarStar:
			return math.Pow(l, r), masked, nil
		}
		return 0, false, fmt.Errorf("%w: unhandled operator", ErrCalcInvalid)

	case call:
		return evalCall(v, bindings, col, row)
	}
	return 0, false, fmt.Errorf("%w: unhandled node type", ErrCalcInvalid)
}

func evalCall(c call, bindings map[string]*maskedarray.Array, col, row int) (float64, bool, error) {
	arg := func(i int) (float64, bool, error) { return evalAt(c.args[i], bindings, col, row) }

	switch c.fn {
	case "abs":
		v, m, err := arg(0)
		return math.Abs(v), m, err
	case "log":
		v, m, err := arg(0)
		return math.Log(v), m, err
	case "log2":
		v, m, err := arg(0)
		return math.Log2(v), m, err
	case "log10":
		v, m, err := arg(0)
		return math.Log10(v), m, err
	case "exp":
		v, m, err := arg(0)
		return math.Exp(v), m, err
	case "sqrt":
		v, m, err := arg(0)
		return math.Sqrt(v), m, err
	case "floor":
		v, m, err := arg(0)
		return math.Floor(v), m, err
	case "ceil":
		v, m, err := arg(0)
		return math.Ceil(v), m, err
	case "isnan":
		v, m, err := arg(0)
		if err != nil {
			return 0, false, err
		}
		if math.IsNaN(v) {
			return 1, m, nil
		}
		return 0, m, nil
	case "isfinite":
		v, m, err := arg(0)
		if err != nil {
			return 0, false, err
		}
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, m, nil
		}
		return 1, m, nil
	case "minimum":
		a, am, err := arg(0)
		if err != nil {
			return 0, false, err
		}
		b, bm, err := arg(1)
		if err != nil {
			return 0, false, err
		}
		return math.Min(a, b), am || bm, nil
	case "maximum":
		a, am, err := arg(0)
		if err != nil {
			return 0, false, err
		}
		b, bm, err := arg(1)
		if err != nil {
			return 0, false, err
		}
		return math.Max(a, b), am || bm, nil
	case "where":
		cond, cm, err := arg(0)
		if err != nil {
			return 0, false, err
		}
		if cond != 0 {
			v, m, err := arg(1)
			return v, m || cm, err
		}
		v, m, err := arg(2)
		return v, m || cm, err
	}
	return 0, false, fmt.Errorf("%w: function %q is not in the allowlist", ErrCalcInvalid, c.fn)
}

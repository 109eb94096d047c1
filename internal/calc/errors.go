package calc

import "errors"

// ErrCalcInvalid is the taxonomy-level error for any expression that fails
// static validation: unknown identifiers, disallowed functions, malformed
// syntax, or wrong arity. Per spec.md §4.5, violations fail before
// execution begins.
var ErrCalcInvalid = errors.New("calc: invalid expression")

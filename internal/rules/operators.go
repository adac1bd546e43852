// internal/rules/operators.go
package rules

import (
	"math"
	"reflect"
	"strings"
)

/*
 * Operator comparison logic.
 *
 * Fifteen operators over a resolved field value and a condition operand:
 *   - exists/not_exists: presence only, operand ignored
 *   - =/!=: strict equality, numeric across Go number kinds, no coercion
 *     between strings, numbers and booleans
 *   - >, >=, <, <=: both sides through CoerceNumber, NaN never matches
 *   - in/not_in: operand must be a sequence, membership by equality
 *   - contains/not_contains/starts_with/ends_with: both sides through
 *     CoerceText, substring tests
 *   - between: operand must be a two-element sequence, inclusive range
 *
 * Absence rule: when the field is absent every operator except not_exists is
 * false, including the negated ones (!=, not_in, not_contains).
 *
 * Function-based: one switch over a string enum, matching how operators are
 * stored in rule documents.
 */

// Operator is the tag stored in a condition's "operator" field.
type Operator string

const (
	OpEq          Operator = "="
	OpNeq         Operator = "!="
	OpGt          Operator = ">"
	OpGte         Operator = ">="
	OpLt          Operator = "<"
	OpLte         Operator = "<="
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpBetween     Operator = "between"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "not_exists"
)

var knownOperators = map[Operator]struct{}{
	OpEq: {}, OpNeq: {}, OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {},
	OpIn: {}, OpNotIn: {}, OpContains: {}, OpNotContains: {},
	OpStartsWith: {}, OpEndsWith: {}, OpBetween: {}, OpExists: {}, OpNotExists: {},
}

// ParseOperator maps a stored operator tag to an Operator.
// Returns false for tags outside the fixed set.
func ParseOperator(s string) (Operator, bool) {
	op := Operator(s)
	_, ok := knownOperators[op]
	return op, ok
}

// Compare applies op to the resolved field value and the operand.
// found reports whether the field resolved to a present value.
func Compare(op Operator, value any, found bool, operand any) bool {
	switch op {
	case OpExists:
		return found
	case OpNotExists:
		return !found
	}
	if !found {
		return false
	}

	switch op {
	case OpEq:
		return strictEqual(value, operand)
	case OpNeq:
		return !strictEqual(value, operand)
	case OpGt:
		return compareNumeric(value, operand, func(a, b float64) bool { return a > b })
	case OpGte:
		return compareNumeric(value, operand, func(a, b float64) bool { return a >= b })
	case OpLt:
		return compareNumeric(value, operand, func(a, b float64) bool { return a < b })
	case OpLte:
		return compareNumeric(value, operand, func(a, b float64) bool { return a <= b })
	case OpIn:
		elems, ok := sequence(operand)
		return ok && includes(elems, value)
	case OpNotIn:
		elems, ok := sequence(operand)
		return ok && !includes(elems, value)
	case OpContains:
		return strings.Contains(CoerceText(value), CoerceText(operand))
	case OpNotContains:
		return !strings.Contains(CoerceText(value), CoerceText(operand))
	case OpStartsWith:
		return strings.HasPrefix(CoerceText(value), CoerceText(operand))
	case OpEndsWith:
		return strings.HasSuffix(CoerceText(value), CoerceText(operand))
	case OpBetween:
		return compareBetween(value, operand)
	default:
		return false
	}
}

// strictEqual compares without cross-type coercion.
// Numbers compare by value across Go numeric kinds; NaN equals nothing.
// Sequences and maps compare structurally.
func strictEqual(a, b any) bool {
	if na, ok := toFloat64(a); ok {
		nb, ok := toFloat64(b)
		return ok && na == nb
	}
	if _, ok := toFloat64(b); ok {
		return false
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return reflect.DeepEqual(a, b)
}

// compareNumeric coerces both sides and applies cmp.
// A NaN on either side is false for every ordering.
func compareNumeric(a, b any, cmp func(a, b float64) bool) bool {
	na, oka := CoerceNumber(a)
	nb, okb := CoerceNumber(b)
	if !oka || !okb {
		return false
	}
	return cmp(na, nb)
}

// compareBetween checks lo <= value <= hi for a two-element operand.
func compareBetween(value, operand any) bool {
	bounds, ok := sequence(operand)
	if !ok || len(bounds) != 2 {
		return false
	}
	v, okv := CoerceNumber(value)
	lo, oklo := CoerceNumber(bounds[0])
	hi, okhi := CoerceNumber(bounds[1])
	if !okv || !oklo || !okhi {
		return false
	}
	return v >= lo && v <= hi
}

// sequence unpacks a list operand. Strings are not sequences.
func sequence(v any) ([]any, bool) {
	if arr, ok := v.([]any); ok {
		return arr, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// includes tests membership; NaN is a member of a list containing NaN.
func includes(elems []any, value any) bool {
	for _, elem := range elems {
		if strictEqual(value, elem) || bothNaN(value, elem) {
			return true
		}
	}
	return false
}

func bothNaN(a, b any) bool {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return oka && okb && math.IsNaN(na) && math.IsNaN(nb)
}

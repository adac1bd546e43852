package rules

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var allOperators = []Operator{
	OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn, OpContains,
	OpNotContains, OpStartsWith, OpEndsWith, OpBetween, OpExists, OpNotExists,
}

func TestParseOperator(t *testing.T) {
	for _, op := range allOperators {
		if got, ok := ParseOperator(string(op)); !ok || got != op {
			t.Errorf("ParseOperator(%q) = %q, %v, want %q, true", op, got, ok, op)
		}
	}
	for _, bad := range []string{"", "==", "eq", "IN", "like"} {
		if _, ok := ParseOperator(bad); ok {
			t.Errorf("ParseOperator(%q) ok = true, want false", bad)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name    string
		op      Operator
		value   any
		operand any
		want    bool
	}{
		{"eq same string", OpEq, "gold", "gold", true},
		{"eq different string", OpEq, "gold", "silver", false},
		{"eq numbers across kinds", OpEq, float64(0), 0, true},
		{"eq no string to number coercion", OpEq, "0", float64(0), false},
		{"eq no bool to number coercion", OpEq, true, float64(1), false},
		{"eq bool", OpEq, true, true, true},
		{"eq json number", OpEq, json.Number("500"), float64(500), true},
		{"eq json number mismatch", OpEq, json.Number("499.5"), float64(500), false},
		{"eq malformed json number", OpEq, json.Number("x"), float64(0), false},
		{"eq lists structurally", OpEq, []any{"a"}, []any{"a"}, true},
		{"neq string", OpNeq, "gold", "silver", true},
		{"neq mixed types", OpNeq, "1", float64(1), true},
		{"gt numbers", OpGt, float64(600), float64(500), true},
		{"gt equal", OpGt, float64(500), float64(500), false},
		{"gte equal", OpGte, float64(500), float64(500), true},
		{"gte numeric string", OpGte, "600", float64(500), true},
		{"lt numbers", OpLt, float64(1), float64(2), true},
		{"lte equal", OpLte, float64(2), 2, true},
		{"gt nan field", OpGt, "abc", float64(0), false},
		{"lte nan field", OpLte, "abc", float64(0), false},
		{"lt nan operand", OpLt, float64(1), "abc", false},
		{"in member", OpIn, "gold", []any{"gold", "platinum"}, true},
		{"in non-member", OpIn, "silver", []any{"gold", "platinum"}, false},
		{"in numeric member", OpIn, 2, []any{float64(1), float64(2)}, true},
		{"in json number member", OpIn, json.Number("2"), []any{float64(1), float64(2)}, true},
		{"not_in json number member", OpNotIn, json.Number("2"), []any{float64(2)}, false},
		{"neq json number", OpNeq, json.Number("1"), float64(2), true},
		{"in typed slice", OpIn, "b", []string{"a", "b"}, true},
		{"in non-sequence operand", OpIn, "gold", "gold", false},
		{"not_in non-member", OpNotIn, "silver", []any{"gold"}, true},
		{"not_in member", OpNotIn, "gold", []any{"gold"}, false},
		{"not_in non-sequence operand", OpNotIn, "gold", "silver", false},
		{"contains substring", OpContains, "large latte", "latte", true},
		{"contains number as text", OpContains, float64(12345), float64(234), true},
		{"contains missing", OpContains, "tea", "coffee", false},
		{"not_contains", OpNotContains, "tea", "coffee", true},
		{"starts_with", OpStartsWith, "promo_summer", "promo_", true},
		{"starts_with mismatch", OpStartsWith, "summer_promo", "promo_", false},
		{"ends_with", OpEndsWith, "user@example.com", "@example.com", true},
		{"ends_with number", OpEndsWith, float64(1500), "00", true},
		{"between inside", OpBetween, float64(300), []any{float64(100), float64(500)}, true},
		{"between lower bound", OpBetween, float64(100), []any{float64(100), float64(500)}, true},
		{"between upper bound", OpBetween, float64(500), []any{float64(100), float64(500)}, true},
		{"between above", OpBetween, float64(501), []any{float64(100), float64(500)}, false},
		{"between string bounds", OpBetween, float64(300), []any{"100", "500"}, true},
		{"between wrong arity", OpBetween, float64(300), []any{float64(100)}, false},
		{"between non-sequence", OpBetween, float64(300), float64(500), false},
		{"exists present", OpExists, float64(0), nil, true},
		{"not_exists present", OpNotExists, "x", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.op, tt.value, true, tt.operand); got != tt.want {
				t.Errorf("Compare(%q, %v, %v) = %v, want %v", tt.op, tt.value, tt.operand, got, tt.want)
			}
		})
	}
}

// Property-based test: an absent field is false for every operator except
// not_exists, whatever the operand
func TestCompare_PropertyAbsentField(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	operands := []any{nil, "", "x", float64(0), float64(1), true, []any{}, []any{float64(1), float64(2)}, map[string]any{}}

	properties.Property("absent field only satisfies not_exists", prop.ForAll(
		func(opIdx, idx int) bool {
			op := allOperators[opIdx]
			got := Compare(op, nil, false, operands[idx])
			return got == (op == OpNotExists)
		},
		gen.IntRange(0, len(allOperators)-1),
		gen.IntRange(0, len(operands)-1),
	))

	properties.TestingRun(t)
}

// internal/rules/compile.go
package rules

import (
	"strings"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Rule compilation.
 *
 * Compiles a stored types.Rule into a CompiledRule: operator tags parsed,
 * logic annotations normalised, actions decoded into their ActionSpec
 * variants. Compilation never fails. Malformed pieces are carried along and
 * degrade at evaluation time:
 *   - unknown operator: condition evaluates false with a warning
 *   - unknown action type or bad params: that action fails, siblings run
 *
 * Declaration order is preserved for both conditions and actions; the
 * trailing-logic fold depends on it.
 */

// CompiledCondition is a condition ready for evaluation.
type CompiledCondition struct {
	Field    string
	Operator Operator
	Known    bool   // false when the stored operator tag is not recognised
	Raw      string // stored operator tag, kept for diagnostics
	Operand  any
	Logic    types.Logic
}

// CompiledAction is a decoded action, or the reason it could not be decoded.
type CompiledAction struct {
	Type string
	Spec ActionSpec
	Err  error
}

// CompiledRule is a rule ready for evaluation.
type CompiledRule struct {
	Rule       *types.Rule
	Conditions []CompiledCondition
	Actions    []CompiledAction
}

// Compile pre-processes a rule for evaluation.
func Compile(rule *types.Rule) *CompiledRule {
	return &CompiledRule{
		Rule:       rule,
		Conditions: CompileConditions(rule.Conditions),
		Actions:    CompileActions(rule.Actions),
	}
}

// CompileConditions parses operator tags and logic annotations.
func CompileConditions(conds []types.Condition) []CompiledCondition {
	out := make([]CompiledCondition, 0, len(conds))
	for _, c := range conds {
		op, known := ParseOperator(c.Operator)
		out = append(out, CompiledCondition{
			Field:    c.Field,
			Operator: op,
			Known:    known,
			Raw:      c.Operator,
			Operand:  c.Value,
			Logic:    normalizeLogic(c.Logic),
		})
	}
	return out
}

// CompileActions decodes each action into its variant.
func CompileActions(actions []types.Action) []CompiledAction {
	out := make([]CompiledAction, 0, len(actions))
	for _, a := range actions {
		spec, err := DecodeAction(a)
		out = append(out, CompiledAction{Type: a.Type, Spec: spec, Err: err})
	}
	return out
}

// normalizeLogic maps a stored annotation to AND or OR.
// Only "OR" (any case) selects OR; empty and unrecognised values are AND.
func normalizeLogic(l types.Logic) types.Logic {
	if strings.EqualFold(strings.TrimSpace(string(l)), string(types.LogicOr)) {
		return types.LogicOr
	}
	return types.LogicAnd
}

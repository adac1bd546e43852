// internal/rules/evaluate.go
package rules

import (
	"fmt"
	"log/slog"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Condition evaluation and action execution.
 *
 * Condition lists reduce left to right with a pending combinator:
 *
 *   result, pending := true, AND
 *   for each condition c:
 *       result = result <pending> eval(c)
 *       pending = c.logic
 *       if !result && pending == AND: return false
 *
 * A condition's logic annotation therefore joins the running result with the
 * NEXT condition. This is a flat fold, not an infix parse; multi-condition
 * rules rely on the exact order. An empty list matches.
 *
 * Short-circuit: the early return skips remaining conditions, so their
 * fields are never looked up. Within a single step both sides are always
 * evaluated.
 *
 * Action execution attempts every action independently. Success of the whole
 * pass is the conjunction of the per-action outcomes.
 */

// ActionResult is the outcome of one action.
type ActionResult struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExecutionOutcome is the outcome of a rule's action list.
type ExecutionOutcome struct {
	Success bool           `json:"success"`
	Actions []ActionResult `json:"actions"`
}

// Evaluator judges conditions and dispatches actions against Facts.
// Stateless apart from its logger; safe for concurrent use.
type Evaluator struct {
	logger   *slog.Logger
	formulas *FormulaEvaluator
}

// NewEvaluator creates an evaluator. A nil logger falls back to slog.Default().
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger, formulas: NewFormulaEvaluator(logger)}
}

// Evaluate judges a single condition.
func (e *Evaluator) Evaluate(cond types.Condition, facts Facts) bool {
	compiled := CompileConditions([]types.Condition{cond})
	return e.evaluateCondition(compiled[0], facts)
}

// EvaluateConditions reduces a condition list with the trailing-logic fold.
func (e *Evaluator) EvaluateConditions(conds []types.Condition, facts Facts) bool {
	return e.evaluateCompiled(CompileConditions(conds), facts)
}

// EvaluateFormula computes an arithmetic formula, 0 on failure.
func (e *Evaluator) EvaluateFormula(formula string, facts Facts) float64 {
	return e.formulas.Evaluate(formula, facts)
}

// ExecuteActions computes the effect of every action.
func (e *Evaluator) ExecuteActions(actions []types.Action, facts Facts) ExecutionOutcome {
	return e.executeCompiled(CompileActions(actions), facts)
}

func (e *Evaluator) evaluateCompiled(conds []CompiledCondition, facts Facts) bool {
	result := true
	pending := types.LogicAnd

	for _, c := range conds {
		matched := e.evaluateCondition(c, facts)

		if pending == types.LogicAnd {
			result = result && matched
		} else {
			result = result || matched
		}

		pending = c.Logic
		if !result && pending == types.LogicAnd {
			return false
		}
	}

	return result
}

func (e *Evaluator) evaluateCondition(c CompiledCondition, facts Facts) bool {
	if !c.Known {
		e.logger.Warn("unknown condition operator", "field", c.Field, "operator", c.Raw)
		return false
	}
	value, found := facts.Lookup(c.Field)
	return Compare(c.Operator, value, found, c.Operand)
}

func (e *Evaluator) executeCompiled(actions []CompiledAction, facts Facts) ExecutionOutcome {
	env := actionEnv{facts: facts, formulas: e.formulas}
	outcome := ExecutionOutcome{Success: true, Actions: make([]ActionResult, 0, len(actions))}

	for _, a := range actions {
		res := ActionResult{Type: a.Type}
		if a.Err != nil {
			res.Error = a.Err.Error()
		} else if effect, err := a.Spec.apply(env); err != nil {
			res.Error = err.Error()
		} else {
			res.Success = true
			res.Result = effect
		}

		if !res.Success {
			outcome.Success = false
			e.logger.Debug("action failed", "type", a.Type, "error", res.Error)
		}
		outcome.Actions = append(outcome.Actions, res)
	}

	return outcome
}

// describePanic renders a recovered panic value as an error message.
func describePanic(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(r)
}

// internal/rules/formula.go
package rules

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Arithmetic formula evaluation for point awards.
 *
 * Formulas such as "orderAmount * 1" or "floor(order.total / 100) * 5" are
 * parsed with the expr-lang parser and evaluated here by walking the AST.
 * The expr VM is never run; only this grammar is accepted:
 *
 *   number | variable | (expr) | -expr | +expr | expr (+ - * /) expr
 *   floor(x) | ceil(x) | round(x) | abs(x) | min(x, ...) | max(x, ...)
 *
 * Variables are identifiers or member chains ("user.totalSpent",
 * "cart.items[0].price"), resolved as whole tokens through Facts and coerced
 * with CoerceNumber. A missing or non-numeric variable fails the formula.
 *
 * Failure semantics: Evaluate never panics and never returns an error. Parse
 * errors, disallowed syntax, unresolved variables and non-finite results all
 * yield 0 with a warning log.
 */

// FormulaEvaluator computes arithmetic formulas over Facts.
type FormulaEvaluator struct {
	logger *slog.Logger
}

// NewFormulaEvaluator creates an evaluator logging diagnostics to logger.
// A nil logger falls back to slog.Default().
func NewFormulaEvaluator(logger *slog.Logger) *FormulaEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FormulaEvaluator{logger: logger}
}

// Evaluate returns the value of formula, or 0 on any failure.
func (f *FormulaEvaluator) Evaluate(formula string, facts Facts) (result float64) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Warn("formula evaluation panicked", "formula", formula, "panic", fmt.Sprint(r))
			result = 0
		}
	}()

	v, err := f.Compute(formula, facts)
	if err != nil {
		f.logger.Warn("formula evaluation failed", "formula", formula, "error", err)
		return 0
	}
	return v
}

// Compute evaluates formula and reports why it failed.
func (f *FormulaEvaluator) Compute(formula string, facts Facts) (float64, error) {
	if strings.TrimSpace(formula) == "" {
		return 0, fmt.Errorf("%w: empty formula", types.ErrInvalidFormula)
	}

	tree, err := parser.Parse(formula)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrInvalidFormula, err)
	}

	v, err := evalNode(tree.Node, facts)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: result is not finite", types.ErrInvalidFormula)
	}
	return v, nil
}

func evalNode(node ast.Node, facts Facts) (float64, error) {
	switch n := node.(type) {
	case *ast.IntegerNode:
		return float64(n.Value), nil

	case *ast.FloatNode:
		return n.Value, nil

	case *ast.IdentifierNode, *ast.MemberNode:
		path, err := variablePath(node)
		if err != nil {
			return 0, err
		}
		return lookupNumber(path, facts)

	case *ast.UnaryNode:
		v, err := evalNode(n.Node, facts)
		if err != nil {
			return 0, err
		}
		switch n.Operator {
		case "-":
			return -v, nil
		case "+":
			return v, nil
		}
		return 0, fmt.Errorf("%w: operator %q", types.ErrInvalidFormula, n.Operator)

	case *ast.BinaryNode:
		left, err := evalNode(n.Left, facts)
		if err != nil {
			return 0, err
		}
		right, err := evalNode(n.Right, facts)
		if err != nil {
			return 0, err
		}
		switch n.Operator {
		case "+":
			return left + right, nil
		case "-":
			return left - right, nil
		case "*":
			return left * right, nil
		case "/":
			return left / right, nil
		}
		return 0, fmt.Errorf("%w: operator %q", types.ErrInvalidFormula, n.Operator)

	case *ast.BuiltinNode:
		return callBuiltin(n.Name, n.Arguments, facts)

	case *ast.CallNode:
		ident, ok := n.Callee.(*ast.IdentifierNode)
		if !ok {
			return 0, fmt.Errorf("%w: unsupported call", types.ErrInvalidFormula)
		}
		return callBuiltin(ident.Value, n.Arguments, facts)

	default:
		return 0, fmt.Errorf("%w: unsupported expression %T", types.ErrInvalidFormula, node)
	}
}

// variablePath flattens an identifier or member chain into a dotted path.
func variablePath(node ast.Node) (string, error) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return n.Value, nil
	case *ast.MemberNode:
		if n.Optional || n.Method {
			return "", fmt.Errorf("%w: unsupported member access", types.ErrInvalidFormula)
		}
		base, err := variablePath(n.Node)
		if err != nil {
			return "", err
		}
		switch p := n.Property.(type) {
		case *ast.StringNode:
			return base + "." + p.Value, nil
		case *ast.IntegerNode:
			return fmt.Sprintf("%s.%d", base, p.Value), nil
		}
		return "", fmt.Errorf("%w: computed member access", types.ErrInvalidFormula)
	default:
		return "", fmt.Errorf("%w: unsupported variable %T", types.ErrInvalidFormula, node)
	}
}

func lookupNumber(path string, facts Facts) (float64, error) {
	v, ok := facts.Lookup(path)
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrUnresolvedVariable, path)
	}
	n, ok := CoerceNumber(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not numeric", types.ErrUnresolvedVariable, path)
	}
	return n, nil
}

func callBuiltin(name string, args []ast.Node, facts Facts) (float64, error) {
	switch name {
	case "floor", "ceil", "round", "abs", "min", "max":
	default:
		return 0, fmt.Errorf("%w: function %q", types.ErrInvalidFormula, name)
	}

	values := make([]float64, len(args))
	for i, arg := range args {
		v, err := evalNode(arg, facts)
		if err != nil {
			return 0, err
		}
		values[i] = v
	}

	unary := func(fn func(float64) float64) (float64, error) {
		if len(values) != 1 {
			return 0, fmt.Errorf("%w: %s takes one argument", types.ErrInvalidFormula, name)
		}
		return fn(values[0]), nil
	}

	switch name {
	case "floor":
		return unary(math.Floor)
	case "ceil":
		return unary(math.Ceil)
	case "round":
		// Half rounds up, so round(-2.5) is -2
		return unary(func(x float64) float64 { return math.Floor(x + 0.5) })
	case "abs":
		return unary(math.Abs)
	case "min", "max":
		if len(values) == 0 {
			return 0, fmt.Errorf("%w: %s needs arguments", types.ErrInvalidFormula, name)
		}
		out := values[0]
		for _, v := range values[1:] {
			if name == "min" {
				out = math.Min(out, v)
			} else {
				out = math.Max(out, v)
			}
		}
		return out, nil
	default:
		return 0, fmt.Errorf("%w: function %q", types.ErrInvalidFormula, name)
	}
}

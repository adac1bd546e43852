package types

import "errors"

// Sentinel errors for rulekeeper operations.
var (
	// ErrRuleNotFound indicates no rule exists for the given id or code.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrConfigNotFound indicates no config exists for the given id or code.
	ErrConfigNotFound = errors.New("config not found")

	// ErrConfigItemNotFound indicates no config item exists for the given id.
	ErrConfigItemNotFound = errors.New("config item not found")

	// ErrDuplicateCode indicates a rule or config code is already taken.
	ErrDuplicateCode = errors.New("code already exists")

	// ErrInvalidRecord indicates an admin-authored record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrUnknownActionType indicates an action tag with no registered handler.
	ErrUnknownActionType = errors.New("unknown action type")

	// ErrInvalidActionParams indicates action params a handler cannot use.
	ErrInvalidActionParams = errors.New("invalid action params")

	// ErrInvalidFormula indicates a formula outside the arithmetic grammar.
	ErrInvalidFormula = errors.New("invalid formula")

	// ErrRuleFault indicates a rule failed internally while being processed.
	ErrRuleFault = errors.New("rule fault")

	// ErrUnresolvedVariable indicates a formula variable missing from context
	// or not coercible to a number.
	ErrUnresolvedVariable = errors.New("unresolved formula variable")
)

// internal/types/rules.go
package types

/*
 * Domain types for rule evaluation.
 *
 * Provides Rule, Condition, Action and RuleExecutionLogEntry used by
 * internal/rules for evaluation and by internal/store for persistence.
 * Conditions and actions are stored as JSON documents; their field names are
 * the contract with rule authors and must not change.
 *
 * Key types:
 *   - Condition: field path, operator tag, operand, trailing logic
 *   - Action: type tag plus free-form params
 *   - Rule: conditions, actions, priority, mutex group, validity window
 *   - RuleExecutionLogEntry: append-only audit record of one considered rule
 */

import (
	"encoding/json"
	"time"
)

// Logic joins a condition's result with the one that follows it.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Condition is one comparison in a rule's flat condition list.
// Logic is a trailing annotation: it decides how the running result combines
// with the next condition, not with this one.
type Condition struct {
	Field    string `json:"field" validate:"required"`
	Operator string `json:"operator" validate:"required"`
	Value    any    `json:"value,omitempty"`
	Logic    Logic  `json:"logic,omitempty"`
}

// Action is a tagged side-effect description. Params are interpreted by the
// handler registered for Type.
type Action struct {
	Type   string         `json:"type" validate:"required"`
	Params map[string]any `json:"params,omitempty"`
}

// Rule is an administrator-authored condition/action pair.
type Rule struct {
	ID             RuleID        `json:"id"`
	Code           string        `json:"code" validate:"required,max=128"`
	Name           LocalizedText `json:"name"`
	Description    LocalizedText `json:"description"`
	RuleType       string        `json:"ruleType" validate:"required,max=64"`
	Conditions     []Condition   `json:"conditions" validate:"dive"`
	Actions        []Action      `json:"actions" validate:"dive"`
	Priority       int           `json:"priority"`
	MutexGroup     string        `json:"mutexGroup,omitempty" validate:"max=64"`
	IsEnabled      bool          `json:"isEnabled"`
	ValidFrom      *time.Time    `json:"validFrom,omitempty"`
	ValidTo        *time.Time    `json:"validTo,omitempty"`
	ExecutionCount int64         `json:"executionCount"`
	LastExecutedAt *time.Time    `json:"lastExecutedAt,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// ActiveAt reports whether the rule is enabled and now lies inside its
// validity window. Open bounds are unbounded; both bounds are inclusive.
func (r *Rule) ActiveAt(now time.Time) bool {
	return r.IsEnabled && withinWindow(r.ValidFrom, r.ValidTo, now)
}

// RuleExecutionLogEntry records the outcome of one rule considered during a
// run. Write-once; the engine never reads these back.
type RuleExecutionLogEntry struct {
	ID            LogEntryID      `json:"id"`
	RuleID        RuleID          `json:"ruleId"`
	RuleCode      string          `json:"ruleCode"`
	ContextType   string          `json:"contextType"`
	ContextID     string          `json:"contextId"`
	IsMatched     bool            `json:"isMatched"`
	IsExecuted    bool            `json:"isExecuted"`
	Result        json.RawMessage `json:"result,omitempty"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	ExecutionTime time.Duration   `json:"executionTime"`
	ExecutedAt    time.Time       `json:"executedAt"`
}

func withinWindow(from, to *time.Time, now time.Time) bool {
	if from != nil && from.After(now) {
		return false
	}
	if to != nil && to.Before(now) {
		return false
	}
	return true
}

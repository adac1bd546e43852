// internal/rules/audit.go
package rules

import (
	"encoding/json"
	"math"
	"time"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Audit entry construction.
 *
 * One entry is built per rule considered during a run, matched or not.
 * The action outcome is stored as JSON; an outcome that cannot be encoded
 * leaves Result empty and fills ErrorMessage instead. Context type and id
 * are read from the request context's reserved keys.
 */

// newLogEntry builds the audit record for one considered rule.
// contextType falls back to "unknown" and contextId to "" when the context
// leaves them unset or falsy.
func newLogEntry(rule *types.Rule, rc types.Context, matched, executed bool, result any, errMsg string, elapsed time.Duration, at time.Time) *types.RuleExecutionLogEntry {
	entry := &types.RuleExecutionLogEntry{
		ID:            types.NewLogEntryID(),
		RuleID:        rule.ID,
		RuleCode:      rule.Code,
		ContextType:   "unknown",
		IsMatched:     matched,
		IsExecuted:    executed,
		ErrorMessage:  errMsg,
		ExecutionTime: elapsed,
		ExecutedAt:    at,
	}

	if v := rc[types.ContextTypeKey]; truthy(v) {
		entry.ContextType = CoerceText(v)
	}
	if v := rc[types.ContextIDKey]; truthy(v) {
		entry.ContextID = CoerceText(v)
	}

	if result != nil {
		if raw, err := json.Marshal(result); err == nil {
			entry.Result = raw
		} else if entry.ErrorMessage == "" {
			entry.ErrorMessage = "result not serializable: " + err.Error()
		}
	}

	return entry
}

// truthy reports whether v is set to something other than a zero scalar.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	}
	if f, ok := toFloat64(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

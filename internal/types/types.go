// Package types provides the domain model shared across rulekeeper components.
//
// Storage-agnostic: the SQL layer maps rows onto these structs in
// internal/store, and the gRPC layer converts them to structpb at the API
// boundary. Only encoding/json and uuid are imported here.
package types

import "encoding/json"

// RuleID is a UUIDv7 rule identifier.
type RuleID string

// ConfigID is a UUIDv7 config identifier.
type ConfigID string

// ConfigItemID is a UUIDv7 config item identifier.
type ConfigItemID string

// LogEntryID is a UUIDv7 execution log identifier.
// Time-ordered so audit inserts cluster at the end of the index.
type LogEntryID string

// Context is the request-scoped attribute tree a rule run is evaluated
// against. Values are whatever encoding/json produces (map[string]any,
// []any, float64, string, bool, nil) plus native Go numbers for callers that
// build contexts in code.
type Context map[string]any

// Reserved context keys used to tag audit entries.
const (
	ContextTypeKey = "contextType"
	ContextIDKey   = "contextId"
)

// DecodeContext parses a JSON object into a Context.
// A JSON null yields an empty context.
func DecodeContext(data []byte) (Context, error) {
	var ctx Context
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = Context{}
	}
	return ctx, nil
}

// LocalizedText carries display strings in the three storefront languages.
type LocalizedText struct {
	Ru string `json:"ru,omitempty"`
	En string `json:"en,omitempty"`
	Zh string `json:"zh,omitempty"`
}

// String returns the first non-empty translation, preferring English.
func (t LocalizedText) String() string {
	switch {
	case t.En != "":
		return t.En
	case t.Ru != "":
		return t.Ru
	default:
		return t.Zh
	}
}

// internal/rules/fieldpath.go
package rules

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Attribute path resolution for rule contexts.
 *
 * A condition field such as "user.memberLevel" is split on "." and walked
 * part by part through nested maps. Numeric parts index into sequences, so
 * "cart.items.0.price" reaches the first cart item.
 *
 * Absence: a missing key, an out-of-range index, a scalar with a path still
 * remaining, or a nil anywhere along the way (including the leaf) resolves
 * to "absent". Operators treat absent uniformly, see Compare().
 *
 * Key types:
 *   - Facts: attribute source consumed by the evaluators
 *   - ContextFacts: Facts over a types.Context
 *
 * Paths deeper than MaxPathDepth resolve to absent rather than walking.
 */

// MaxPathDepth bounds the number of segments walked for one field path.
const MaxPathDepth = 16

// Facts supplies attribute values to the expression and formula evaluators.
// Lookup returns the value at path and whether it is present (non-nil).
type Facts interface {
	Lookup(path string) (any, bool)
}

// ContextFacts adapts a request context to Facts.
type ContextFacts types.Context

// Lookup resolves a dotted path against the context.
func (c ContextFacts) Lookup(path string) (any, bool) {
	return Resolve(path, map[string]any(c))
}

// Resolve walks data following the dotted path.
// Returns (nil, false) when any step is absent.
func Resolve(path string, data any) (any, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	if len(parts) > MaxPathDepth {
		return nil, false
	}

	current := data
	for _, part := range parts {
		if current == nil {
			return nil, false
		}
		next, ok := step(current, part)
		if !ok {
			return nil, false
		}
		current = next
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

// step descends one path segment. Common JSON shapes take the type-switch
// fast path; other string-keyed maps and slices go through reflect.
func step(current any, part string) (any, bool) {
	switch v := current.(type) {
	case map[string]any:
		val, ok := v[part]
		return val, ok
	case types.Context:
		val, ok := v[part]
		return val, ok
	case []any:
		idx, ok := parseIndex(part, len(v))
		if !ok {
			return nil, false
		}
		return v[idx], true
	}

	rv := reflect.ValueOf(current)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		val := rv.MapIndex(reflect.ValueOf(part).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return nil, false
		}
		return val.Interface(), true
	case reflect.Slice, reflect.Array:
		idx, ok := parseIndex(part, rv.Len())
		if !ok {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	default:
		// Scalar value but path continues
		return nil, false
	}
}

func parseIndex(part string, length int) (int, bool) {
	idx, err := strconv.Atoi(part)
	if err != nil || idx < 0 || idx >= length {
		return 0, false
	}
	return idx, true
}

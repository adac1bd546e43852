// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

/*
 * Value coercion for rule evaluation.
 *
 * Two lenient conversions cover every operator:
 *   - CoerceNumber: ordering operators, between, formulas, action params
 *   - CoerceText: contains, starts_with, ends_with
 *
 * Number rules: native numerics convert directly; strings are trimmed, an
 * empty string is 0, decimal and 0x/0o/0b literals parse, "Infinity" is
 * accepted; booleans are 1/0; sequences convert through their text form so a
 * one-element list behaves like its element. Anything else is NaN, reported
 * as ok=false. Comparisons against NaN are always false.
 *
 * Text rules: integral floats print without a fraction, sequences join their
 * elements with ",", maps print as "[object Object]".
 */

// CoerceNumber converts value to float64.
// Returns ok=false when the value has no numeric reading (NaN).
func CoerceNumber(value any) (float64, bool) {
	if f, ok := toFloat64(value); ok {
		return f, !math.IsNaN(f)
	}

	switch v := value.(type) {
	case nil:
		return 0, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		return parseNumber(v)
	case json.Number:
		return parseNumber(string(v))
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return parseNumber(CoerceText(value))
	default:
		return math.NaN(), false
	}
}

// parseNumber reads a trimmed numeric literal.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}

	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}

	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			n, err := strconv.ParseUint(s, 0, 64)
			if err != nil {
				return math.NaN(), false
			}
			return float64(n), true
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !isRangeError(err) {
		return math.NaN(), false
	}
	// ParseFloat accepts "inf" and "nan" spellings that are not numbers here
	if math.IsNaN(f) || (math.IsInf(f, 0) && !isRangeError(err)) {
		return math.NaN(), false
	}
	return f, true
}

func isRangeError(err error) bool {
	if ne, ok := err.(*strconv.NumError); ok {
		return ne.Err == strconv.ErrRange
	}
	return false
}

// CoerceText converts value to its display string.
func CoerceText(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	}

	if f, ok := toFloat64(value); ok {
		return formatNumber(f)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			elem := rv.Index(i).Interface()
			if elem == nil {
				continue
			}
			parts[i] = CoerceText(elem)
		}
		return strings.Join(parts, ",")
	case reflect.Map, reflect.Struct:
		return "[object Object]"
	default:
		return fmt.Sprint(value)
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

// toFloat64 converts Go numeric kinds and json.Number to float64.
// Contexts built in code may carry any integer width; contexts decoded with
// UseNumber carry json.Number.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

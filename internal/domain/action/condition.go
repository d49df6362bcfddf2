package action

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// ConditionKind selects how a Conditional is evaluated.
type ConditionKind string

const (
	ConditionStateEquals       ConditionKind = "stateEquals"
	ConditionStateExists       ConditionKind = "stateExists"
	ConditionStateMatches      ConditionKind = "stateMatches"
	ConditionUserAgentMatches  ConditionKind = "userAgentMatches"
	ConditionUserAgentIncludes ConditionKind = "userAgentIncludes"
	ConditionCustom            ConditionKind = "custom"
)

// RequiresKey reports whether the condition reads application state.
func (c ConditionKind) RequiresKey() bool {
	switch c {
	case ConditionStateEquals, ConditionStateExists, ConditionStateMatches:
		return true
	}
	return false
}

// RequiresPattern reports whether the condition evaluates a regular expression.
func (c ConditionKind) RequiresPattern() bool {
	return c == ConditionStateMatches || c == ConditionUserAgentMatches
}

// CompilePattern builds a regular expression from a pattern and JavaScript-style flags.
// Flags i, m and s map onto RE2 inline flags; g, y, u and d do not change a single test.
func CompilePattern(pattern, flags string) (*regexp.Regexp, error) {
	var inline strings.Builder
	seen := make(map[rune]bool, len(flags))
	for _, f := range flags {
		if seen[f] {
			return nil, fmt.Errorf("duplicate regular expression flag %q", f)
		}
		seen[f] = true
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'g', 'y', 'u', 'd':
		default:
			return nil, fmt.Errorf("invalid regular expression flag %q", f)
		}
	}
	expr := pattern
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression %q: %w", pattern, err)
	}
	return re, nil
}

// StrictEqual compares two state values without coercion. Numbers compare by
// value across Go numeric types so decoded JSON and YAML agree; maps, slices
// and other reference values are never equal, mirroring identity comparison.
func StrictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	switch ta.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Pointer, reflect.Chan:
		return false
	}
	return a == b
}

// StringifyState converts a state lookup. A missing key renders as
// "undefined" while a key holding nil renders as "null".
func StringifyState(v any, ok bool) string {
	if !ok {
		return "undefined"
	}
	return Stringify(v)
}

// Stringify converts a value the way string conversion would on the front
// end: nil becomes "null", numbers drop trailing zeros, slices are
// comma-joined and objects render as "[object Object]".
func Stringify(v any) string {
	if v == nil {
		return "null"
	}
	if f, ok := toFloat(v); ok {
		return formatNumber(f)
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i).Interface()
			if elem == nil {
				continue
			}
			parts[i] = Stringify(elem)
		}
		return strings.Join(parts, ",")
	case reflect.Map, reflect.Struct:
		return "[object Object]"
	}
	return fmt.Sprint(v)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
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
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

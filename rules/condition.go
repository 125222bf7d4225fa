package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// leadingNumber matches the numeric prefix of a string, so "12abc" reads as 12
var leadingNumber = regexp.MustCompile(`^[+-]?(Infinity|\d+(\.\d*)?([eE][+-]?\d+)?|\.\d+([eE][+-]?\d+)?)`)

// matches evaluates one condition. It never fails: anything it cannot
// compare is treated as a false condition.
func matches(op Operator, raw any, present bool, want string) bool {
	switch op {
	case OpEqual:
		return stringValue(raw, present) == want
	case OpContains:
		return strings.Contains(stringValue(raw, present), want)
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		if !present {
			return false
		}
		left, right := numberValue(raw), parseNumber(want)
		if math.IsNaN(left) || math.IsNaN(right) {
			return false
		}
		switch op {
		case OpGreater:
			return left > right
		case OpLess:
			return left < right
		case OpGreaterEqual:
			return left >= right
		default:
			return left <= right
		}
	}
	return false
}

// stringValue coerces a runtime value for string comparison.
// Missing values compare as the empty string.
func stringValue(raw any, present bool) string {
	if !present || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatNumber(v)
	case float32:
		return formatNumber(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(raw)
}

// numberValue coerces a runtime value for numeric comparison, NaN when it
// has no numeric reading
func numberValue(raw any) float64 {
	switch v := raw.(type) {
	case nil, bool:
		return math.NaN()
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case uint:
		return float64(v)
	case uint64:
		return float64(v)
	case string:
		return parseNumber(v)
	case json.Number:
		return parseNumber(v.String())
	}
	return parseNumber(fmt.Sprint(raw))
}

// parseNumber reads the leading number of s. Leading whitespace is skipped;
// NaN is returned when s does not start with a number.
func parseNumber(s string) float64 {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return math.NaN()
	}
	switch m {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil && !isRangeError(err) {
		return math.NaN()
	}
	return f
}

func isRangeError(err error) bool {
	numErr, ok := err.(*strconv.NumError)
	return ok && numErr.Err == strconv.ErrRange
}

func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e21 || abs < 1e-6 {
		// 1e-07 becomes 1e-7 and 1e+21 stays as is
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
		return mant + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// finite folds NaN and infinities to zero
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

package extract

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Scalar formats a property value as a string. It reports false for nil and
// for values that are not strings, booleans or numbers.
func Scalar(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	default:
		return "", false
	}
}

// Attribute formats any value for use as an attribute. Scalars are formatted
// with Scalar, everything else is JSON-encoded.
func Attribute(v any) (string, bool) {
	if s, ok := Scalar(v); ok {
		return s, true
	}
	if v == nil {
		return "", false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// declarationValue returns v when it can be written as a single declaration
// value: a non-empty scalar that cannot break out of "k:v; k:v".
func declarationValue(v any) (string, bool) {
	s, ok := Scalar(v)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, ";{}") {
		return "", false
	}
	return s, true
}

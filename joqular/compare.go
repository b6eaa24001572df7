package joqular

import (
	"math"
	"strconv"
	"strings"
)

// Compare orders two values and reports whether they are comparable.
//
//	-1 if left < right
//	 0 if left == right
//	 1 if left > right
//
// Numbers compare across int64 and float64, strings lexically and booleans
// with false < true. nil is only comparable to nil. Values of different
// kinds are not comparable, so relational operators over them fail.
func Compare(left, right interface{}) (int, bool) {
	if left == nil || right == nil {
		if left == nil && right == nil {
			return 0, true
		}
		return 0, false
	}

	if l, ok := ToFloat(left); ok {
		r, ok := ToFloat(right)
		if !ok {
			return 0, false
		}
		if math.IsNaN(l) || math.IsNaN(r) {
			return 0, false
		}
		return compareFloats(l, r), true
	}

	switch l := left.(type) {
	case string:
		if r, ok := right.(string); ok {
			return strings.Compare(l, r), true
		}
	case bool:
		if r, ok := right.(bool); ok {
			switch {
			case l == r:
				return 0, true
			case !l:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

// compareFloats compares two float64 values
func compareFloats(a, b float64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// StrictEqual reports whether two values are identical in kind and content.
// int64 and float64 holding the same number are equal; arrays and objects
// compare element-wise.
func StrictEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if l, ok := ToFloat(a); ok {
		r, ok := ToFloat(b)
		return ok && l == r
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !StrictEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		return objectsEqual(av, b)
	case map[string]interface{}:
		return objectsEqual(Object(av), b)
	}
	return a == b
}

func objectsEqual(a Object, b interface{}) bool {
	var bv Object
	switch m := b.(type) {
	case Object:
		bv = m
	case map[string]interface{}:
		bv = Object(m)
	default:
		return false
	}
	if len(a) != len(bv) {
		return false
	}
	for k, v := range a {
		w, ok := bv[k]
		if !ok || !StrictEqual(v, w) {
			return false
		}
	}
	return true
}

// LooseEqual is StrictEqual extended with the coercions of the $eq family:
// numeric strings and booleans compare equal to the number they denote.
func LooseEqual(a, b interface{}) bool {
	if StrictEqual(a, b) {
		return true
	}
	l, lok := coerceNumber(a)
	r, rok := coerceNumber(b)
	if lok && rok {
		return l == r
	}
	return false
}

func coerceNumber(v interface{}) (float64, bool) {
	if f, ok := ToFloat(v); ok {
		return f, true
	}
	switch val := v.(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// Stringify renders a scalar the way string operators see it: numbers use
// their shortest decimal form, strings are returned as is.
func Stringify(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case int64:
		return strconv.FormatInt(val, 10), true
	case int:
		return strconv.Itoa(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	}
	return "", false
}

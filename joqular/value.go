package joqular

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// Object is a stored instance: a property bag keyed by property name.
// Values are kept in the normalised domain (see Normalize).
type Object map[string]interface{}

// ID returns the identifier stored under key, or "" if there is none.
func (o Object) ID(key string) string {
	if key == "" {
		key = DefaultIdentifierKey
	}
	s, _ := o[key].(string)
	return s
}

// Clone returns a shallow copy of the object.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	c := make(Object, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// Keys returns the property names in sorted order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Elements returns the elements of an array-shaped instance, ordered by
// their numeric keys. Non-numeric keys (including the identifier) are skipped.
func (o Object) Elements() []interface{} {
	type elem struct {
		idx int
		v   interface{}
	}
	elems := make([]elem, 0, len(o))
	for k, v := range o {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			continue
		}
		elems = append(elems, elem{i, v})
	}
	sort.Slice(elems, func(a, b int) bool { return elems[a].idx < elems[b].idx })
	out := make([]interface{}, len(elems))
	for i, e := range elems {
		out[i] = e.v
	}
	return out
}

// Entry is a single row produced by a range scan. Index scans produce
// reference-only entries whose Value is nil; callers resolve them with Get.
type Entry struct {
	Key   string
	Value Object
}

// anyValue is the type of the Any sentinel.
type anyValue struct{}

func (anyValue) String() string { return "ANY" }

// Any matches every stored value of a property in an index scan.
var Any interface{} = anyValue{}

// IsAny reports whether v is the Any sentinel.
func IsAny(v interface{}) bool {
	_, ok := v.(anyValue)
	return ok
}

type undefinedValue struct{}

func (undefinedValue) String() string { return "undefined" }

// Undefined stands in for a property that is not present on a value being
// projected. Only $isUndefined and $isDefined distinguish it.
var Undefined interface{} = undefinedValue{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v interface{}) bool {
	_, ok := v.(undefinedValue)
	return ok
}

// Normalize converts a Go value into the value domain used for storage and
// comparison: nil, bool, int64, float64, string, []interface{} and Object.
func Normalize(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil, bool, int64, float64, string:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		return int64(val), nil
	case float32:
		return float64(val), nil
	case Object:
		return normalizeMap(val)
	case map[string]interface{}:
		return normalizeMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			n, err := Normalize(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	}

	// Typed slices and string-keyed maps
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 && rv.Kind() == reflect.Slice {
			return string(rv.Bytes()), nil
		}
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			n, err := Normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		out := make(Object, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			n, err := Normalize(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("%q: %w", iter.Key().String(), err)
			}
			out[iter.Key().String()] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

func normalizeMap(m map[string]interface{}) (Object, error) {
	out := make(Object, len(m))
	for k, e := range m {
		n, err := Normalize(e)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// ToFloat returns the numeric value of v if it is a number.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case float32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// TypeName returns the name of the value's type using the vocabulary of the
// $type operator: "undefined", "object", "boolean", "number", "string".
func TypeName(v interface{}) string {
	switch v.(type) {
	case undefinedValue:
		return "undefined"
	case nil:
		return "object"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number"
	case string:
		return "string"
	default:
		return "object"
	}
}

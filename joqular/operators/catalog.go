package operators

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/wbrown/janus-joqular/joqular"
)

func init() {
	// Comparison
	register(&Operator{Name: "$lt", Arity: Relation, Description: "less than", match: relational(func(c int) bool { return c < 0 })})
	register(&Operator{Name: "$lte", Arity: Relation, Description: "less than or equal", match: relational(func(c int) bool { return c <= 0 })})
	register(&Operator{Name: "$gt", Arity: Relation, Description: "greater than", match: relational(func(c int) bool { return c > 0 })})
	register(&Operator{Name: "$gte", Arity: Relation, Description: "greater than or equal", match: relational(func(c int) bool { return c >= 0 })})
	register(&Operator{Name: "$eq", Arity: Relation, Description: "equal with numeric coercion", match: joqular.LooseEqual})
	register(&Operator{Name: "$eeq", Arity: Relation, Description: "strictly equal", match: joqular.StrictEqual})
	register(&Operator{Name: "$neq", Arity: Relation, Description: "not equal with numeric coercion", match: func(v, arg interface{}) bool {
		return !joqular.LooseEqual(v, arg)
	}})
	register(&Operator{Name: "$between", Arity: Relation, Description: "within [low, high]", prepare: pair, match: func(v, arg interface{}) bool {
		bounds := arg.([]interface{})
		lo, ok1 := joqular.Compare(v, bounds[0])
		hi, ok2 := joqular.Compare(v, bounds[1])
		return ok1 && ok2 && lo >= 0 && hi <= 0
	}})
	register(&Operator{Name: "$outside", Arity: Relation, Description: "below low or above high", prepare: pair, match: func(v, arg interface{}) bool {
		bounds := arg.([]interface{})
		if c, ok := joqular.Compare(v, bounds[0]); ok && c < 0 {
			return true
		}
		c, ok := joqular.Compare(v, bounds[1])
		return ok && c > 0
	}})

	// Membership
	register(&Operator{Name: "$in", Arity: Relation, Description: "member of list", prepare: list, match: func(v, arg interface{}) bool {
		return contains(arg.([]interface{}), v)
	}})
	register(&Operator{Name: "$nin", Arity: Relation, Description: "not a member of list", prepare: list, match: func(v, arg interface{}) bool {
		return !contains(arg.([]interface{}), v)
	}})
	register(&Operator{Name: "$includes", Arity: Relation, Description: "contained in list or string", match: includes})
	register(&Operator{Name: "$excludes", Arity: Relation, Description: "not contained in list or string", match: func(v, arg interface{}) bool {
		return !includes(v, arg)
	}})

	// Set relations
	register(&Operator{Name: "$intersects", Arity: Relation, Description: "shares an element", prepare: list, match: sets(func(v, arg []interface{}) bool {
		for _, e := range v {
			if contains(arg, e) {
				return true
			}
		}
		return false
	})})
	register(&Operator{Name: "$disjoint", Arity: Relation, Description: "shares no element", prepare: list, match: sets(func(v, arg []interface{}) bool {
		for _, e := range v {
			if contains(arg, e) {
				return false
			}
		}
		return true
	})})
	register(&Operator{Name: "$subset", Arity: Relation, Description: "every element is in the argument", prepare: list, match: sets(subset)})
	register(&Operator{Name: "$superset", Arity: Relation, Description: "contains every element of the argument", prepare: list, match: sets(func(v, arg []interface{}) bool {
		return subset(arg, v)
	})})
	register(&Operator{Name: "$symmetric", Arity: Relation, Description: "same elements in any order", prepare: list, match: sets(func(v, arg []interface{}) bool {
		return len(v) == len(arg) && subset(v, arg)
	})})

	// Strings
	register(&Operator{Name: "$startsWith", Arity: Relation, Description: "string prefix", prepare: text, match: func(v, arg interface{}) bool {
		s, ok := v.(string)
		return ok && strings.HasPrefix(s, arg.(string))
	}})
	register(&Operator{Name: "$endsWith", Arity: Relation, Description: "string suffix", prepare: text, match: func(v, arg interface{}) bool {
		s, ok := v.(string)
		return ok && strings.HasSuffix(s, arg.(string))
	}})
	register(&Operator{Name: "$length", Arity: Relation, Description: "string or array length", match: func(v, arg interface{}) bool {
		switch val := v.(type) {
		case string:
			return joqular.LooseEqual(int64(utf8.RuneCountInString(val)), arg)
		case []interface{}:
			return joqular.LooseEqual(int64(len(val)), arg)
		}
		return false
	}})
	register(&Operator{Name: "$matches", Arity: Relation, Description: "regular expression match", prepare: pattern, match: func(v, arg interface{}) bool {
		s, ok := v.(string)
		if !ok {
			if _, isNum := joqular.ToFloat(v); !isNum {
				return false
			}
			s, _ = joqular.Stringify(v)
		}
		return arg.(*regexp.Regexp).MatchString(s)
	}})
	register(&Operator{Name: "$echoes", Arity: Relation, Description: "sounds like (Soundex)", prepare: text, match: func(v, arg interface{}) bool {
		s, ok := v.(string)
		if !ok {
			if _, isNum := joqular.ToFloat(v); !isNum {
				return false
			}
			s, _ = joqular.Stringify(v)
		}
		return Soundex(s) == Soundex(arg.(string))
	}})

	// Types and shapes
	register(&Operator{Name: "$type", Arity: Relation, Description: "type name", match: func(v, arg interface{}) bool {
		name, ok := arg.(string)
		return ok && joqular.TypeName(v) == name
	}})
	register(&Operator{Name: "$isOdd", Description: "odd integer", match: integral(func(f float64) bool { return math.Abs(math.Mod(f, 2)) == 1 })})
	register(&Operator{Name: "$isEven", Description: "even integer", match: integral(func(f float64) bool { return math.Mod(f, 2) == 0 })})
	register(&Operator{Name: "$isPositive", Description: "greater than zero", match: numeric(func(f float64) bool { return f > 0 })})
	register(&Operator{Name: "$isNegative", Description: "less than zero", match: numeric(func(f float64) bool { return f < 0 })})
	register(&Operator{Name: "$isInteger", Description: "whole number", match: integral(func(float64) bool { return true })})
	register(&Operator{Name: "$isFloat", Description: "number with a fractional part", match: numeric(func(f float64) bool {
		return !math.IsInf(f, 0) && !math.IsNaN(f) && f != math.Trunc(f)
	})})
	register(&Operator{Name: "$isNaN", Description: "not a number", match: numeric(math.IsNaN)})
	register(&Operator{Name: "$isTruthy", Description: "truthy", match: func(v, _ interface{}) bool { return truthy(v) }})
	register(&Operator{Name: "$isFalsy", Description: "falsy", match: func(v, _ interface{}) bool { return !truthy(v) }})
	register(&Operator{Name: "$isNull", Description: "null", match: func(v, _ interface{}) bool { return v == nil }})
	register(&Operator{Name: "$isUndefined", Description: "property not present", match: func(v, _ interface{}) bool { return joqular.IsUndefined(v) }})
	register(&Operator{Name: "$isDefined", Description: "property present", match: func(v, _ interface{}) bool { return !joqular.IsUndefined(v) }})
	register(&Operator{Name: "$isPrimitive", Description: "boolean, number or string", match: func(v, _ interface{}) bool {
		switch v.(type) {
		case bool, string, int64, float64:
			return true
		}
		return false
	}})
	register(&Operator{Name: "$isArray", Description: "array", match: func(v, _ interface{}) bool {
		_, ok := v.([]interface{})
		return ok
	}})

	// Formats
	register(&Operator{Name: "$isCreditCard", Description: "card number passing the Luhn check", match: format(isCreditCard)})
	register(&Operator{Name: "$isEmail", Description: "email address", match: format(isEmail)})
	register(&Operator{Name: "$isURL", Description: "http, https or ftp URL", match: format(urlPattern.MatchString)})
	register(&Operator{Name: "$isUUID", Description: "UUID", match: format(uuidPattern.MatchString)})
	register(&Operator{Name: "$isIPAddress", Description: "dotted IPv4 address", match: format(ipPattern.MatchString)})
	register(&Operator{Name: "$isSSN", Description: "US social security number", match: format(ssnPattern.MatchString)})
	register(&Operator{Name: "$isISBN", Description: "ISBN-10 or ISBN-13", match: format(isISBN)})
	register(&Operator{Name: "$isZIPCode", Description: "US ZIP or ZIP+4", match: format(zipPattern.MatchString)})

	// Arithmetic verification: value op arg[0] == arg[1]
	register(&Operator{Name: "$add", Arity: Relation, Description: "value + a == b", prepare: numberPair, match: arithmetic(func(v, a float64) float64 { return v + a })})
	register(&Operator{Name: "$subtract", Arity: Relation, Description: "value - a == b", prepare: numberPair, match: arithmetic(func(v, a float64) float64 { return v - a })})
	register(&Operator{Name: "$multiply", Arity: Relation, Description: "value * a == b", prepare: numberPair, match: arithmetic(func(v, a float64) float64 { return v * a })})
	register(&Operator{Name: "$divide", Arity: Relation, Description: "value / a == b", prepare: numberPair, match: arithmetic(func(v, a float64) float64 { return v / a })})
	register(&Operator{Name: "$mod", Arity: Relation, Description: "value % a == b", prepare: numberPair, match: arithmetic(math.Mod)})
	register(&Operator{Name: "$pow", Arity: Relation, Description: "value ** a == b", prepare: numberPair, match: arithmetic(math.Pow)})
}

func relational(accept func(int) bool) MatchFunc {
	return func(v, arg interface{}) bool {
		c, ok := joqular.Compare(v, arg)
		return ok && accept(c)
	}
}

func numeric(accept func(float64) bool) MatchFunc {
	return func(v, _ interface{}) bool {
		f, ok := joqular.ToFloat(v)
		return ok && accept(f)
	}
}

func integral(accept func(float64) bool) MatchFunc {
	return numeric(func(f float64) bool {
		return !math.IsInf(f, 0) && f == math.Trunc(f) && accept(f)
	})
}

func sets(accept func(v, arg []interface{}) bool) MatchFunc {
	return func(v, arg interface{}) bool {
		arr, ok := v.([]interface{})
		return ok && accept(arr, arg.([]interface{}))
	}
}

func arithmetic(op func(v, a float64) float64) MatchFunc {
	return func(v, arg interface{}) bool {
		f, ok := joqular.ToFloat(v)
		if !ok {
			return false
		}
		ab := arg.([2]float64)
		return op(f, ab[0]) == ab[1]
	}
}

func format(accept func(string) bool) MatchFunc {
	return func(v, _ interface{}) bool {
		s, ok := v.(string)
		return ok && accept(s)
	}
}

func contains(list []interface{}, v interface{}) bool {
	for _, e := range list {
		if joqular.StrictEqual(e, v) {
			return true
		}
	}
	return false
}

func subset(v, of []interface{}) bool {
	for _, e := range v {
		if !contains(of, e) {
			return false
		}
	}
	return true
}

func includes(v, arg interface{}) bool {
	switch a := arg.(type) {
	case []interface{}:
		return contains(a, v)
	case string:
		s, ok := joqular.Stringify(v)
		return ok && strings.Contains(a, s)
	}
	return false
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int64:
		return val != 0
	case float64:
		return val != 0 && !math.IsNaN(val)
	}
	return !joqular.IsUndefined(v)
}

// Argument preparation

func list(arg interface{}) (interface{}, error) {
	l, ok := arg.([]interface{})
	if !ok {
		return nil, fmt.Errorf("argument must be an array, got %T", arg)
	}
	return l, nil
}

func pair(arg interface{}) (interface{}, error) {
	l, ok := arg.([]interface{})
	if !ok || len(l) != 2 {
		return nil, fmt.Errorf("argument must be a two element array, got %v", arg)
	}
	return l, nil
}

func numberPair(arg interface{}) (interface{}, error) {
	l, err := pair(arg)
	if err != nil {
		return nil, err
	}
	var out [2]float64
	for i, e := range l.([]interface{}) {
		f, ok := joqular.ToFloat(e)
		if !ok {
			return nil, fmt.Errorf("argument %d must be a number, got %T", i, e)
		}
		out[i] = f
	}
	return out, nil
}

func text(arg interface{}) (interface{}, error) {
	s, ok := joqular.Stringify(arg)
	if !ok {
		return nil, fmt.Errorf("argument must be a string or number, got %T", arg)
	}
	if _, isBool := arg.(bool); isBool {
		return nil, fmt.Errorf("argument must be a string or number, got bool")
	}
	return s, nil
}

func pattern(arg interface{}) (interface{}, error) {
	switch p := arg.(type) {
	case *regexp.Regexp:
		return p, nil
	case string:
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		return re, nil
	}
	return nil, fmt.Errorf("argument must be a regular expression, got %T", arg)
}

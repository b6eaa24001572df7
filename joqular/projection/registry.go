package projection

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/operators"
)

// Reserved step names
const (
	LiftName    = "$lift"
	ExtractName = "$extract"
	LiteralName = "$literal"
	IDsName     = "$ids"
)

// TransformFunc is a named transform. arg is the value written next to the
// name in the pattern.
type TransformFunc func(v, arg interface{}) (interface{}, bool)

// Registry resolves step names: $lift, $extract, the named transforms and
// every catalog operator.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]TransformFunc
}

// NewRegistry returns a registry holding the built-in transforms.
func NewRegistry() *Registry {
	r := &Registry{transforms: make(map[string]TransformFunc)}
	for name, fn := range builtins {
		r.transforms[name] = fn
	}
	return r
}

// DefaultRegistry is used when no registry is given.
var DefaultRegistry = NewRegistry()

var builtins = map[string]TransformFunc{
	"$value": func(v, _ interface{}) (interface{}, bool) {
		if joqular.IsUndefined(v) {
			return nil, false
		}
		return v, true
	},
	"$default": func(v, arg interface{}) (interface{}, bool) {
		if joqular.IsUndefined(v) {
			return arg, true
		}
		return v, true
	},
	// Casers are stateful, so each call gets its own.
	"$upper": stringTransform(func(s string) string { return cases.Upper(language.Und).String(s) }),
	"$lower": stringTransform(func(s string) string { return cases.Lower(language.Und).String(s) }),
	"$title": stringTransform(func(s string) string { return cases.Title(language.Und).String(s) }),
	"$nfc":   stringTransform(norm.NFC.String),
	"$trim":  stringTransform(strings.TrimSpace),
	"$string": func(v, _ interface{}) (interface{}, bool) {
		if v == nil {
			return "null", true
		}
		return joqular.Stringify(v)
	},
	"$length": func(v, _ interface{}) (interface{}, bool) {
		switch val := v.(type) {
		case string:
			return int64(utf8.RuneCountInString(val)), true
		case []interface{}:
			return int64(len(val)), true
		case joqular.Object:
			return int64(len(val)), true
		}
		return nil, false
	},
	"$keys": func(v, _ interface{}) (interface{}, bool) {
		obj, ok := v.(joqular.Object)
		if !ok {
			return nil, false
		}
		keys := obj.Keys()
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, true
	},
}

func stringTransform(fn func(string) string) TransformFunc {
	return func(v, _ interface{}) (interface{}, bool) {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		return fn(s), true
	}
}

// Register adds a named transform. Names start with "$" and may not shadow
// a reserved name, an operator or an existing transform.
func (r *Registry) Register(name string, fn TransformFunc) error {
	if !strings.HasPrefix(name, "$") || len(name) < 2 {
		return fmt.Errorf("transform name %q must start with $", name)
	}
	if fn == nil {
		return fmt.Errorf("transform %s: nil function", name)
	}
	switch name {
	case LiftName, ExtractName, LiteralName, IDsName:
		return fmt.Errorf("transform %s: name is reserved", name)
	}
	if operators.IsOperator(name) || operators.IsCombinator(name) {
		return fmt.Errorf("transform %s: name is an operator", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transforms[name]; exists {
		return fmt.Errorf("transform %s already registered", name)
	}
	r.transforms[name] = fn
	return nil
}

// Names returns every name the registry resolves, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.transforms)+2)
	for name := range r.transforms {
		names = append(names, name)
	}
	r.mu.RUnlock()

	names = append(names, LiftName, ExtractName)
	names = append(names, operators.Names()...)
	sort.Strings(names)
	return names
}

// Step resolves name with its argument into a chain step.
func (r *Registry) Step(name string, arg interface{}) (Step, error) {
	if r == nil {
		r = DefaultRegistry
	}
	switch name {
	case LiftName:
		return liftStep(arg)
	case ExtractName:
		return extractStep(arg)
	}

	r.mu.RLock()
	fn, ok := r.transforms[name]
	r.mu.RUnlock()
	if ok {
		return Step{Name: name, Arg: arg, run: func(v interface{}, _ *scope) (interface{}, bool) {
			return fn(v, arg)
		}}, nil
	}

	test, err := operatorTest(name, arg)
	if err != nil {
		return Step{}, err
	}
	return Step{Name: name, Arg: arg, run: testStep(test)}, nil
}

// operatorTest builds a test from a catalog operator or a combinator whose
// operands are operator maps.
func operatorTest(name string, arg interface{}) (operators.Test, error) {
	switch name {
	case operators.AndName, operators.OrName:
		list, ok := arg.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%s expects a list of operator maps, got %T", name, arg)
		}
		children := make([]operators.Test, 0, len(list))
		for i, e := range list {
			child, err := operatorMap(e)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
			}
			children = append(children, child)
		}
		if name == operators.AndName {
			return operators.And(children), nil
		}
		return operators.Or(children), nil
	case operators.NotName:
		child, err := operatorMap(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return operators.Not{Test: child}, nil
	}
	if _, ok := operators.Lookup(name); !ok {
		return nil, fmt.Errorf("%w: %s", joqular.ErrUnknownOperator, name)
	}
	return operators.New(name, arg)
}

func operatorMap(v interface{}) (operators.Test, error) {
	m, ok := asMap(v)
	if !ok || len(m) == 0 {
		return nil, fmt.Errorf("expected an operator map, got %v", v)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tests := make(operators.And, 0, len(keys))
	for _, k := range keys {
		t, err := operatorTest(k, m[k])
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	if len(tests) == 1 {
		return tests[0], nil
	}
	return tests, nil
}

// liftStep writes the value onto the root of the output under the key
// given as argument, or the local key when the argument is true or null,
// and removes it from its own level.
func liftStep(arg interface{}) (Step, error) {
	var target string
	switch a := arg.(type) {
	case nil, bool:
		if a == false {
			return Step{}, fmt.Errorf("%s: expected a key or true", LiftName)
		}
	case string:
		target = a
	default:
		return Step{}, fmt.Errorf("%s: expected a key or true, got %T", LiftName, arg)
	}
	return Step{Name: LiftName, Arg: arg, run: func(v interface{}, s *scope) (interface{}, bool) {
		if joqular.IsUndefined(v) {
			return nil, false
		}
		key := target
		if key == "" {
			key = s.key
		}
		s.root[key] = v
		s.lifted[key] = true
		return nil, false
	}}, nil
}

// extractStep yields the first match of a regular expression in a string.
func extractStep(arg interface{}) (Step, error) {
	var re *regexp.Regexp
	switch a := arg.(type) {
	case *regexp.Regexp:
		re = a
	case string:
		var err error
		if re, err = regexp.Compile(a); err != nil {
			return Step{}, fmt.Errorf("%s: %w", ExtractName, err)
		}
	default:
		return Step{}, fmt.Errorf("%s: expected a regular expression, got %T", ExtractName, arg)
	}
	return Step{Name: ExtractName, Arg: re.String(), run: func(v interface{}, _ *scope) (interface{}, bool) {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		loc := re.FindStringIndex(s)
		if loc == nil {
			return nil, false
		}
		return s[loc[0]:loc[1]], true
	}}, nil
}

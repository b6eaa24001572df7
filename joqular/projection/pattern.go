// Package projection reshapes query results. A pattern mirrors the shape of
// the wanted output and is walked in lockstep with the value being
// projected: literals keep matching values, step chains filter and
// transform, and objects recurse. A $lift step moves a value from its
// nesting level onto the root of the output.
//
// Patterns have a text form in which every step is named, so a pattern can
// be stored and later rebuilt from the registry without evaluating data as
// code.
package projection

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/operators"
)

// Pattern is a compiled projection pattern. The set of implementations is
// closed: Literal, *Object, Chain, Func and IDs.
type Pattern interface {
	isPattern()
}

// Literal keeps the value only when it equals Value.
type Literal struct {
	Value interface{}
}

// Field is one key of an object pattern.
type Field struct {
	Key     string
	Pattern Pattern
}

// Object recurses into an object value, producing one output key per field.
// A non-empty Filter must pass before the fields are projected.
type Object struct {
	Filter Chain
	Fields []Field
}

// Chain applies its steps in order, feeding each result to the next and
// stopping at the first that does not match.
type Chain []Step

// Func is an unnamed Go transform. Patterns that contain one can not be
// written as text.
type Func func(v interface{}) (interface{}, bool)

type idsPattern struct{}

// IDs projects a tuple to its identifiers in alias order.
var IDs Pattern = idsPattern{}

func (Literal) isPattern()    {}
func (*Object) isPattern()    {}
func (Chain) isPattern()      {}
func (Func) isPattern()       {}
func (idsPattern) isPattern() {}

// scope is what a step sees of the walk besides the value.
type scope struct {
	root   joqular.Object
	key    string
	lifted map[string]bool
	all    bool
}

// StepFunc evaluates one step.
type StepFunc func(v interface{}, s *scope) (interface{}, bool)

// Step is one named entry of a chain. Name and Arg are its text form; an
// empty Name marks an unnamed Go function.
type Step struct {
	Name string
	Arg  interface{}
	run  StepFunc
}

// Fields builds an object pattern with fields in the given order.
func Fields(fields ...Field) *Object {
	return &Object{Fields: fields}
}

// Pick builds one field of an object pattern.
func Pick(key string, p Pattern) Field {
	return Field{Key: key, Pattern: p}
}

// Steps builds a chain from a registry. Arguments alternate name and
// argument: Steps(reg, "$eq", "joe", "$upper", true).
func Steps(reg *Registry, nameArgs ...interface{}) (Chain, error) {
	if len(nameArgs)%2 != 0 {
		return nil, fmt.Errorf("steps: odd number of arguments")
	}
	chain := make(Chain, 0, len(nameArgs)/2)
	for i := 0; i < len(nameArgs); i += 2 {
		name, ok := nameArgs[i].(string)
		if !ok {
			return nil, fmt.Errorf("steps: step name must be a string, got %T", nameArgs[i])
		}
		step, err := reg.Step(name, nameArgs[i+1])
		if err != nil {
			return nil, err
		}
		chain = append(chain, step)
	}
	return chain, nil
}

// Compile converts a Go value into a pattern. Maps become object patterns,
// with "$" keys resolved through reg as steps; Go funcs become Func or
// unnamed steps, and a *regexp.Regexp extracts its first match. Go maps are
// unordered, so fields and steps are taken in sorted key order. A nil value
// compiles to the nil pattern, which projects a tuple unchanged.
func Compile(v interface{}, reg *Registry) (Pattern, error) {
	if v == nil {
		return nil, nil
	}
	return compile(v, reg)
}

func compile(v interface{}, reg *Registry) (Pattern, error) {
	switch val := v.(type) {
	case Pattern:
		return val, nil
	case func(interface{}) (interface{}, bool):
		return Func(val), nil
	case *regexp.Regexp:
		step, err := reg.Step(ExtractName, val)
		if err != nil {
			return nil, err
		}
		return Chain{step}, nil
	case Step:
		return Chain{val}, nil
	}

	m, ok := asMap(v)
	if !ok {
		n, err := joqular.Normalize(v)
		if err != nil {
			return nil, err
		}
		return Literal{Value: n}, nil
	}
	if lit, ok := m[LiteralName]; ok && len(m) == 1 {
		n, err := joqular.Normalize(lit)
		if err != nil {
			return nil, err
		}
		return Literal{Value: n}, nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj := &Object{}
	for _, k := range keys {
		if strings.HasPrefix(k, "$") {
			step, err := compileStep(k, m[k], reg)
			if err != nil {
				return nil, err
			}
			obj.Filter = append(obj.Filter, step)
			continue
		}
		p, err := compile(m[k], reg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		obj.Fields = append(obj.Fields, Field{Key: k, Pattern: p})
	}
	if len(obj.Fields) == 0 && len(obj.Filter) > 0 {
		return obj.Filter, nil
	}
	return obj, nil
}

func compileStep(name string, arg interface{}, reg *Registry) (Step, error) {
	switch fn := arg.(type) {
	case func(interface{}) (interface{}, bool):
		return Step{run: func(v interface{}, _ *scope) (interface{}, bool) { return fn(v) }}, nil
	case operators.Test:
		return Step{run: testStep(fn)}, nil
	}
	return reg.Step(name, arg)
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case joqular.Object:
		return m, true
	}
	return nil, false
}

func testStep(t operators.Test) StepFunc {
	return func(v interface{}, _ *scope) (interface{}, bool) {
		return t.Eval(v)
	}
}

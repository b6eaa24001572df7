package condition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/operators"
)

// Where assembles a tree from clauses.
func Where(clauses ...Clause) Tree {
	return Tree(clauses)
}

// On builds the clause for one alias.
func On(alias string, props ...Prop) Clause {
	return Clause{Alias: alias, Props: props}
}

// Field builds a property test. v may be:
//
//	nil                                   matches a stored null
//	operators.Test                        operator test
//	Tree or Clause                        join onto other aliases
//	func(interface{}) (interface{}, bool) unary test
//	func(left, right interface{}) bool    symmetric join test
//	map[string]interface{}                operator map ($-keys) or join tree
//	"$name" of a catalog operator         bare operator, reversed at join sites
//	anything else                         literal equality
//
// Conversion errors are reported by Validate.
func Field(property string, v interface{}) Prop {
	test, err := compile(v)
	return Prop{Property: property, Test: test, err: err}
}

func compile(v interface{}) (Test, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Test:
		return val, nil
	case operators.Test:
		return Match{Test: val}, nil
	case Tree:
		return Join{Tree: val}, nil
	case Clause:
		return Join{Tree: Tree{val}}, nil
	case func(interface{}) (interface{}, bool):
		return Match{Test: operators.Func(val)}, nil
	case func(l, r interface{}) bool:
		return Match{Test: operators.JoinFunc(val)}, nil
	case string:
		if strings.HasPrefix(val, "$") {
			if _, ok := operators.Lookup(val); ok {
				ref, err := operators.Reference(val)
				if err != nil {
					return nil, err
				}
				return Match{Test: ref}, nil
			}
		}
		return Literal{Value: val}, nil
	}

	n, err := joqular.Normalize(v)
	if err != nil {
		return nil, err
	}
	if obj, ok := n.(joqular.Object); ok {
		if isOperatorMap(obj) {
			test, err := operatorMap(obj)
			if err != nil {
				return nil, err
			}
			return Match{Test: test}, nil
		}
		tree, err := FromMap(obj)
		if err != nil {
			return nil, err
		}
		return Join{Tree: tree}, nil
	}
	return Literal{Value: n}, nil
}

// FromMap converts nested maps into a tree. Go maps are unordered, so aliases
// and properties are taken in sorted key order.
func FromMap(m map[string]interface{}) (Tree, error) {
	aliases := sortedKeys(m)
	tree := make(Tree, 0, len(aliases))
	for _, alias := range aliases {
		props, err := asMap(m[alias])
		if err != nil {
			return nil, fmt.Errorf("alias %s: %w", alias, err)
		}
		clause := Clause{Alias: alias}
		for _, property := range sortedKeys(props) {
			test, err := compile(props[property])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", alias, property, err)
			}
			clause.Props = append(clause.Props, Prop{Property: property, Test: test})
		}
		tree = append(tree, clause)
	}
	return tree, nil
}

func asMap(v interface{}) (map[string]interface{}, error) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, nil
	case joqular.Object:
		return m, nil
	}
	return nil, fmt.Errorf("expected property map, got %T", v)
}

func isOperatorMap(m map[string]interface{}) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// operatorMap compiles {"$gte": 21, "$lt": 65}. Several keys are combined
// with $and in key order.
func operatorMap(m map[string]interface{}) (operators.Test, error) {
	keys := sortedKeys(m)
	tests := make(operators.And, 0, len(keys))
	for _, name := range keys {
		t, err := operatorEntry(name, m[name])
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

func operatorEntry(name string, arg interface{}) (operators.Test, error) {
	switch name {
	case operators.AndName, operators.OrName:
		list, ok := arg.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%s expects a list of operator maps, got %T", name, arg)
		}
		children := make([]operators.Test, 0, len(list))
		for i, e := range list {
			child, err := operatorValue(e)
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
		child, err := operatorValue(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return operators.Not{Test: child}, nil
	}
	return operators.New(name, arg)
}

// operatorValue compiles a combinator operand: an operator map or a bare
// operator name.
func operatorValue(v interface{}) (operators.Test, error) {
	switch val := v.(type) {
	case operators.Test:
		return val, nil
	case string:
		return operators.Reference(val)
	}
	m, err := asMap(v)
	if err != nil || !isOperatorMap(m) {
		return nil, fmt.Errorf("expected an operator map, got %v", v)
	}
	return operatorMap(m)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

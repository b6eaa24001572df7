package condition

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/operators"
)

// Parse reads a condition tree written as JSON or YAML. Unlike FromMap it
// keeps aliases and properties in the order they are written.
//
//	{"p1": {"name": {"p2": {"name": "$eq"}}, "age": {"$gte": 21}}}
//
// Mappings whose keys all start with "$" are operator tests, other mappings
// are joins, and a string naming a catalog operator is a bare operator.
func Parse(text string) (Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("parse condition: %w", err)
	}
	if doc.Kind == 0 {
		return Tree{}, nil
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return Tree{}, nil
		}
		root = root.Content[0]
	}
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return Tree{}, nil
	}
	tree, err := parseTree(root)
	if err != nil {
		return nil, fmt.Errorf("parse condition: %w", err)
	}
	return tree, nil
}

func parseTree(n *yaml.Node) (Tree, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of aliases", n.Line)
	}
	tree := make(Tree, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		alias, props := n.Content[i].Value, n.Content[i+1]
		if props.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: alias %s: expected a mapping of properties", props.Line, alias)
		}
		clause := Clause{Alias: alias}
		for j := 0; j+1 < len(props.Content); j += 2 {
			property := props.Content[j].Value
			test, err := parseTest(props.Content[j+1])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", alias, property, err)
			}
			clause.Props = append(clause.Props, Prop{Property: property, Test: test})
		}
		tree = append(tree, clause)
	}
	return tree, nil
}

func parseTest(n *yaml.Node) (Test, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return parseTest(n.Alias)
	case yaml.MappingNode:
		if isOperatorNode(n) {
			t, err := parseOperatorMap(n)
			if err != nil {
				return nil, err
			}
			return Match{Test: t}, nil
		}
		tree, err := parseTree(n)
		if err != nil {
			return nil, err
		}
		return Join{Tree: tree}, nil
	}

	v, err := decodeValue(n)
	if err != nil {
		return nil, err
	}
	return compile(v)
}

func isOperatorNode(n *yaml.Node) bool {
	if len(n.Content) == 0 {
		return false
	}
	for i := 0; i < len(n.Content); i += 2 {
		if !strings.HasPrefix(n.Content[i].Value, "$") {
			return false
		}
	}
	return true
}

// parseOperatorMap keeps the written key order when combining several
// operators with $and.
func parseOperatorMap(n *yaml.Node) (operators.Test, error) {
	var tests operators.And
	for i := 0; i+1 < len(n.Content); i += 2 {
		name, argNode := n.Content[i].Value, n.Content[i+1]
		var (
			t   operators.Test
			err error
		)
		switch name {
		case operators.AndName, operators.OrName:
			t, err = parseCombinator(name, argNode)
		case operators.NotName:
			var child operators.Test
			if child, err = parseOperand(argNode); err == nil {
				t = operators.Not{Test: child}
			}
		default:
			var arg interface{}
			if arg, err = decodeValue(argNode); err == nil {
				t, err = operators.New(name, arg)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", argNode.Line, err)
		}
		tests = append(tests, t)
	}
	if len(tests) == 1 {
		return tests[0], nil
	}
	return tests, nil
}

func parseCombinator(name string, n *yaml.Node) (operators.Test, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s expects a list of operator maps", name)
	}
	children := make([]operators.Test, 0, len(n.Content))
	for _, c := range n.Content {
		child, err := parseOperand(c)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if name == operators.AndName {
		return operators.And(children), nil
	}
	return operators.Or(children), nil
}

func parseOperand(n *yaml.Node) (operators.Test, error) {
	switch {
	case n.Kind == yaml.MappingNode && isOperatorNode(n):
		return parseOperatorMap(n)
	case n.Kind == yaml.ScalarNode && strings.HasPrefix(n.Value, "$"):
		return operators.Reference(n.Value)
	}
	return nil, fmt.Errorf("expected an operator map or operator name")
}

func decodeValue(n *yaml.Node) (interface{}, error) {
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return joqular.Normalize(v)
}

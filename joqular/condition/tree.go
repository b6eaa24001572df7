// Package condition models condition trees: per-alias property tests that
// may nest into joins on other aliases.
package condition

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/operators"
)

// Tree maps aliases to their property tests, in declaration order.
type Tree []Clause

// Clause holds the property tests of one alias.
type Clause struct {
	Alias string
	Props []Prop
}

// Prop pairs a property with the test applied to its value.
type Prop struct {
	Property string
	Test     Test
	err      error
}

// Kind tags the variants of Test.
type Kind uint8

const (
	KindNull Kind = iota
	KindLiteral
	KindMatch
	KindJoin
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindLiteral:
		return "literal"
	case KindMatch:
		return "match"
	case KindJoin:
		return "join"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Test is the value side of a property test. The set of implementations is
// closed: Null, Literal, Match and Join.
type Test interface {
	Kind() Kind
	String() string
	isCondition()
}

// Null matches a stored null.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) String() string { return "null" }
func (Null) isCondition() {}

// Literal matches values equal to Value.
type Literal struct {
	Value interface{}
}

func (Literal) Kind() Kind { return KindLiteral }

func (l Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", l.Value)
}

func (Literal) isCondition() {}

// Primitive reports whether the literal is a scalar.
func (l Literal) Primitive() bool {
	switch l.Value.(type) {
	case []interface{}, joqular.Object:
		return false
	}
	return true
}

// Match applies an operator test.
type Match struct {
	Test operators.Test
}

func (Match) Kind() Kind { return KindMatch }
func (m Match) String() string { return m.Test.String() }
func (Match) isCondition() {}

// Join links the property value to the properties of other aliases.
type Join struct {
	Tree Tree
}

func (Join) Kind() Kind { return KindJoin }
func (j Join) String() string { return j.Tree.String() }
func (Join) isCondition() {}

// String renders the tree in a compact, deterministic form.
func (t Tree) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, c := range t {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.String())
	}
	b.WriteByte('}')
	return b.String()
}

func (c Clause) String() string {
	var b strings.Builder
	b.WriteString(c.Alias)
	b.WriteString(": {")
	for i, p := range c.Props {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Property)
		b.WriteString(": ")
		if p.Test == nil {
			b.WriteString("<invalid>")
		} else {
			b.WriteString(p.Test.String())
		}
	}
	b.WriteByte('}')
	return b.String()
}

// Lookup returns the clause for alias.
func (t Tree) Lookup(alias string) (Clause, bool) {
	for _, c := range t {
		if c.Alias == alias {
			return c, true
		}
	}
	return Clause{}, false
}

// Empty reports whether the tree has no clauses.
func (t Tree) Empty() bool {
	return len(t) == 0
}

// Aliases returns every alias in the tree: top-level aliases in declaration
// order followed by join targets in the order they are first reached.
func Aliases(t Tree) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(alias string) {
		if !seen[alias] {
			seen[alias] = true
			out = append(out, alias)
		}
	}
	for _, c := range t {
		add(c.Alias)
	}
	var walk func(Tree)
	walk = func(t Tree) {
		for _, c := range t {
			for _, p := range c.Props {
				if j, ok := p.Test.(Join); ok {
					for _, jc := range j.Tree {
						add(jc.Alias)
					}
					walk(j.Tree)
				}
			}
		}
	}
	walk(t)
	return out
}

// Validate checks a tree before execution. Aliases must be named and unique
// per level, every property must have a test, and binary tests may only
// appear inside joins.
func Validate(t Tree) error {
	return validate(t, false)
}

func validate(t Tree, inJoin bool) error {
	seen := make(map[string]bool, len(t))
	for _, c := range t {
		if c.Alias == "" {
			return fmt.Errorf("clause without alias")
		}
		if seen[c.Alias] {
			return fmt.Errorf("alias %s appears twice", c.Alias)
		}
		seen[c.Alias] = true

		for _, p := range c.Props {
			if p.err != nil {
				return fmt.Errorf("%s.%s: %w", c.Alias, p.Property, p.err)
			}
			if p.Test == nil {
				return fmt.Errorf("%s.%s: missing test", c.Alias, p.Property)
			}
			switch test := p.Test.(type) {
			case Match:
				if test.Test == nil {
					return fmt.Errorf("%s.%s: missing operator test", c.Alias, p.Property)
				}
				if !inJoin && test.Test.Binary() {
					return fmt.Errorf("%s.%s: %s compares two values and can only be used inside a join",
						c.Alias, p.Property, test.Test)
				}
			case Join:
				if len(test.Tree) == 0 {
					return fmt.Errorf("%s.%s: empty join", c.Alias, p.Property)
				}
				if err := validate(test.Tree, true); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Package operators holds the fixed catalog of named predicate operators and
// the compiled tests built from them.
//
// An operator checks a subject value against a captured argument. Tests bind
// operators to arguments and expose two evaluation modes: Eval for a single
// value and EvalJoin for a (left, right) pair found at a join site.
package operators

import (
	"fmt"
	"sort"

	"github.com/wbrown/janus-joqular/joqular"
)

// Arity says whether an operator takes an argument.
type Arity uint8

const (
	// Predicate operators test the subject alone; any argument is ignored.
	Predicate Arity = iota
	// Relation operators compare the subject with an argument.
	Relation
)

// MatchFunc reports whether value satisfies the operator given the prepared
// argument.
type MatchFunc func(value, arg interface{}) bool

// PrepareFunc validates a raw argument and converts it into the form the
// MatchFunc expects.
type PrepareFunc func(arg interface{}) (interface{}, error)

// Operator is a stateless catalog entry.
type Operator struct {
	Name        string
	Arity       Arity
	Description string
	match       MatchFunc
	prepare     PrepareFunc
}

// Match applies the operator to value with an argument already prepared.
func (op *Operator) Match(value, prepared interface{}) bool {
	if joqular.IsUndefined(value) && op.Name != "$isUndefined" && op.Name != "$isDefined" && op.Name != "$type" {
		return false
	}
	return op.match(value, prepared)
}

// Prepare validates and converts a raw argument.
func (op *Operator) Prepare(arg interface{}) (interface{}, error) {
	n, err := joqular.Normalize(arg)
	if err != nil {
		// compiled regular expressions and the like pass through unchanged
		n = arg
	}
	if op.prepare == nil {
		return n, nil
	}
	p, err := op.prepare(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.Name, err)
	}
	return p, nil
}

func (op *Operator) String() string {
	return op.Name
}

// catalog is built once at package load and never modified.
var catalog = make(map[string]*Operator)

func register(op *Operator) {
	if _, exists := catalog[op.Name]; exists {
		panic(fmt.Sprintf("operator %s registered twice", op.Name))
	}
	catalog[op.Name] = op
}

// Lookup returns the catalog operator with the given name.
func Lookup(name string) (*Operator, bool) {
	op, ok := catalog[name]
	return op, ok
}

// MustLookup is Lookup that panics on unknown names. Intended for
// package-level variables and tests.
func MustLookup(name string) *Operator {
	op, ok := catalog[name]
	if !ok {
		panic(fmt.Sprintf("unknown operator %s", name))
	}
	return op
}

// IsOperator reports whether name is a catalog operator or combinator.
func IsOperator(name string) bool {
	if _, ok := catalog[name]; ok {
		return true
	}
	return IsCombinator(name)
}

// IsCombinator reports whether name is $and, $or or $not.
func IsCombinator(name string) bool {
	return name == AndName || name == OrName || name == NotName
}

// Names returns all operator names, sorted.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package operators

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-joqular/joqular"
)

// Combinator names
const (
	AndName = "$and"
	OrName  = "$or"
	NotName = "$not"
)

// Test is a compiled predicate. The set of implementations is closed.
//
// Eval tests a single value. EvalJoin tests a right-hand value found at a
// join site against the left-hand value that led there. Both return the
// matched value and true, or false when the value does not match.
type Test interface {
	Eval(v interface{}) (interface{}, bool)
	EvalJoin(left, right interface{}) (interface{}, bool)
	// Binary reports whether the test compares two values and therefore
	// only makes sense at a join site.
	Binary() bool
	String() string
	isTest()
}

// Apply binds a catalog operator to a captured argument.
type Apply struct {
	Op       *Operator
	Arg      interface{}
	prepared interface{}
}

// New builds a test from a catalog operator name and its argument.
func New(name string, arg interface{}) (*Apply, error) {
	op, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", joqular.ErrUnknownOperator, name)
	}
	return Bind(op, arg)
}

// Bind binds op to arg.
func Bind(op *Operator, arg interface{}) (*Apply, error) {
	prepared, err := op.Prepare(arg)
	if err != nil {
		return nil, err
	}
	if op.Arity == Predicate {
		arg = nil
	}
	return &Apply{Op: op, Arg: arg, prepared: prepared}, nil
}

// Must is New that panics on error.
func Must(name string, arg interface{}) *Apply {
	t, err := New(name, arg)
	if err != nil {
		panic(err)
	}
	return t
}

func (a *Apply) Eval(v interface{}) (interface{}, bool) {
	if a.Op.Match(v, a.prepared) {
		return v, true
	}
	return nil, false
}

// EvalJoin tests the left value; a bound argument leaves nothing to compare
// the right value with.
func (a *Apply) EvalJoin(left, _ interface{}) (interface{}, bool) {
	return a.Eval(left)
}

func (a *Apply) Binary() bool { return false }

func (a *Apply) String() string {
	if a.Op.Arity == Predicate {
		return a.Op.Name
	}
	return fmt.Sprintf("%s(%v)", a.Op.Name, a.Arg)
}

func (*Apply) isTest() {}

// Ref is a bare operator in join position. The right value is the subject
// and the left value is the argument, so {age: $gte} on the right of a join
// keeps partners whose age is at least the left value.
type Ref struct {
	Op *Operator
}

// Reference returns a Ref for a catalog operator name.
func Reference(name string) (*Ref, error) {
	op, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", joqular.ErrUnknownOperator, name)
	}
	return &Ref{Op: op}, nil
}

// Eval only matches for predicate operators, which need no argument.
func (r *Ref) Eval(v interface{}) (interface{}, bool) {
	if r.Op.Arity == Relation {
		return nil, false
	}
	if r.Op.Match(v, nil) {
		return v, true
	}
	return nil, false
}

func (r *Ref) EvalJoin(left, right interface{}) (interface{}, bool) {
	if r.Op.Arity == Predicate {
		return r.Eval(left)
	}
	prepared, err := r.Op.Prepare(left)
	if err != nil {
		return nil, false
	}
	if r.Op.Match(right, prepared) {
		return right, true
	}
	return nil, false
}

func (r *Ref) Binary() bool { return r.Op.Arity == Relation }

func (r *Ref) String() string { return r.Op.Name }

func (*Ref) isTest() {}

// Func is an anonymous unary test.
type Func func(v interface{}) (interface{}, bool)

func (f Func) Eval(v interface{}) (interface{}, bool) { return f(v) }

func (f Func) EvalJoin(left, _ interface{}) (interface{}, bool) { return f(left) }

func (f Func) Binary() bool { return false }

func (f Func) String() string { return "func" }

func (Func) isTest() {}

// JoinFunc is an anonymous symmetric join test. It receives both sides in
// their natural order.
type JoinFunc func(left, right interface{}) bool

func (f JoinFunc) Eval(interface{}) (interface{}, bool) { return nil, false }

func (f JoinFunc) EvalJoin(left, right interface{}) (interface{}, bool) {
	if f(left, right) {
		return right, true
	}
	return nil, false
}

func (f JoinFunc) Binary() bool { return true }

func (f JoinFunc) String() string { return "join-func" }

func (JoinFunc) isTest() {}

// And passes when every child passes.
type And []Test

func (a And) Eval(v interface{}) (interface{}, bool) {
	for _, t := range a {
		if _, ok := t.Eval(v); !ok {
			return nil, false
		}
	}
	return v, true
}

// EvalJoin evaluates binary children on the pair and unary children on the
// right value.
func (a And) EvalJoin(left, right interface{}) (interface{}, bool) {
	if !a.Binary() {
		return a.Eval(left)
	}
	for _, t := range a {
		if _, ok := evalPair(t, left, right); !ok {
			return nil, false
		}
	}
	return right, true
}

func (a And) Binary() bool { return anyBinary(a) }

func (a And) String() string { return combinatorString(AndName, a) }

func (And) isTest() {}

// Or passes when any child passes.
type Or []Test

func (o Or) Eval(v interface{}) (interface{}, bool) {
	for _, t := range o {
		if _, ok := t.Eval(v); ok {
			return v, true
		}
	}
	return nil, false
}

func (o Or) EvalJoin(left, right interface{}) (interface{}, bool) {
	if !o.Binary() {
		return o.Eval(left)
	}
	for _, t := range o {
		if _, ok := evalPair(t, left, right); ok {
			return right, true
		}
	}
	return nil, false
}

func (o Or) Binary() bool { return anyBinary(o) }

func (o Or) String() string { return combinatorString(OrName, o) }

func (Or) isTest() {}

// Not inverts its child.
type Not struct {
	Test Test
}

func (n Not) Eval(v interface{}) (interface{}, bool) {
	if _, ok := n.Test.Eval(v); ok {
		return nil, false
	}
	return v, true
}

func (n Not) EvalJoin(left, right interface{}) (interface{}, bool) {
	if !n.Binary() {
		return n.Eval(left)
	}
	if _, ok := n.Test.EvalJoin(left, right); ok {
		return nil, false
	}
	return right, true
}

func (n Not) Binary() bool { return n.Test.Binary() }

func (n Not) String() string { return NotName + "(" + n.Test.String() + ")" }

func (Not) isTest() {}

func evalPair(t Test, left, right interface{}) (interface{}, bool) {
	if t.Binary() {
		return t.EvalJoin(left, right)
	}
	return t.Eval(right)
}

func anyBinary(tests []Test) bool {
	for _, t := range tests {
		if t.Binary() {
			return true
		}
	}
	return false
}

func combinatorString(name string, tests []Test) string {
	parts := make([]string, len(tests))
	for i, t := range tests {
		parts[i] = t.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// Serializable reports whether t can be written as named operators only.
func Serializable(t Test) bool {
	switch v := t.(type) {
	case *Apply, *Ref:
		return true
	case And:
		return allSerializable(v)
	case Or:
		return allSerializable(v)
	case Not:
		return Serializable(v.Test)
	}
	return false
}

func allSerializable(tests []Test) bool {
	for _, t := range tests {
		if !Serializable(t) {
			return false
		}
	}
	return true
}

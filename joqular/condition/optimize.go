package condition

import (
	"sort"

	"github.com/wbrown/janus-joqular/joqular"
)

// rank orders property tests by expected scan cost: null and literal tests
// use targeted index ranges, operator tests scan a whole property index and
// joins scan the whole entity.
func rank(t Test) int {
	switch v := t.(type) {
	case Null:
		return 0
	case Literal:
		if v.Primitive() {
			return 1
		}
		return 2
	case Match:
		return 3
	case Join:
		return 4
	}
	return 5
}

// Optimize returns props ordered null first, then primitive literals by
// value, then non-primitive literals, operator tests and joins last. Ties
// keep the property name order. The input is not modified.
func Optimize(props []Prop) []Prop {
	out := make([]Prop, len(props))
	copy(out, props)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i].Test), rank(out[j].Test)
		if ri != rj {
			return ri < rj
		}
		if ri == 1 {
			c, err := joqular.CompareIndexValues(out[i].Test.(Literal).Value, out[j].Test.(Literal).Value)
			if err == nil && c != 0 {
				return c < 0
			}
		}
		return out[i].Property < out[j].Property
	})
	return out
}

// OptimizeTree optimizes every clause, including those inside joins. Alias
// order is left unchanged.
func OptimizeTree(t Tree) Tree {
	out := make(Tree, len(t))
	for i, c := range t {
		props := Optimize(c.Props)
		for j, p := range props {
			if join, ok := p.Test.(Join); ok {
				props[j].Test = Join{Tree: OptimizeTree(join.Tree)}
			}
		}
		out[i] = Clause{Alias: c.Alias, Props: props}
	}
	return out
}

package condition

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/operators"
)

func TestFieldCompilation(t *testing.T) {
	tests := []struct {
		name string
		v    interface{}
		kind Kind
	}{
		{"null", nil, KindNull},
		{"string literal", "joe", KindLiteral},
		{"number literal", 21, KindLiteral},
		{"array literal", []int{1, 2}, KindLiteral},
		{"operator test", operators.Must("$gte", 21), KindMatch},
		{"bare operator", "$eq", KindMatch},
		{"unary func", func(v interface{}) (interface{}, bool) { return v, true }, KindMatch},
		{"join func", func(l, r interface{}) bool { return true }, KindMatch},
		{"operator map", map[string]interface{}{"$gte": 21}, KindMatch},
		{"join map", map[string]interface{}{"p2": map[string]interface{}{"name": "$eq"}}, KindJoin},
		{"join tree", Where(On("p2", Field("name", "$eq"))), KindJoin},
		{"join clause", On("p2", Field("name", "$eq")), KindJoin},
		{"unknown dollar string", "$notAnOperator", KindLiteral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Field("prop", tt.v)
			require.NoError(t, p.err)
			assert.Equal(t, tt.kind, p.Test.Kind())
		})
	}

	lit := Field("age", 21).Test.(Literal)
	assert.Equal(t, int64(21), lit.Value)
}

func TestFieldErrorsSurfaceInValidate(t *testing.T) {
	tree := Where(On("p", Field("age", map[string]interface{}{"$between": 1})))
	err := Validate(tree)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p.age")

	tree = Where(On("p", Field("age", map[string]interface{}{"$bogus": 1})))
	err = Validate(tree)
	assert.True(t, errors.Is(err, joqular.ErrUnknownOperator))
}

func TestFromMap(t *testing.T) {
	tree, err := FromMap(map[string]interface{}{
		"p2": map[string]interface{}{"age": 21},
		"p1": map[string]interface{}{
			"name": map[string]interface{}{
				"p2": map[string]interface{}{"name": "$eq"},
			},
			"age": map[string]interface{}{"$gte": 21, "$lt": 65},
		},
	})
	require.NoError(t, err)
	require.Len(t, tree, 2)

	assert.Equal(t, "p1", tree[0].Alias)
	assert.Equal(t, "p2", tree[1].Alias)
	assert.Equal(t, "age", tree[0].Props[0].Property)

	and, ok := tree[0].Props[0].Test.(Match).Test.(operators.And)
	require.True(t, ok)
	assert.Len(t, and, 2)

	join, ok := tree[0].Props[1].Test.(Join)
	require.True(t, ok)
	assert.Equal(t, "p2", join.Tree[0].Alias)

	_, err = FromMap(map[string]interface{}{"p1": 5})
	assert.Error(t, err)
}

func TestFromMapCombinators(t *testing.T) {
	tree, err := FromMap(map[string]interface{}{
		"p": map[string]interface{}{
			"age": map[string]interface{}{
				"$or": []interface{}{
					map[string]interface{}{"$eq": 20},
					map[string]interface{}{"$gte": 21},
				},
			},
			"name": map[string]interface{}{
				"$not": map[string]interface{}{"$eq": "bill"},
			},
		},
	})
	require.NoError(t, err)

	age := tree[0].Props[0].Test.(Match).Test
	_, ok := age.Eval(int64(21))
	assert.True(t, ok)
	_, ok = age.Eval(int64(19))
	assert.False(t, ok)

	name := tree[0].Props[1].Test.(Match).Test
	_, ok = name.Eval("joe")
	assert.True(t, ok)
	_, ok = name.Eval("bill")
	assert.False(t, ok)
}

func TestParsePreservesOrder(t *testing.T) {
	text := `{"zed": {"name": {"alpha": {"name": "$eq"}}, "age": {"$gte": 21, "$lt": 65}},
  "alpha": {"city": "Seattle"}}`
	tree, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, tree, 2)

	assert.Equal(t, "zed", tree[0].Alias)
	assert.Equal(t, "name", tree[0].Props[0].Property)
	assert.Equal(t, "age", tree[0].Props[1].Property)
	assert.Equal(t, "alpha", tree[1].Alias)

	join := tree[0].Props[0].Test.(Join)
	ref, ok := join.Tree[0].Props[0].Test.(Match).Test.(*operators.Ref)
	require.True(t, ok)
	assert.Equal(t, "$eq", ref.Op.Name)

	and := tree[0].Props[1].Test.(Match).Test.(operators.And)
	assert.Equal(t, "$gte(21)", and[0].String())
	assert.Equal(t, "$lt(65)", and[1].String())

	assert.Equal(t, Literal{Value: "Seattle"}, tree[1].Props[0].Test)
}

func TestParseYAML(t *testing.T) {
	text := `
person:
  age:
    $or:
      - $eq: 20
      - $gte: 21
  spouse: null
  tags: [a, b]
`
	tree, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, tree, 1)

	props := tree[0].Props
	assert.Equal(t, KindMatch, props[0].Test.Kind())
	assert.Equal(t, Null{}, props[1].Test)
	assert.Equal(t, Literal{Value: []interface{}{"a", "b"}}, props[2].Test)
}

func TestParseErrors(t *testing.T) {
	for name, text := range map[string]string{
		"not a mapping":   `[1, 2]`,
		"alias not map":   `{"p": 1}`,
		"unknown op":      `{"p": {"age": {"$bogus": 1}}}`,
		"bad combinator":  `{"p": {"age": {"$or": {"$eq": 1}}}}`,
		"malformed":       `{"p": `,
		"bad not operand": `{"p": {"age": {"$not": 5}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(text)
			assert.Error(t, err)
		})
	}

	tree, err := Parse("")
	require.NoError(t, err)
	assert.True(t, tree.Empty())
}

func TestValidate(t *testing.T) {
	gte, _ := operators.Reference("$gte")

	// bare binary operator outside a join
	err := Validate(Where(On("p", Field("age", gte))))
	assert.Error(t, err)

	// inside a join it is fine
	err = Validate(Where(On("p1", Field("age", Where(On("p2", Field("age", gte)))))))
	assert.NoError(t, err)

	err = Validate(Where(On("p", Field("age", 1)), On("p", Field("name", "x"))))
	assert.Error(t, err)

	err = Validate(Where(On("", Field("age", 1))))
	assert.Error(t, err)

	err = Validate(Where(On("p", Field("age", Tree{}))))
	assert.Error(t, err)
}

func TestAliases(t *testing.T) {
	tree := Where(
		On("p1", Field("name", Where(On("p2", Field("name", "$eq")), On("p3", Field("name", "$eq"))))),
		On("a", Field("city", "Seattle"), Field("zip", Where(On("p2", Field("zip", "$eq"))))),
	)
	assert.Equal(t, []string{"p1", "a", "p2", "p3"}, Aliases(tree))
	assert.Empty(t, Aliases(Tree{}))
}

func TestOptimize(t *testing.T) {
	props := []Prop{
		Field("friend", Where(On("p2", Field("name", "$eq")))),
		Field("age", operators.Must("$gte", 21)),
		Field("name", "joe"),
		Field("spouse", nil),
		Field("tags", []string{"x"}),
		Field("height", 170),
		Field("city", "Austin"),
		Field("alive", true),
	}

	got := Optimize(props)
	var order []string
	for _, p := range got {
		order = append(order, p.Property)
	}
	// null, then literals in value order (bool < number < string), then
	// non-primitive literals, operators and joins
	assert.Equal(t, []string{"spouse", "alive", "height", "city", "name", "tags", "age", "friend"}, order)

	// input untouched
	assert.Equal(t, "friend", props[0].Property)
}

func TestOptimizeTreeRecurses(t *testing.T) {
	tree := Where(On("p1",
		Field("name", Where(On("p2", Field("age", operators.Must("$gte", 1)), Field("name", "$eq"), Field("city", "x")))),
		Field("age", 21),
	))
	opt := OptimizeTree(tree)
	assert.Equal(t, "age", opt[0].Props[0].Property)
	inner := opt[0].Props[1].Test.(Join).Tree[0].Props
	assert.Equal(t, "city", inner[0].Property)
	assert.Equal(t, "age", inner[1].Property)
	assert.Equal(t, "name", inner[2].Property)

	// original order preserved
	assert.Equal(t, "name", tree[0].Props[0].Property)
}

func TestCache(t *testing.T) {
	cache := NewCache(2, time.Minute)
	text := `{"p": {"age": {"$gte": 21}, "name": "joe"}}`

	tree, err := cache.Parse(text)
	require.NoError(t, err)
	// optimized: literal before operator
	assert.Equal(t, "name", tree[0].Props[0].Property)

	again, err := cache.Parse(text)
	require.NoError(t, err)
	assert.Equal(t, tree, again)

	hits, misses, size := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1, size)

	_, err = cache.Parse(`{"p": {"age": "$gte"}}`)
	assert.Error(t, err)

	_, _ = cache.Parse(`{"a": {"x": 1}}`)
	_, _ = cache.Parse(`{"b": {"x": 1}}`)
	_, _, size = cache.Stats()
	assert.Equal(t, 2, size)

	cache.Clear()
	hits, misses, size = cache.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
	assert.Zero(t, size)

	var nilCache *Cache
	tree, err = nilCache.Parse(text)
	require.NoError(t, err)
	assert.Len(t, tree, 1)
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(10, time.Millisecond)
	text := `{"p": {"age": 1}}`
	_, err := cache.Parse(text)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, ok := cache.Get(text)
	assert.False(t, ok)
}

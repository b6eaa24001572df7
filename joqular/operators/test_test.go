package operators

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinators(t *testing.T) {
	ages := []interface{}{int64(21), int64(21)}

	cases := map[string]Test{
		"not eq 20":        Not{Test: Must("$eq", 20)},
		"eq 20 or gte 21":  Or{Must("$eq", 20), Must("$gte", 21)},
		"gte 21 and again": And{Must("$gte", 21), Must("$gte", 21)},
	}

	for name, test := range cases {
		t.Run(name, func(t *testing.T) {
			matched := 0
			for _, age := range ages {
				if _, ok := test.Eval(age); ok {
					matched++
				}
			}
			assert.Equal(t, 2, matched)
		})
	}

	_, ok := And{Must("$gte", 21), Must("$lt", 21)}.Eval(int64(21))
	assert.False(t, ok)
	_, ok = Or{}.Eval(int64(21))
	assert.False(t, ok)
	_, ok = And{}.Eval(int64(21))
	assert.True(t, ok)
}

func TestRefReversesOperands(t *testing.T) {
	gte, err := Reference("$gte")
	require.NoError(t, err)
	assert.True(t, gte.Binary())

	// right.age >= left.age
	_, ok := gte.EvalJoin(int64(20), int64(21))
	assert.True(t, ok)
	_, ok = gte.EvalJoin(int64(22), int64(21))
	assert.False(t, ok)

	starts, err := Reference("$startsWith")
	require.NoError(t, err)
	v, ok := starts.EvalJoin("jo", "joe")
	assert.True(t, ok)
	assert.Equal(t, "joe", v)
	_, ok = starts.EvalJoin("joe", "jo")
	assert.False(t, ok)

	// A bare ref has nothing to compare against outside a join
	_, ok = gte.Eval(int64(1))
	assert.False(t, ok)

	// Predicate refs need no argument and act as unary tests
	odd, err := Reference("$isOdd")
	require.NoError(t, err)
	assert.False(t, odd.Binary())
	_, ok = odd.Eval(int64(3))
	assert.True(t, ok)

	_, err = Reference("$nope")
	assert.Error(t, err)
}

func TestJoinFunc(t *testing.T) {
	same := JoinFunc(func(l, r interface{}) bool { return l == r })
	assert.True(t, same.Binary())

	v, ok := same.EvalJoin("joe", "joe")
	assert.True(t, ok)
	assert.Equal(t, "joe", v)
	_, ok = same.EvalJoin("joe", "bill")
	assert.False(t, ok)
}

func TestUnaryTestsInJoinPositionTestLeft(t *testing.T) {
	eq := Must("$eq", "joe")
	_, ok := eq.EvalJoin("joe", "anything")
	assert.True(t, ok)
	_, ok = eq.EvalJoin("bill", "joe")
	assert.False(t, ok)

	upper := Func(func(v interface{}) (interface{}, bool) {
		s, ok := v.(string)
		return s, ok && s != ""
	})
	_, ok = upper.EvalJoin("x", nil)
	assert.True(t, ok)
}

func TestBinaryCombinators(t *testing.T) {
	lte, err := Reference("$lte")
	require.NoError(t, err)

	// right <= left and right is even
	test := And{lte, Must("$isEven", nil)}
	assert.True(t, test.Binary())

	_, ok := test.EvalJoin(int64(10), int64(4))
	assert.True(t, ok)
	_, ok = test.EvalJoin(int64(10), int64(5))
	assert.False(t, ok)
	_, ok = test.EvalJoin(int64(3), int64(4))
	assert.False(t, ok)

	either := Or{lte, Must("$eq", 99)}
	_, ok = either.EvalJoin(int64(1), int64(99))
	assert.True(t, ok)

	not := Not{Test: lte}
	assert.True(t, not.Binary())
	_, ok = not.EvalJoin(int64(1), int64(2))
	assert.True(t, ok)
}

func TestSerializable(t *testing.T) {
	ref, _ := Reference("$eq")
	assert.True(t, Serializable(And{Must("$eq", 1), Not{Test: ref}}))
	assert.False(t, Serializable(Or{Must("$eq", 1), JoinFunc(func(l, r interface{}) bool { return true })}))
	assert.False(t, Serializable(Func(func(v interface{}) (interface{}, bool) { return v, true })))
}

func TestConcurrentEvaluation(t *testing.T) {
	gte, err := Reference("$gte")
	require.NoError(t, err)
	test := Or{gte, Must("$eq", 0)}

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			if _, ok := test.EvalJoin(n, n+1); !ok {
				errs <- "join mode failed"
			}
			if _, ok := test.Eval(int64(0)); !ok {
				errs <- "single mode failed"
			}
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "$eq(20)", Must("$eq", 20).String())
	assert.Equal(t, "$isOdd", Must("$isOdd", nil).String())
	assert.Equal(t, "$not($or($eq(1), $gt(2)))", Not{Test: Or{Must("$eq", 1), Must("$gt", 2)}}.String())
}

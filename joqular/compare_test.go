package joqular

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		left     interface{}
		right    interface{}
		expected int
		ok       bool
	}{
		{"int vs int", int64(1), int64(2), -1, true},
		{"int vs float", int64(21), 21.0, 0, true},
		{"float vs int", 21.5, int64(21), 1, true},
		{"strings", "abc", "abd", -1, true},
		{"bools", false, true, -1, true},
		{"nil vs nil", nil, nil, 0, true},
		{"nil vs number", nil, int64(0), 0, false},
		{"string vs number", "21", int64(21), 0, false},
		{"NaN", math.NaN(), 1.0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compare(tt.left, tt.right)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestStrictEqual(t *testing.T) {
	assert.True(t, StrictEqual(int64(3), 3.0))
	assert.True(t, StrictEqual(nil, nil))
	assert.False(t, StrictEqual(nil, false))
	assert.False(t, StrictEqual("3", int64(3)))
	assert.True(t, StrictEqual([]interface{}{int64(1), "a"}, []interface{}{1.0, "a"}))
	assert.False(t, StrictEqual([]interface{}{int64(1)}, []interface{}{int64(1), int64(2)}))
	assert.True(t, StrictEqual(Object{"a": int64(1)}, map[string]interface{}{"a": 1.0}))
	assert.False(t, StrictEqual(Object{"a": int64(1)}, Object{"b": int64(1)}))
}

func TestLooseEqual(t *testing.T) {
	assert.True(t, LooseEqual("21", int64(21)))
	assert.True(t, LooseEqual(true, int64(1)))
	assert.True(t, LooseEqual("", int64(0)))
	assert.False(t, LooseEqual("twenty", int64(20)))
	assert.False(t, LooseEqual(nil, int64(0)))
}

func TestStringify(t *testing.T) {
	s, ok := Stringify(int64(42))
	assert.True(t, ok)
	assert.Equal(t, "42", s)

	s, ok = Stringify(1.5)
	assert.True(t, ok)
	assert.Equal(t, "1.5", s)

	_, ok = Stringify([]interface{}{})
	assert.False(t, ok)
}

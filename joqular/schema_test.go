package joqular

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaConstruct(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		s := NewSchema("Person")
		obj, err := s.New(map[string]interface{}{"name": "joe", "age": 21})
		require.NoError(t, err)
		assert.Equal(t, Object{"name": "joe", "age": int64(21)}, obj)

		_, err = s.New([]interface{}{1, 2})
		assert.True(t, errors.Is(err, ErrShapeMismatch))
	})

	t.Run("array", func(t *testing.T) {
		s := NewArraySchema("Triple")
		obj, err := s.New([]int{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, obj.Elements())

		_, err = s.New(int64(1))
		assert.True(t, errors.Is(err, ErrShapeMismatch))
	})

	t.Run("custom constructor", func(t *testing.T) {
		s := NewSchema("Point")
		s.Construct = func(raw interface{}) (Object, error) {
			xy, ok := raw.([]int)
			if !ok || len(xy) != 2 {
				return nil, fmt.Errorf("%w: want [x y]", ErrShapeMismatch)
			}
			return Object{"x": int64(xy[0]), "y": int64(xy[1])}, nil
		}
		obj, err := s.New([]int{3, 4})
		require.NoError(t, err)
		assert.Equal(t, int64(4), obj["y"])

		_, err = s.New("nope")
		assert.True(t, errors.Is(err, ErrShapeMismatch))
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define(NewSchema("Person")))
	require.NoError(t, r.Define(NewSchema("Address")))

	// Identical redefinition is a no-op
	require.NoError(t, r.Define(NewSchema("Person")))

	conflict := NewSchema("Person")
	conflict.IdentifierKey = "id"
	err := r.Define(conflict)
	assert.True(t, errors.Is(err, ErrSchemaConflict))

	s, ok := r.Lookup("Person")
	require.True(t, ok)
	assert.Equal(t, DefaultIdentifierKey, s.IdentifierKey)

	_, ok = r.Lookup("Nobody")
	assert.False(t, ok)

	assert.Equal(t, []string{"Address", "Person"}, r.Names())

	assert.Error(t, r.Define(Schema{}))
	assert.Error(t, r.Define(NewSchema("Bad@Name")))
}

func TestParseShape(t *testing.T) {
	s, err := ParseShape("Array")
	require.NoError(t, err)
	assert.Equal(t, ArrayShape, s)

	s, err = ParseShape("")
	require.NoError(t, err)
	assert.Equal(t, ObjectShape, s)

	_, err = ParseShape("tree")
	assert.Error(t, err)
}

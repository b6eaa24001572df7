package joqular

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	in := map[string]interface{}{
		"age":    21,
		"score":  float32(1.5),
		"tags":   []string{"a", "b"},
		"nested": map[string]int{"x": 1},
		"raw":    []byte("hi"),
	}

	out, err := Normalize(in)
	require.NoError(t, err)

	obj, ok := out.(Object)
	require.True(t, ok)
	assert.Equal(t, int64(21), obj["age"])
	assert.Equal(t, 1.5, obj["score"])
	assert.Equal(t, []interface{}{"a", "b"}, obj["tags"])
	assert.Equal(t, Object{"x": int64(1)}, obj["nested"])
	assert.Equal(t, "hi", obj["raw"])

	_, err = Normalize(struct{}{})
	assert.Error(t, err)
	_, err = Normalize(map[int]string{1: "a"})
	assert.Error(t, err)
}

func TestObjectElements(t *testing.T) {
	obj := Object{"#": "Triple@1", "2": int64(3), "0": int64(1), "1": int64(2), "10": "x"}
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(3), "x"}, obj.Elements())
	assert.Equal(t, "Triple@1", obj.ID(""))
	assert.Equal(t, []string{"#", "0", "1", "10", "2"}, obj.Keys())
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "number", TypeName(int64(1)))
	assert.Equal(t, "number", TypeName(1.5))
	assert.Equal(t, "string", TypeName("s"))
	assert.Equal(t, "boolean", TypeName(false))
	assert.Equal(t, "object", TypeName(nil))
	assert.Equal(t, "object", TypeName([]interface{}{}))
}

func TestAny(t *testing.T) {
	assert.True(t, IsAny(Any))
	assert.False(t, IsAny(nil))
	assert.False(t, IsAny("ANY"))
}

func TestIdentifiers(t *testing.T) {
	id := NewID("Person")
	assert.True(t, strings.HasPrefix(id, "Person@"))
	assert.True(t, ValidID("Person", id))
	assert.False(t, ValidID("Address", id))
	assert.False(t, ValidID("Person", "Person@"))

	entity, ok := EntityOf(id)
	assert.True(t, ok)
	assert.Equal(t, "Person", entity)

	_, ok = EntityOf("@nothing")
	assert.False(t, ok)

	err := CheckID("Person", "Address@1")
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
	assert.NoError(t, CheckID("Person", "Person@1"))

	// Generated identifiers of one entity sort by creation
	next := NewID("Person")
	assert.Less(t, id, next)
}

func TestIDRange(t *testing.T) {
	start, end := IDRange("Person")
	assert.Equal(t, "Person@", start)
	assert.Equal(t, "PersonA", end)

	id := NewID("Person")
	assert.True(t, id >= start && id < end)
	assert.False(t, "Personal@1" >= start && "Personal@1" < end)
}

func TestSliceIterator(t *testing.T) {
	it := NewSliceIterator([]Entry{{Key: "a"}, {Key: "b"}})
	var keys []string
	for it.Next() {
		keys = append(keys, it.Entry().Key)
	}
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.NoError(t, it.Err())
	assert.False(t, it.Next())
	assert.NoError(t, it.Close())
}

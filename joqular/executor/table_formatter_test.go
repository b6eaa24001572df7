package executor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wbrown/janus-joqular/joqular"
)

func TestFormatTuples(t *testing.T) {
	tf := NewTableFormatter()
	assert.Equal(t, "_No rows_", tf.FormatTuples(nil))

	tuples := []Tuple{
		{{Alias: "P", ID: "Person@1", Value: joqular.Object{"#": "Person@1", "name": "joe", "age": int64(21)}}},
		{{Alias: "P", ID: "Person@2", Value: joqular.Object{"#": "Person@2", "name": "bill"}}},
	}
	out := tf.FormatTuples(tuples)
	assert.Contains(t, out, "P.#")
	assert.Contains(t, out, "P.age")
	assert.Contains(t, out, "P.name")
	assert.Contains(t, out, "joe")
	assert.Contains(t, out, "bill")
	assert.Contains(t, out, "_2 rows_")
}

func TestFormatIDs(t *testing.T) {
	tf := NewTableFormatter()
	out := tf.FormatIDs([]string{"P1", "P2"}, [][]string{{"Person@1", "Person@2"}})
	assert.Contains(t, out, "P1")
	assert.Contains(t, out, "Person@2")
	assert.Contains(t, out, "_1 rows_")

	assert.Contains(t, tf.FormatIDs([]string{"P"}, nil), "_No rows_")
}

func TestFormatValue(t *testing.T) {
	tf := NewTableFormatter()
	assert.Equal(t, "null", tf.formatValue(nil))
	assert.Equal(t, "21", tf.formatValue(int64(21)))
	assert.Equal(t, "1.5", tf.formatValue(1.5))
	assert.Equal(t, "true", tf.formatValue(true))
	assert.Equal(t, "", tf.formatValue(joqular.Undefined))

	long := strings.Repeat("x", 60)
	assert.Equal(t, strings.Repeat("x", 50)+"...", tf.formatValue(long))
}

func TestFormatObjects(t *testing.T) {
	tf := NewTableFormatter()
	out := tf.FormatObjects([]joqular.Object{{"name": "joe"}, {"city": "Seattle"}})
	assert.Contains(t, out, "city")
	assert.Contains(t, out, "Seattle")
	assert.Contains(t, out, "_2 rows_")
}

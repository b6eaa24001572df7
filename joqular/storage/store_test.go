package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/annotations"
)

func newTestStore(t *testing.T, b Backend, handler annotations.Handler) *Store {
	t.Helper()
	s, err := NewStore(b, handler)
	require.NoError(t, err)
	require.NoError(t, s.DefineSchema(joqular.NewSchema("Person")))
	return s
}

func indexIDs(t *testing.T, s *Store, entity, property string, value interface{}) []string {
	t.Helper()
	it, err := s.GetRangeFromIndex(entity, property, value)
	require.NoError(t, err)
	defer it.Close()

	var ids []string
	for it.Next() {
		e := it.Entry()
		assert.Nil(t, e.Value)
		ids = append(ids, e.Key)
	}
	require.NoError(t, it.Err())
	return ids
}

func TestStoreConformance(t *testing.T) {
	for _, bc := range backendCases() {
		t.Run(bc.name, func(t *testing.T) {
			t.Run("PutGet", func(t *testing.T) {
				s := newTestStore(t, bc.open(t), nil)

				id, err := s.Put("Person", joqular.Object{"name": "joe", "age": 21})
				require.NoError(t, err)
				assert.True(t, joqular.ValidID("Person", id))

				got, ok, err := s.Get(id)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, joqular.Object{"#": id, "name": "joe", "age": int64(21)}, got)

				entry, ok, err := s.GetEntry(id)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, id, entry.Key)

				_, ok, err = s.Get("Person@missing")
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("ExplicitIdentifier", func(t *testing.T) {
				s := newTestStore(t, bc.open(t), nil)

				id, err := s.Put("Person", joqular.Object{"#": "Person@joe", "name": "joe"})
				require.NoError(t, err)
				assert.Equal(t, "Person@joe", id)

				_, err = s.Put("Person", joqular.Object{"#": "Address@1"})
				assert.True(t, errors.Is(err, joqular.ErrInvalidIdentifier))
				_, err = s.Put("Person", joqular.Object{"#": 7})
				assert.True(t, errors.Is(err, joqular.ErrInvalidIdentifier))
				_, err = s.Put("Robot", joqular.Object{})
				assert.True(t, errors.Is(err, joqular.ErrUnknownEntity))
			})

			t.Run("IndexFollowsWrites", func(t *testing.T) {
				s := newTestStore(t, bc.open(t), nil)

				joe, err := s.Put("Person", joqular.Object{"#": "Person@1", "name": "joe", "age": 21})
				require.NoError(t, err)
				_, err = s.Put("Person", joqular.Object{"#": "Person@2", "name": "joe", "age": 30})
				require.NoError(t, err)
				_, err = s.Put("Person", joqular.Object{"#": "Person@3", "name": "bill", "age": 21.0})
				require.NoError(t, err)

				assert.Equal(t, []string{"Person@1", "Person@2"}, indexIDs(t, s, "Person", "name", "joe"))
				assert.Equal(t, []string{"Person@1", "Person@3"}, indexIDs(t, s, "Person", "age", 21))
				// ordered by value, then identifier
				assert.Equal(t, []string{"Person@3", "Person@1", "Person@2"}, indexIDs(t, s, "Person", "name", joqular.Any))
				assert.Empty(t, indexIDs(t, s, "Address", "name", joqular.Any))

				_, err = s.Patch(joe, joqular.Object{"name": "bob", "city": "Seattle"})
				require.NoError(t, err)
				assert.Equal(t, []string{"Person@2"}, indexIDs(t, s, "Person", "name", "joe"))
				assert.Equal(t, []string{"Person@1"}, indexIDs(t, s, "Person", "city", "Seattle"))

				got, _, err := s.Get(joe)
				require.NoError(t, err)
				assert.Equal(t, joqular.Object{"#": joe, "name": "bob", "age": int64(21), "city": "Seattle"}, got)

				// a full replace drops the old index entries
				_, err = s.Put("Person", joqular.Object{"#": joe, "name": "bob"})
				require.NoError(t, err)
				assert.Empty(t, indexIDs(t, s, "Person", "city", joqular.Any))

				removed, err := s.Remove(joe)
				require.NoError(t, err)
				assert.True(t, removed)
				removed, err = s.Remove(joe)
				require.NoError(t, err)
				assert.False(t, removed)
				assert.Equal(t, []string{"Person@3", "Person@2"}, indexIDs(t, s, "Person", "name", joqular.Any))
				assert.Equal(t, []string{"Person@2", "Person@3"}, indexIDs(t, s, "Person", "#", joqular.Any))
			})

			t.Run("PatchMissing", func(t *testing.T) {
				s := newTestStore(t, bc.open(t), nil)
				_, err := s.Patch("Person@nobody", joqular.Object{"age": 1})
				assert.True(t, errors.Is(err, joqular.ErrNotFound))
				_, err = s.Patch("nobody", joqular.Object{"age": 1})
				assert.True(t, errors.Is(err, joqular.ErrInvalidIdentifier))
			})

			t.Run("GetRange", func(t *testing.T) {
				s := newTestStore(t, bc.open(t), nil)
				require.NoError(t, s.DefineSchema(joqular.NewSchema("Address")))
				for _, id := range []string{"Person@b", "Person@a", "Address@a"} {
					_, err := s.Put(strings.Split(id, "@")[0], joqular.Object{"#": id})
					require.NoError(t, err)
				}

				it, err := s.GetRange(joqular.IDRange("Person"))
				require.NoError(t, err)
				var ids []string
				for it.Next() {
					e := it.Entry()
					assert.Equal(t, e.Key, e.Value.ID("#"))
					ids = append(ids, e.Key)
				}
				require.NoError(t, it.Err())
				require.NoError(t, it.Close())
				assert.Equal(t, []string{"Person@a", "Person@b"}, ids)

				it, err = s.GetRange("", "")
				require.NoError(t, err)
				count := 0
				for it.Next() {
					count++
				}
				require.NoError(t, it.Close())
				assert.Equal(t, 3, count)
			})

			t.Run("Keys", func(t *testing.T) {
				s := newTestStore(t, bc.open(t), nil)
				_, err := s.Put("Person", joqular.Object{"#": "Person@1", "name": "joe"})
				require.NoError(t, err)

				keys, err := s.Keys()
				require.NoError(t, err)
				require.Len(t, keys, 4)
				assert.Equal(t, "P:Person@1", keys[0])
				assert.True(t, strings.HasPrefix(keys[1], "I:Person/#/"))
				assert.True(t, strings.HasPrefix(keys[2], "I:Person/name/"))
				assert.Equal(t, "S:Person", keys[3])
			})
		})
	}
}

func TestSchemasPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.bolt")

	b, err := NewBoltBackend(path)
	require.NoError(t, err)
	s := newTestStore(t, b, nil)
	require.NoError(t, s.DefineSchema(joqular.Schema{Name: "Vector", IdentifierKey: "id", Shape: joqular.ArrayShape}))
	_, err = s.Put("Vector", joqular.Object{"id": "Vector@1", "0": 1})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	b, err = NewBoltBackend(path)
	require.NoError(t, err)
	s, err = NewStore(b, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"Person", "Vector"}, s.Schemas())
	schema, ok := s.GetSchema("Vector")
	require.True(t, ok)
	assert.Equal(t, "id", schema.IdentifierKey)
	assert.Equal(t, joqular.ArrayShape, schema.Shape)

	err = s.DefineSchema(joqular.NewSchema("Vector"))
	assert.True(t, errors.Is(err, joqular.ErrSchemaConflict))

	got, ok, err := s.Get("Vector@1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []interface{}{int64(1)}, got.Elements())
}

func TestStoreWriteAnnotations(t *testing.T) {
	var events []annotations.Event
	s := newTestStore(t, newBadger(t), func(e annotations.Event) { events = append(events, e) })

	id, err := s.Put("Person", joqular.Object{"name": "joe"})
	require.NoError(t, err)
	_, err = s.Patch(id, joqular.Object{"age": 3})
	require.NoError(t, err)
	_, err = s.Remove(id)
	require.NoError(t, err)

	var names []string
	for _, e := range events {
		names = append(names, e.Name)
		assert.Equal(t, id, e.Data["id"])
	}
	assert.Equal(t, []string{annotations.WriteInsert, annotations.WriteUpdate, annotations.WriteDelete}, names)
}

func newBadger(t *testing.T) Backend {
	t.Helper()
	b, err := NewBadgerBackend("")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendCase struct {
	name string
	open func(t *testing.T) Backend
}

// backendCases opens each backend in a fresh temporary location.
func backendCases() []backendCase {
	return []backendCase{
		{"badger", func(t *testing.T) Backend {
			b, err := NewBadgerBackend("")
			require.NoError(t, err)
			t.Cleanup(func() { b.Close() })
			return b
		}},
		{"bolt", func(t *testing.T) Backend {
			b, err := NewBoltBackend(filepath.Join(t.TempDir(), "test.bolt"))
			require.NoError(t, err)
			t.Cleanup(func() { b.Close() })
			return b
		}},
		{"sqlite", func(t *testing.T) Backend {
			b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "test.sqlite"))
			require.NoError(t, err)
			t.Cleanup(func() { b.Close() })
			return b
		}},
	}
}

func scanKeys(t *testing.T, b Backend, start, end []byte) []string {
	t.Helper()
	it, err := b.Scan(start, end)
	require.NoError(t, err)
	defer it.Close()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	return keys
}

func put(t *testing.T, b Backend, pairs ...string) {
	t.Helper()
	require.NoError(t, b.Update(func(w Writer) error {
		for i := 0; i+1 < len(pairs); i += 2 {
			if err := w.Set([]byte(pairs[i]), []byte(pairs[i+1])); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestBackendConformance(t *testing.T) {
	for _, bc := range backendCases() {
		t.Run(bc.name, func(t *testing.T) {
			t.Run("GetSetDelete", func(t *testing.T) {
				b := bc.open(t)

				_, ok, err := b.Get([]byte("a"))
				require.NoError(t, err)
				assert.False(t, ok)

				put(t, b, "a", "1")
				v, ok, err := b.Get([]byte("a"))
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, "1", string(v))

				require.NoError(t, b.Update(func(w Writer) error {
					v, ok, err := w.Get([]byte("a"))
					require.NoError(t, err)
					require.True(t, ok)
					assert.Equal(t, "1", string(v))
					if err := w.Set([]byte("a"), []byte("2")); err != nil {
						return err
					}
					return w.Delete([]byte("missing"))
				}))
				v, _, err = b.Get([]byte("a"))
				require.NoError(t, err)
				assert.Equal(t, "2", string(v))

				require.NoError(t, b.Update(func(w Writer) error {
					return w.Delete([]byte("a"))
				}))
				_, ok, err = b.Get([]byte("a"))
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("UpdateErrorDiscardsWrites", func(t *testing.T) {
				b := bc.open(t)
				boom := errors.New("boom")
				err := b.Update(func(w Writer) error {
					if err := w.Set([]byte("k"), []byte("v")); err != nil {
						return err
					}
					return boom
				})
				assert.ErrorIs(t, err, boom)

				_, ok, err := b.Get([]byte("k"))
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("ScanIsOrderedAndHalfOpen", func(t *testing.T) {
				b := bc.open(t)
				put(t, b, "b", "", "a", "", "d", "", "c", "", "\x00z", "", "\xffz", "")

				assert.Equal(t, []string{"b", "c"}, scanKeys(t, b, []byte("b"), []byte("d")))
				assert.Equal(t, []string{"c", "d", "\xffz"}, scanKeys(t, b, []byte("c"), nil))
				assert.Equal(t, []string{"\x00z", "a", "b", "c", "d", "\xffz"}, scanKeys(t, b, []byte{}, nil))
				assert.Empty(t, scanKeys(t, b, []byte("x"), []byte("y")))
			})

			t.Run("ScanSpansPages", func(t *testing.T) {
				b := bc.open(t)
				n := defaultPageSize*2 + 7
				require.NoError(t, b.Update(func(w Writer) error {
					for i := 0; i < n; i++ {
						if err := w.Set([]byte(fmt.Sprintf("k%05d", i)), []byte{byte(i)}); err != nil {
							return err
						}
					}
					return nil
				}))

				it, err := b.Scan([]byte("k"), []byte("l"))
				require.NoError(t, err)
				defer it.Close()
				count := 0
				for it.Next() {
					assert.Equal(t, fmt.Sprintf("k%05d", count), string(it.Key()))
					assert.Equal(t, []byte{byte(count)}, it.Value())
					count++
				}
				require.NoError(t, it.Err())
				assert.Equal(t, n, count)
			})

			t.Run("WriteWhileScanning", func(t *testing.T) {
				b := bc.open(t)
				put(t, b, "a", "1", "b", "2", "c", "3")

				it, err := b.Scan([]byte("a"), []byte("z"))
				require.NoError(t, err)
				var seen []string
				for it.Next() {
					key := string(it.Key())
					seen = append(seen, key)
					require.NoError(t, b.Update(func(w Writer) error {
						return w.Set([]byte("z"+key), []byte("x"))
					}))
				}
				require.NoError(t, it.Err())
				require.NoError(t, it.Close())

				assert.Equal(t, []string{"a", "b", "c"}, seen)
				assert.Equal(t, []string{"za", "zb", "zc"}, scanKeys(t, b, []byte("z"), nil))
			})
		})
	}
}

func TestParseBackendType(t *testing.T) {
	for in, want := range map[string]BackendType{
		"":       BadgerBackendType,
		"badger": BadgerBackendType,
		"Bolt":   BoltBackendType,
		"sqlite": SQLiteBackendType,
	} {
		got, err := ParseBackendType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseBackendType("leveldb")
	assert.Error(t, err)
}

func TestOpenBackend(t *testing.T) {
	b, err := OpenBackend(Options{Backend: SQLiteBackendType, InMemory: true})
	require.NoError(t, err)
	put(t, b, "k", "v")
	assert.Equal(t, []string{"k"}, scanKeys(t, b, []byte{}, nil))
	require.NoError(t, b.Close())

	_, err = OpenBackend(Options{Backend: BoltBackendType, InMemory: true})
	assert.Error(t, err)

	b, err = OpenBackend(Options{Backend: BoltBackendType, Path: filepath.Join(t.TempDir(), "sub", "x.bolt")})
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

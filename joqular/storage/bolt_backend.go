package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("joqular")

// BoltBackend implements Backend on a single bbolt bucket. Scans are paged
// so no read transaction stays open while the caller writes.
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend opens or creates the bbolt file at path.
func NewBoltBackend(path string) (*BoltBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt backend requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := bolt.Open(path, 0o666, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(boltBucket).Get(key); v != nil {
			value = bytes.Clone(v)
			found = true
		}
		return nil
	})
	return value, found, err
}

func (b *BoltBackend) Update(fn func(w Writer) error) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return fn(boltWriter{bucket: tx.Bucket(boltBucket)})
	})
}

func (b *BoltBackend) Scan(start, end []byte) (KVIterator, error) {
	return newPagedIterator(b.page, start, end), nil
}

func (b *BoltBackend) page(from []byte, inclusive bool, end []byte, n int) ([]kv, error) {
	var out []kv
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		k, v := c.Seek(from)
		if !inclusive && k != nil && bytes.Equal(k, from) {
			k, v = c.Next()
		}
		for ; k != nil && inRange(k, end) && len(out) < n; k, v = c.Next() {
			// bbolt memory is only valid inside the transaction
			out = append(out, kv{key: bytes.Clone(k), value: bytes.Clone(v)})
		}
		return nil
	})
	return out, err
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}

type boltWriter struct {
	bucket *bolt.Bucket
}

func (w boltWriter) Get(key []byte) ([]byte, bool, error) {
	v := w.bucket.Get(key)
	if v == nil {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (w boltWriter) Set(key, value []byte) error {
	return w.bucket.Put(key, value)
}

func (w boltWriter) Delete(key []byte) error {
	return w.bucket.Delete(key)
}

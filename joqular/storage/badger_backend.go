package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend implements Backend using BadgerDB
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend opens a BadgerDB at path. An empty path opens an
// in-memory database.
func NewBadgerBackend(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

// Get retrieves the value stored under key
func (b *BadgerBackend) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		value, err = badgerGet(txn, key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func badgerGet(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Update runs fn in a read-write transaction
func (b *BadgerBackend) Update(fn func(w Writer) error) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return fn(badgerWriter{txn: txn})
	})
}

// Scan returns an iterator over [start, end)
func (b *BadgerBackend) Scan(start, end []byte) (KVIterator, error) {
	txn := b.db.NewTransaction(false)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 100

	return &badgerIterator{
		txn:   txn,
		it:    txn.NewIterator(opts),
		start: start,
		end:   end,
	}, nil
}

// Close closes the database
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

type badgerWriter struct {
	txn *badger.Txn
}

func (w badgerWriter) Get(key []byte) ([]byte, bool, error) {
	value, err := badgerGet(w.txn, key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (w badgerWriter) Set(key, value []byte) error {
	return w.txn.Set(key, value)
}

func (w badgerWriter) Delete(key []byte) error {
	if err := w.txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return nil
}

// badgerIterator iterates a read-only transaction
type badgerIterator struct {
	txn    *badger.Txn
	it     *badger.Iterator
	start  []byte
	end    []byte
	seeked bool
	done   bool
	closed bool
	key    []byte
	value  []byte
	err    error
}

// Next advances the iterator
func (i *badgerIterator) Next() bool {
	if i.closed || i.done || i.err != nil {
		return false
	}
	if !i.seeked {
		// First call - seek to start
		i.it.Seek(i.start)
		i.seeked = true
	} else {
		i.it.Next()
	}

	if !i.it.Valid() {
		i.done = true
		return false
	}
	item := i.it.Item()
	if !inRange(item.Key(), i.end) {
		i.done = true
		return false
	}

	i.key = item.KeyCopy(i.key[:0])
	i.value, i.err = item.ValueCopy(i.value[:0])
	return i.err == nil
}

func (i *badgerIterator) Key() []byte   { return i.key }
func (i *badgerIterator) Value() []byte { return i.value }
func (i *badgerIterator) Err() error    { return i.err }

// Close closes the iterator and discards its transaction
func (i *badgerIterator) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.it.Close()
	i.txn.Discard()
	return nil
}

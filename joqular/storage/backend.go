// Package storage persists instances in an ordered key-value backend and
// maintains a secondary index per top-level property. It provides the
// Database type, through which the select, insert, update and delete
// builders run queries and writes.
package storage

import (
	"bytes"
	"fmt"
	"strings"
)

// Backend is an ordered key-value store.
type Backend interface {
	// Get returns the value stored under key.
	Get(key []byte) ([]byte, bool, error)

	// Update runs fn in a single write transaction. An error from fn
	// discards every write made through w.
	Update(fn func(w Writer) error) error

	// Scan iterates over [start, end) in key order. A nil end scans to the
	// end of the key space.
	Scan(start, end []byte) (KVIterator, error)

	Close() error
}

// Writer is the view of a write transaction.
type Writer interface {
	Get(key []byte) ([]byte, bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// KVIterator walks raw key-value pairs. Key and Value are valid until the
// next call to Next.
type KVIterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// BackendType names a backend implementation.
type BackendType string

const (
	BadgerBackendType BackendType = "badger"
	BoltBackendType   BackendType = "bolt"
	SQLiteBackendType BackendType = "sqlite"
)

// ParseBackendType parses a backend name.
func ParseBackendType(s string) (BackendType, error) {
	switch t := BackendType(strings.ToLower(s)); t {
	case "":
		return BadgerBackendType, nil
	case BadgerBackendType, BoltBackendType, SQLiteBackendType:
		return t, nil
	}
	return "", fmt.Errorf("unknown backend %q (want badger, bolt or sqlite)", s)
}

// OpenBackend opens the backend selected by opts.
func OpenBackend(opts Options) (Backend, error) {
	t, err := ParseBackendType(string(opts.Backend))
	if err != nil {
		return nil, err
	}
	switch t {
	case BoltBackendType:
		if opts.InMemory {
			return nil, fmt.Errorf("bolt backend has no in-memory mode")
		}
		return NewBoltBackend(opts.Path)
	case SQLiteBackendType:
		path := opts.Path
		if opts.InMemory {
			path = ":memory:"
		}
		return NewSQLiteBackend(path)
	}
	if opts.InMemory {
		return NewBadgerBackend("")
	}
	return NewBadgerBackend(opts.Path)
}

// kv is one fetched pair.
type kv struct {
	key   []byte
	value []byte
}

// pageFunc fetches up to n pairs starting at from (after from when
// inclusive is false) and before end.
type pageFunc func(from []byte, inclusive bool, end []byte, n int) ([]kv, error)

const defaultPageSize = 256

// pagedIterator reads a range one page at a time. No transaction is held
// between pages, so callers may write while iterating.
type pagedIterator struct {
	fetch pageFunc
	start []byte
	end   []byte
	size  int

	page []kv
	pos  int
	last []byte
	done bool
	err  error
}

func newPagedIterator(fetch pageFunc, start, end []byte) *pagedIterator {
	return &pagedIterator{fetch: fetch, start: start, end: end, size: defaultPageSize, pos: -1}
}

func (it *pagedIterator) Next() bool {
	if it.done {
		return false
	}
	it.pos++
	if it.pos < len(it.page) {
		return true
	}
	if it.page != nil && len(it.page) < it.size {
		it.done = true
		return false
	}

	from, inclusive := it.start, true
	if it.last != nil {
		from, inclusive = it.last, false
	}
	page, err := it.fetch(from, inclusive, it.end, it.size)
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	if len(page) == 0 {
		it.done = true
		return false
	}
	it.page, it.pos = page, 0
	it.last = page[len(page)-1].key
	return true
}

func (it *pagedIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.page) {
		return nil
	}
	return it.page[it.pos].key
}

func (it *pagedIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.page) {
		return nil
	}
	return it.page[it.pos].value
}

func (it *pagedIterator) Err() error { return it.err }

func (it *pagedIterator) Close() error {
	it.done = true
	it.page = nil
	return nil
}

// inRange reports whether key sorts before end.
func inRange(key, end []byte) bool {
	return end == nil || bytes.Compare(key, end) < 0
}

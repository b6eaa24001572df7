package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   BLOB PRIMARY KEY,
	value BLOB
) WITHOUT ROWID`

// SQLiteBackend implements Backend on one SQLite table ordered by its BLOB
// primary key. Scans are paged like the bbolt backend.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) a SQLite database. Use ":memory:"
// for an in-memory database.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection: an in-memory database exists per connection, and
	// writes are sequential anyway.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Get(key []byte) ([]byte, bool, error) {
	return sqliteGet(b.db, key)
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func sqliteGet(q queryRower, key []byte) ([]byte, bool, error) {
	var value []byte
	err := q.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (b *SQLiteBackend) Update(fn func(w Writer) error) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(sqliteWriter{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Scan(start, end []byte) (KVIterator, error) {
	return newPagedIterator(b.page, start, end), nil
}

func (b *SQLiteBackend) page(from []byte, inclusive bool, end []byte, n int) ([]kv, error) {
	op := ">="
	if !inclusive {
		op = ">"
	}
	query := "SELECT key, value FROM kv WHERE key " + op + " ?"
	args := []any{from}
	if end != nil {
		query += " AND key < ?"
		args = append(args, end)
	}
	query += " ORDER BY key LIMIT ?"
	args = append(args, n)

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kv
	for rows.Next() {
		var p kv
		if err := rows.Scan(&p.key, &p.value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

type sqliteWriter struct {
	tx *sql.Tx
}

func (w sqliteWriter) Get(key []byte) ([]byte, bool, error) {
	return sqliteGet(w.tx, key)
}

func (w sqliteWriter) Set(key, value []byte) error {
	_, err := w.tx.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

func (w sqliteWriter) Delete(key []byte) error {
	_, err := w.tx.Exec("DELETE FROM kv WHERE key = ?", key)
	return err
}

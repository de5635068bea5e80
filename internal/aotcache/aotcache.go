// Package aotcache is the AOT translator's build cache, backed by
// modernc.org/sqlite (a pure-Go driver, so the cache itself never requires
// cgo even though the compiled artifacts it tracks do).
// It is keyed by a scripted function's code hash (stub.FunctionStub.CodeHash)
// so a rebuild that touches only a handful of functions does not re-invoke
// the native compiler for the rest: the generated C source and the path to
// its already-compiled shared object are reused verbatim when the hash is
// unchanged.
package aotcache

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Cache is a sqlite-backed store of (code hash -> last emitted C source,
// compiled object path). It is safe for concurrent use; the underlying
// *sql.DB pools its own connections.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) a cache database at path. An empty
// path opens an in-memory cache, useful for one-shot builds and tests.
func Open(path string) (*Cache, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("aotcache: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("aotcache: migrate %s: %w", path, err)
	}
	return &Cache{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS aot_functions (
	code_hash    INTEGER PRIMARY KEY,
	qualified    TEXT NOT NULL,
	c_source     TEXT NOT NULL,
	object_path  TEXT NOT NULL,
	compiler     TEXT NOT NULL,
	created_unix INTEGER NOT NULL
);
`

// Entry is one cached translation result.
type Entry struct {
	CodeHash   uint64
	Qualified  string // class.function, for diagnostics
	CSource    string
	ObjectPath string
	Compiler   string
	CreatedAt  int64 // unix seconds, supplied by the caller
}

// Close releases the underlying database connection.
func (c *Cache) Close() error { return c.db.Close() }

// Lookup returns the cached entry for codeHash, if any. The caller is
// responsible for verifying the referenced object file still exists on
// disk before trusting it (a cache hit here only means "we built this
// before", not "the artifact is still there").
func (c *Cache) Lookup(codeHash uint64) (Entry, bool, error) {
	row := c.db.QueryRow(
		`SELECT code_hash, qualified, c_source, object_path, compiler, created_unix
		 FROM aot_functions WHERE code_hash = ?`, int64(codeHash))
	var e Entry
	var hash int64
	if err := row.Scan(&hash, &e.Qualified, &e.CSource, &e.ObjectPath, &e.Compiler, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("aotcache: lookup %d: %w", codeHash, err)
	}
	e.CodeHash = uint64(hash)
	return e, true, nil
}

// Put records (or replaces) the translation result for e.CodeHash.
func (c *Cache) Put(e Entry) error {
	_, err := c.db.Exec(
		`INSERT INTO aot_functions (code_hash, qualified, c_source, object_path, compiler, created_unix)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code_hash) DO UPDATE SET
			qualified=excluded.qualified,
			c_source=excluded.c_source,
			object_path=excluded.object_path,
			compiler=excluded.compiler,
			created_unix=excluded.created_unix`,
		int64(e.CodeHash), e.Qualified, e.CSource, e.ObjectPath, e.Compiler, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("aotcache: put %d: %w", e.CodeHash, err)
	}
	return nil
}

// Invalidate drops the cached entry for codeHash, if present. Used when a
// function's opcode sequence (and therefore its hash) changes between
// builds, or the referenced object file was found missing by the caller.
func (c *Cache) Invalidate(codeHash uint64) error {
	if _, err := c.db.Exec(`DELETE FROM aot_functions WHERE code_hash = ?`, int64(codeHash)); err != nil {
		return fmt.Errorf("aotcache: invalidate %d: %w", codeHash, err)
	}
	return nil
}

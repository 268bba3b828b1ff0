// Package store provides the SQLite-backed trade data cache: the physical
// store, its metadata, the provisioner that rebuilds it from the schema
// registry, the reference loader, and the price merger. Downstream route
// planning reads the cache through the query surface in queries.go; it must
// find the store consistent at every observation point, so every mutation
// here runs inside a single transaction.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the cache database connection.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens the cache database at dbPath. It does not create tables; the
// provisioner owns schema creation. Pragmas are per-connection in sqlite, so
// they ride in the DSN and apply to every connection the pool opens; the
// schema relies on ON DELETE CASCADE, which holds only while foreign_keys is
// on.
func Open(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for advanced operations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// timeFormat is the persisted form of every modified column: RFC3339 UTC,
// second precision, so lexical and chronological order agree.
const timeFormat = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse modified time %q: %w", s, err)
	}
	return t, nil
}

// Package storage is the local backend driver: festival records, admin
// accounts and web sessions in SQLite, uploaded images on the filesystem.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store manages SQLite database operations
type Store struct {
	db *sql.DB
}

// ErrStoreClosed indicates the underlying database connection is unavailable.
var ErrStoreClosed = errors.New("storage: closed")

// connPragmas run once after opening. WAL lets the public pages read while
// an admin write is in flight.
var connPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// New opens (creating if needed) the database at dsn and migrates it.
// dsn is a file path, a file: URI or ":memory:".
func New(dsn string) (*Store, error) {
	if file, ok := diskFile(dsn); ok {
		// Password hashes and session tokens live here.
		if err := createPrivateFile(file); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, ok := diskFile(dsn); ok {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(4)
	} else {
		// Each connection to an in-memory DSN would see its own database.
		db.SetMaxOpenConns(1)
	}

	for _, p := range connPragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// diskFile returns the database file named by dsn, or false for in-memory
// and non-file DSNs.
func diskFile(dsn string) (string, bool) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "", dsn == ":memory:":
		return "", false
	case strings.HasPrefix(dsn, "file:"):
		u, err := url.Parse(dsn)
		if err != nil {
			return "", false
		}
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		if p == "" || p == ":memory:" || u.Query().Get("mode") == "memory" {
			return "", false
		}
		return p, true
	case strings.Contains(dsn, "://"):
		return "", false
	}
	return dsn, true
}

// createPrivateFile makes the parent directory (0700) and an empty 0600
// database file so SQLite never creates it with the process umask.
func createPrivateFile(file string) error {
	if dir := filepath.Dir(file); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	switch {
	case err == nil:
		return f.Close()
	case os.IsExist(err):
		return nil
	default:
		return fmt.Errorf("create database file: %w", err)
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

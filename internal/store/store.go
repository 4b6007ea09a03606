// Package store is the local durable store: a SQLite database holding every
// collection of versioned records plus per-collection sync metadata. All
// multi-step mutations go through the transaction coordinator; this package
// exposes the row-level primitives it builds on.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	dbFile = ".daybook/daybook.db"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStaleVersion is the optimistic-lock rejection: the incoming version is
// older than the stored one. Recoverable — the caller should re-read,
// re-apply its change, and retry.
var ErrStaleVersion = errors.New("stale record version")

// Store wraps the database connection.
type Store struct {
	conn    *sql.DB
	baseDir string
}

// Open opens an existing database and runs any pending migrations.
func Open(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: run 'daybook init' first")
	}
	return open(baseDir, dbPath)
}

// Initialize creates the database (and its directory) and runs migrations.
func Initialize(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(baseDir, dbPath)
}

func open(baseDir, dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL allows concurrent reads while writes are serialized.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")
	conn.Exec("PRAGMA foreign_keys=ON")

	s := &Store{conn: conn, baseDir: baseDir}
	if err := s.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Conn returns the underlying *sql.DB for use in transactions (the
// coordinator needs raw access).
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// BaseDir returns the directory the store was opened in.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// formatTime renders a timestamp for storage. The fractional seconds are
// fixed width so lexical ordering of the TEXT column stays chronological.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

// parseTime tries the formats that show up in SQLite columns: our own
// RFC3339 writes plus CURRENT_TIMESTAMP defaults from older rows.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}

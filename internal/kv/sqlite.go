// ABOUTME: SQLite implementation of the Store interface
// ABOUTME: Pure-Go modernc driver by default, cgo mattn driver via NewSQLite3Store

package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a single kv_entries table.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a database at path using modernc.org/sqlite.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return openSQLite("sqlite", path)
}

// NewSQLite3Store is NewSQLiteStore on the cgo mattn/go-sqlite3 driver.
func NewSQLite3Store(path string) (*SQLiteStore, error) {
	return openSQLite("sqlite3", path)
}

func openSQLite(driver, path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "kv", "driver", driver)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// In-memory databases are per-connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the kv table if it doesn't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS kv_entries (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		);

		CREATE INDEX IF NOT EXISTS idx_kv_entries_namespace
			ON kv_entries(namespace);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the value stored under namespace/key.
func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

// Set creates or replaces the value under namespace/key.
func (s *SQLiteStore) Set(ctx context.Context, namespace, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, namespace, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Remove deletes namespace/key. Removing a missing key is not an error.
func (s *SQLiteStore) Remove(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE namespace = ? AND key = ?`,
		namespace, key,
	)
	if err != nil {
		return fmt.Errorf("removing %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Keys lists the keys present in namespace, sorted.
func (s *SQLiteStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv_entries WHERE namespace = ? ORDER BY key`,
		namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

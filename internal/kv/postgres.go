// ABOUTME: PostgreSQL implementation of the Store interface using lib/pq
// ABOUTME: Same kv_entries layout as SQLite with $n placeholders

package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s, err := newPostgresStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// newPostgresStore wraps an open *sql.DB. Split out so tests can pass a sqlmock DB.
func newPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	s := &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "kv", "driver", "postgres"),
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_entries (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (namespace, key)
		)
	`); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s.logger.Info("postgres store initialized")
	return s, nil
}

func (s *PostgresStore) Get(ctx context.Context, namespace, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`,
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

func (s *PostgresStore) Set(ctx context.Context, namespace, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, namespace, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`,
		namespace, key,
	)
	if err != nil {
		return fmt.Errorf("removing %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv_entries WHERE namespace = $1 ORDER BY key`,
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// ABOUTME: Backend selection for the configured database driver
// ABOUTME: Wraps the chosen backend in Sealed when an encryption key is set

package kv

import (
	"context"
	"fmt"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverFile     = "file"
	DriverMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Driver        string
	Path          string
	DSN           string
	EncryptionKey string
}

// Open creates the backend named by opts.Driver (sqlite when empty).
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)

	switch opts.Driver {
	case "", DriverSQLite:
		s, err = NewSQLiteStore(opts.Path)
	case DriverSQLite3:
		s, err = NewSQLite3Store(opts.Path)
	case DriverPostgres:
		s, err = NewPostgresStore(ctx, opts.DSN)
	case DriverRedis:
		s, err = NewRedisStore(ctx, opts.DSN)
	case DriverFile:
		s, err = NewFileStore(opts.Path)
	case DriverMemory:
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s store: %w", driverName(opts.Driver), err)
	}

	if opts.EncryptionKey == "" {
		return s, nil
	}

	sealed, err := NewSealed(s, []byte(opts.EncryptionKey))
	if err != nil {
		s.Close()
		return nil, err
	}
	return sealed, nil
}

func driverName(d string) string {
	if d == "" {
		return DriverSQLite
	}
	return d
}

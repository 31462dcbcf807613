// ABOUTME: Backend selection for the conversation store
// ABOUTME: Maps a driver name to the memory, SQLite, or Postgres implementation

package store

import (
	"fmt"
	"log/slog"
)

// Supported drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	Path   string // sqlite file
	DSN    string // postgres connection string
	Logger *slog.Logger
}

// Open returns the backend named by opts.Driver.
func Open(opts Options) (ConversationStore, error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemoryStore(opts.Logger), nil
	case DriverSQLite, "":
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite driver requires a path")
		}
		s, err := NewSQLiteStore(opts.Path, opts.Logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a dsn")
		}
		s, err := OpenPostgres(opts.DSN, opts.Logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

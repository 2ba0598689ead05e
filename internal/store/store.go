package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is stamped into PRAGMA user_version.
const currentSchemaVersion = 1

// DefaultBusyTimeout is how long a connection waits for a lock before
// returning SQLITE_BUSY.
const DefaultBusyTimeout = 5 * time.Second

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the database file. Use ":memory:" for a throwaway database.
	Path string

	// BusyTimeout overrides DefaultBusyTimeout when positive.
	BusyTimeout time.Duration
}

// Store provides durable storage for the revision ledger.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path with default
// settings. See OpenConfig.
func Open(path string) (*Store, error) {
	return OpenConfig(Config{Path: path})
}

// OpenConfig creates or opens a SQLite database.
// Applies required pragmas and the schema automatically.
//
// The pool is limited to a single connection: SQLite serializes writers
// anyway, and one connection makes every unit of work observe a single
// consistent state.
//
// This function is idempotent - safe to call multiple times.
func OpenConfig(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("open store: path is required")
	}

	db, err := sql.Open("sqlite3", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = DefaultBusyTimeout
	}

	if err := applyPragmas(db, busy); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer InTx. Never call it from inside an InTx callback:
// the pool has one connection and the call would block forever.
func (s *Store) DB() *sql.DB {
	return s.db
}

// InTx runs fn inside one database transaction.
//
// The transaction commits only if fn returns nil; any error from fn, a
// panic, or a cancelled context rolls it back, so no partial writes survive.
// fn must not retain tx after returning.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// dsn enables foreign keys through the driver as well, so a connection the
// pool reopens behind our back still enforces cascades.
func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&_foreign_keys=1"
	}
	return path + "?_foreign_keys=1"
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, busy time.Duration) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and stamps the schema
// version. This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// Package store persists companies and their daily prices in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when an insert violates a unique constraint.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation is returned for rows that fail domain or foreign key checks.
	ErrValidation = errors.New("validation failed")
)

const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Store is a SQLite-backed repository. It is safe for concurrent use; the
// connection pool is owned by database/sql.
type Store struct {
	db *sql.DB
}

// DSN turns a DATABASE_URL (sqlite://path, file:path or a bare path) into a
// modernc.org/sqlite data source name with the pragmas the store relies on.
func DSN(url string) (string, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return "", errors.New("empty database url")
	case strings.HasPrefix(url, "sqlite://"):
		url = strings.TrimPrefix(url, "sqlite://")
	case strings.HasPrefix(url, "sqlite:"):
		url = strings.TrimPrefix(url, "sqlite:")
	case strings.Contains(url, "://"):
		return "", fmt.Errorf("unsupported database url scheme: %q", url)
	}
	if url == "" {
		return "", errors.New("empty database path")
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + pragmas, nil
}

// Open opens the database at url and applies migrations.
func Open(ctx context.Context, url string) (*Store, error) {
	dsn, err := DSN(url)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS companies (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol       TEXT NOT NULL UNIQUE,
			company_name TEXT NOT NULL,
			sector       TEXT,
			industry     TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS daily_prices (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			company_id  INTEGER NOT NULL REFERENCES companies(id),
			trade_date  TEXT NOT NULL,
			open_price  TEXT NOT NULL,
			high_price  TEXT NOT NULL,
			low_price   TEXT NOT NULL,
			close_price TEXT NOT NULL,
			volume      INTEGER NOT NULL,
			CONSTRAINT unique_price_per_day UNIQUE (company_id, trade_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(company_id, trade_date)`,
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
			}
		}
		return nil
	})
}

// withTx runs fn in a transaction, committing on success and rolling back
// on any error.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// classify maps driver constraint errors onto the package sentinels.
// modernc.org/sqlite reports the constraint only in the message text.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", ErrAlreadyExists, what)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: referenced company does not exist", ErrValidation)
	case strings.Contains(msg, "NOT NULL constraint failed"), strings.Contains(msg, "CHECK constraint failed"):
		return fmt.Errorf("%w: %s", ErrValidation, msg)
	}
	return err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

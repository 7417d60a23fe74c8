package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Dialects understood by SQL and Migrate.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// SQL is a Store over database/sql. It expects the kv_entries table
// created by Migrate.
type SQL struct {
	DB      *sql.DB
	Dialect string
}

// NewSQL wraps db. Dialect selects placeholder syntax.
func NewSQL(db *sql.DB, dialect string) *SQL {
	return &SQL{DB: db, Dialect: dialect}
}

func (s *SQL) ph(n int) string {
	if s.Dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	q := "SELECT value FROM kv_entries WHERE key = " + s.ph(1)

	var value string
	err := s.DB.QueryRowContext(ctx, q, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	q := "INSERT INTO kv_entries (key, value, updated_at) VALUES (" + s.ph(1) + ", " + s.ph(2) + ", CURRENT_TIMESTAMP) " +
		"ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP"

	if _, err := s.DB.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	q := "DELETE FROM kv_entries WHERE key = " + s.ph(1)

	if _, err := s.DB.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("kv remove %q: %w", key, err)
	}
	return nil
}

func (s *SQL) Close() error {
	return s.DB.Close()
}
